package rpc

import (
	"net/http"
)

type beneficiaryParams struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount,omitempty"`
}

func (s *Server) handleTreasuryAdd(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params beneficiaryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	beneficiary, err := decodeAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid beneficiary address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.treasury.AddBeneficiary(caller, beneficiary, amount); err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"added": true})
}

func (s *Server) handleTreasuryRemove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params beneficiaryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	beneficiary, err := decodeAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid beneficiary address", err.Error())
		return
	}
	if err := s.treasury.RemoveBeneficiary(caller, beneficiary); err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"removed": true})
}

func (s *Server) handleTreasuryClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params beneficiaryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	beneficiary, err := decodeAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid beneficiary address", err.Error())
		return
	}
	amount, err := s.treasury.ClaimFunds(beneficiary)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"amount": bigString(amount)})
}

func (s *Server) handleTreasuryList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	entries, err := s.treasury.Beneficiaries()
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	results := make([]beneficiaryResult, len(entries))
	for i, entry := range entries {
		results[i] = beneficiaryResult{
			Beneficiary: encodeAddress(entry.Beneficiary),
			Amount:      bigString(entry.Amount),
		}
	}
	writeResult(w, req.ID, results)
}

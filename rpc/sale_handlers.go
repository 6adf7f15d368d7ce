package rpc

import (
	"net/http"

	"solstice/native/sale"
)

type saleInitializeParams struct {
	Caller         string `json:"caller"`
	StartTimestamp int64  `json:"startTimestamp"`
	Cap            string `json:"cap"`
	Phases         []struct {
		TokenPrice string `json:"tokenPrice"`
		Duration   int64  `json:"duration"`
	} `json:"phases"`
}

func (s *Server) handleSaleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params saleInitializeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	cap, err := parseAmount(params.Cap)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	phases := make([]sale.Phase, len(params.Phases))
	for i, phase := range params.Phases {
		price, err := parseAmount(phase.TokenPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		phases[i] = sale.Phase{TokenPrice: price, Duration: phase.Duration}
	}
	state, err := s.sale.InitializeSale(caller, params.StartTimestamp, cap, phases)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, formatSaleState(state))
}

type supplyParams struct {
	Caller       string `json:"caller"`
	Distribution string `json:"distribution"`
}

func (s *Server) handleSaleMintSupply(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params supplyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	distribution, err := decodeAddress(params.Distribution)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid distribution address", err.Error())
		return
	}
	if err := s.sale.MintInitialSupply(caller, distribution); err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"minted": true})
}

type purchaseParams struct {
	Buyer      string `json:"buyer"`
	AmountPaid string `json:"amountPaid"`
}

func (s *Server) handleSalePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.purchase(w, req, false)
}

func (s *Server) handleSalePurchaseAndVest(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.purchase(w, req, true)
}

func (s *Server) purchase(w http.ResponseWriter, req *RPCRequest, levelPriced bool) {
	var params purchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	buyer, err := decodeAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	amount, err := parseAmount(params.AmountPaid)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var receipt *sale.PurchaseReceipt
	if levelPriced {
		receipt, err = s.sale.PurchaseAndVest(buyer, amount)
	} else {
		receipt, err = s.sale.Purchase(buyer, amount)
	}
	if err != nil {
		s.metrics.Purchases.WithLabelValues("rejected").Inc()
		writeBusinessError(w, req, err)
		return
	}
	s.metrics.Purchases.WithLabelValues("admitted").Inc()
	sold, _ := receipt.Sold.Float64()
	s.metrics.TokensSold.Set(sold)
	writeResult(w, req.ID, formatPurchase(receipt))
}

func (s *Server) handleSaleState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	state, err := s.sale.Sale()
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, formatSaleState(state))
}

func (s *Server) handleSaleCurrentPhase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	quote, err := s.sale.Quote()
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, quoteResult{
		PhaseIndex: quote.PhaseIndex,
		TokenPrice: bigString(quote.Phase.TokenPrice),
		Duration:   quote.Phase.Duration,
		Closing:    quote.Closing,
	})
}

type vestingInitializeParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func (s *Server) handleVestingInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vestingInitializeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := s.sale.InitializeVesting(owner, amount)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, formatParticipant(account))
}

func (s *Server) handleVestingRecordPurchase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vestingInitializeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, accrued, err := s.sale.RecordAdditionalPurchase(owner, amount)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"participant": formatParticipant(account),
		"accrued":     bigString(accrued),
	})
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func (s *Server) ownerFromParams(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return [20]byte{}, false
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return [20]byte{}, false
	}
	return owner, true
}

func (s *Server) handleVestingAccrue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	accrued, err := s.sale.AccrueRewards(owner)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"accrued": bigString(accrued)})
}

func (s *Server) handleVestingViewRewards(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	accrued, err := s.sale.ViewRewards(owner)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"accrued": bigString(accrued)})
}

func (s *Server) handleVestingClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	receipt, err := s.sale.ClaimRewards(owner)
	if err != nil {
		s.metrics.Claims.WithLabelValues("rejected").Inc()
		writeBusinessError(w, req, err)
		return
	}
	s.metrics.Claims.WithLabelValues("paid").Inc()
	total, _ := receipt.Total.Float64()
	s.metrics.Distributed.Add(total)
	writeResult(w, req.ID, claimResult{
		Base:      bigString(receipt.Base),
		TierBonus: bigString(receipt.TierBonus),
		Pending:   bigString(receipt.Pending),
		Total:     bigString(receipt.Total),
		TierLevel: receipt.TierLevel,
	})
}

func (s *Server) handleVestingParticipant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	account, err := s.sale.Participant(owner)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, formatParticipant(account))
}

type referralParams struct {
	Owner    string `json:"owner"`
	Referrer string `json:"referrer"`
}

func (s *Server) handleReferralSet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params referralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	referrer, err := decodeAddress(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
		return
	}
	if err := s.sale.SetReferral(owner, referrer); err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"linked": true})
}

func (s *Server) handleReferralCredit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params referralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	referrer, err := decodeAddress(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
		return
	}
	pending, err := s.sale.CreditReferral(owner, referrer)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"pending": bigString(pending)})
}

func (s *Server) handleDistributionList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	events, err := s.sale.Distributions(owner)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	results := make([]distributionResult, len(events))
	for i, evt := range events {
		results[i] = distributionResult{
			ID:        "0x" + encodeHash(evt.ID),
			Recipient: encodeAddress(evt.Recipient),
			Amount:    bigString(evt.Amount),
			Timestamp: evt.Timestamp,
			Sequence:  evt.Sequence,
		}
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleDistributionTotal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.ownerFromParams(w, req)
	if !ok {
		return
	}
	total, err := s.sale.DistributedTotal(owner)
	if err != nil {
		writeBusinessError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"total": bigString(total)})
}

package treasury

import "math/big"

// BeneficiaryInfo records a single payout promise made by the administrator.
type BeneficiaryInfo struct {
	Beneficiary [20]byte `json:"beneficiary"`
	Amount      *big.Int `json:"amount"`
}

// Clone returns a deep copy of the beneficiary record.
func (b BeneficiaryInfo) Clone() BeneficiaryInfo {
	clone := BeneficiaryInfo{Beneficiary: b.Beneficiary, Amount: big.NewInt(0)}
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	}
	return clone
}

// State is the treasury registry: the administrator address and the open
// beneficiary list.
type State struct {
	Admin         [20]byte          `json:"admin"`
	Beneficiaries []BeneficiaryInfo `json:"beneficiaries"`
}

// Clone returns a deep copy of the treasury state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := &State{Admin: s.Admin, Beneficiaries: make([]BeneficiaryInfo, len(s.Beneficiaries))}
	for i, entry := range s.Beneficiaries {
		clone.Beneficiaries[i] = entry.Clone()
	}
	return clone
}

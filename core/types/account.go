package types

import "math/big"

// Account holds the token balances tracked for a single address. The engine
// distinguishes the sale token (PLEDGE) minted against purchases from the
// reward token (SOLHIT) paid out on claims.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalancePledge *big.Int `json:"balancePledge"`
	BalanceSolhit *big.Int `json:"balanceSolhit"`
}

// EnsureBalances initialises any nil balance so callers can mutate the account
// without nil checks.
func (a *Account) EnsureBalances() *Account {
	if a == nil {
		return &Account{BalancePledge: big.NewInt(0), BalanceSolhit: big.NewInt(0)}
	}
	if a.BalancePledge == nil {
		a.BalancePledge = big.NewInt(0)
	}
	if a.BalanceSolhit == nil {
		a.BalanceSolhit = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, BalancePledge: big.NewInt(0), BalanceSolhit: big.NewInt(0)}
	if a.BalancePledge != nil {
		clone.BalancePledge = new(big.Int).Set(a.BalancePledge)
	}
	if a.BalanceSolhit != nil {
		clone.BalanceSolhit = new(big.Int).Set(a.BalanceSolhit)
	}
	return clone
}

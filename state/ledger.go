package state

import (
	"errors"
	"math/big"
	"strings"

	"solstice/native/sale"
)

var (
	// ErrUnknownToken is returned for token symbols the ledger does not track.
	ErrUnknownToken = errors.New("state: unknown token")
	// ErrInsufficientFunds is returned when a transfer overdraws the source.
	ErrInsufficientFunds = errors.New("state: insufficient funds")
)

// Ledger is the in-node implementation of the token ledger capability. It
// mutates token account balances held by the state manager; each call either
// applies in full or returns an error with no balance touched.
type Ledger struct {
	mgr *Manager
}

// NewLedger wraps the manager with the ledger capability.
func NewLedger(mgr *Manager) *Ledger {
	return &Ledger{mgr: mgr}
}

func balanceFor(token string) (func(acc accountView) *big.Int, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case sale.TokenPledge:
		return func(acc accountView) *big.Int { return acc.pledge }, nil
	case sale.TokenReward:
		return func(acc accountView) *big.Int { return acc.reward }, nil
	default:
		return nil, ErrUnknownToken
	}
}

type accountView struct {
	pledge *big.Int
	reward *big.Int
}

// Mint credits freshly issued tokens to the recipient.
func (l *Ledger) Mint(token string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("state: mint amount must be positive")
	}
	pick, err := balanceFor(token)
	if err != nil {
		return err
	}
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	account, err := l.mgr.accountGetLocked(to)
	if err != nil {
		return err
	}
	balance := pick(accountView{pledge: account.BalancePledge, reward: account.BalanceSolhit})
	balance.Add(balance, amount)
	return l.mgr.accountPutLocked(to, account)
}

// Transfer moves tokens between accounts, failing without mutation when the
// source balance cannot cover the amount.
func (l *Ledger) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("state: transfer amount must be positive")
	}
	pick, err := balanceFor(token)
	if err != nil {
		return err
	}
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	source, err := l.mgr.accountGetLocked(from)
	if err != nil {
		return err
	}
	sourceBalance := pick(accountView{pledge: source.BalancePledge, reward: source.BalanceSolhit})
	if sourceBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	destination, err := l.mgr.accountGetLocked(to)
	if err != nil {
		return err
	}
	destinationBalance := pick(accountView{pledge: destination.BalancePledge, reward: destination.BalanceSolhit})
	sourceBalance.Sub(sourceBalance, amount)
	destinationBalance.Add(destinationBalance, amount)
	if err := l.mgr.accountPutLocked(from, source); err != nil {
		return err
	}
	return l.mgr.accountPutLocked(to, destination)
}

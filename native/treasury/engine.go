package treasury

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"solstice/core/events"
	"solstice/core/types"
)

const (
	// EventTypeBeneficiaryAdded is emitted when the admin registers a payout.
	EventTypeBeneficiaryAdded = "treasury.beneficiary.added"
	// EventTypeBeneficiaryRemoved is emitted when the admin revokes a payout.
	EventTypeBeneficiaryRemoved = "treasury.beneficiary.removed"
	// EventTypeFundsClaimed is emitted when a beneficiary collects.
	EventTypeFundsClaimed = "treasury.funds.claimed"
)

// engineState describes the persistence the treasury engine needs.
type engineState interface {
	TreasuryGet() (*State, bool, error)
	TreasuryPut(*State) error
}

// TokenLedger is the external value-transfer capability used for payouts.
type TokenLedger interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Engine manages the admin-gated beneficiary registry and its payouts.
type Engine struct {
	state   engineState
	ledger  TokenLedger
	emitter events.Emitter
	vault   [20]byte
	token   string
}

// NewEngine constructs a treasury engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger capability.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetVault configures the funding account and token claims are paid in.
func (e *Engine) SetVault(addr [20]byte, token string) {
	e.vault = addr
	e.token = token
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(wrapEvent(evt))
}

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

func wrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Initialize records the treasury administrator. It can only happen once.
func (e *Engine) Initialize(admin [20]byte) (*State, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, ok, err := e.state.TreasuryGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	state := &State{Admin: admin}
	if err := e.state.TreasuryPut(state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// AddBeneficiary registers a payout promise. Admin only; one open promise per
// beneficiary at a time.
func (e *Engine) AddBeneficiary(caller, beneficiary [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	state, ok, err := e.state.TreasuryGet()
	if err != nil {
		return err
	}
	if !ok || state == nil {
		return ErrNotInitialized
	}
	if caller != state.Admin {
		return ErrUnauthorized
	}
	state = state.Clone()
	for _, entry := range state.Beneficiaries {
		if entry.Beneficiary == beneficiary {
			return ErrBeneficiaryExists
		}
	}
	state.Beneficiaries = append(state.Beneficiaries, BeneficiaryInfo{
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
	})
	if err := e.state.TreasuryPut(state); err != nil {
		return err
	}
	e.emit(&types.Event{
		Type: EventTypeBeneficiaryAdded,
		Attributes: map[string]string{
			"beneficiary": hexAddr(beneficiary),
			"amount":      amount.String(),
		},
	})
	return nil
}

// RemoveBeneficiary revokes an open payout promise. Admin only.
func (e *Engine) RemoveBeneficiary(caller, beneficiary [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	state, ok, err := e.state.TreasuryGet()
	if err != nil {
		return err
	}
	if !ok || state == nil {
		return ErrNotInitialized
	}
	if caller != state.Admin {
		return ErrUnauthorized
	}
	state = state.Clone()
	index := -1
	for i, entry := range state.Beneficiaries {
		if entry.Beneficiary == beneficiary {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrBeneficiaryNotFound
	}
	state.Beneficiaries = append(state.Beneficiaries[:index], state.Beneficiaries[index+1:]...)
	if err := e.state.TreasuryPut(state); err != nil {
		return err
	}
	e.emit(&types.Event{
		Type:       EventTypeBeneficiaryRemoved,
		Attributes: map[string]string{"beneficiary": hexAddr(beneficiary)},
	})
	return nil
}

// ClaimFunds pays the caller's registered amount from the treasury vault and
// closes the promise. The transfer and the registry update commit together.
func (e *Engine) ClaimFunds(beneficiary [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.ledger == nil {
		return nil, ErrLedgerNotConfigured
	}
	state, ok, err := e.state.TreasuryGet()
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return nil, ErrNotInitialized
	}
	state = state.Clone()
	index := -1
	for i, entry := range state.Beneficiaries {
		if entry.Beneficiary == beneficiary {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrBeneficiaryNotFound
	}
	amount := new(big.Int).Set(state.Beneficiaries[index].Amount)
	if err := e.ledger.Transfer(e.token, e.vault, beneficiary, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	state.Beneficiaries = append(state.Beneficiaries[:index], state.Beneficiaries[index+1:]...)
	if err := e.state.TreasuryPut(state); err != nil {
		return nil, err
	}
	e.emit(&types.Event{
		Type: EventTypeFundsClaimed,
		Attributes: map[string]string{
			"beneficiary": hexAddr(beneficiary),
			"amount":      amount.String(),
		},
	})
	return amount, nil
}

// Beneficiaries returns a copy of the open payout promises.
func (e *Engine) Beneficiaries() ([]BeneficiaryInfo, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	state, ok, err := e.state.TreasuryGet()
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return nil, ErrNotInitialized
	}
	out := make([]BeneficiaryInfo, len(state.Beneficiaries))
	for i, entry := range state.Beneficiaries {
		out[i] = entry.Clone()
	}
	return out, nil
}

package sale

import (
	"fmt"
	"math/big"
)

const (
	// SecondsPerYear is the fixed year length used by the accrual math.
	SecondsPerYear = 365 * 24 * 60 * 60
	// VestingHorizon is the duration between vesting start and maturity.
	VestingHorizon = 2 * SecondsPerYear
	// MaturityMultiplier scales the purchased amount into the total reward
	// entitlement once the vesting horizon has elapsed.
	MaturityMultiplier = 40
	// TierWindow is the elapsed-sale-time window that advances the tier level.
	TierWindow = 15 * 24 * 60 * 60
	// MaxTierLevel caps tier progression.
	MaxTierLevel = 5
	// TierReward is the fixed bonus paid per tier level on every claim.
	TierReward = 100
	// ReferralReward is the fixed bonus credited on a matching referral.
	ReferralReward = 10
	// TokenDecimals is the base-unit scale of both tokens.
	TokenDecimals = 9
)

// Token symbols understood by the ledger capability.
const (
	TokenPledge = "PLEDGE"
	TokenReward = "SOLHIT"
)

// Genesis supply split minted once by the administrator, expressed in whole
// tokens before decimal scaling.
const (
	RewardsVaultSupply        = 4_000_000
	DistributionPoolSupply    = 10_000_000
	AnnualInterestNumerator   = 5
	AnnualInterestDenominator = 100
)

// MaxAmount is the saturation ceiling for every computed amount. Accruals
// that would exceed it clamp here instead of growing without bound.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Phase is a priced segment of the sale. Phases are contiguous: each one
// begins the moment the previous one's duration is exhausted.
type Phase struct {
	TokenPrice *big.Int `json:"tokenPrice"`
	Duration   int64    `json:"duration"`
}

// Clone returns a deep copy of the phase.
func (p Phase) Clone() Phase {
	clone := Phase{Duration: p.Duration, TokenPrice: big.NewInt(0)}
	if p.TokenPrice != nil {
		clone.TokenPrice = new(big.Int).Set(p.TokenPrice)
	}
	return clone
}

// SaleState is the singleton economic ledger for the sale. Sold only ever
// moves up and never beyond Cap.
type SaleState struct {
	StartTimestamp int64    `json:"startTimestamp"`
	Cap            *big.Int `json:"cap"`
	Sold           *big.Int `json:"sold"`
	Phases         []Phase  `json:"phases"`
}

// Clone returns a deep copy of the sale state.
func (s *SaleState) Clone() *SaleState {
	if s == nil {
		return nil
	}
	clone := &SaleState{
		StartTimestamp: s.StartTimestamp,
		Cap:            big.NewInt(0),
		Sold:           big.NewInt(0),
		Phases:         make([]Phase, len(s.Phases)),
	}
	if s.Cap != nil {
		clone.Cap = new(big.Int).Set(s.Cap)
	}
	if s.Sold != nil {
		clone.Sold = new(big.Int).Set(s.Sold)
	}
	for i, phase := range s.Phases {
		clone.Phases[i] = phase.Clone()
	}
	return clone
}

func (s *SaleState) validate() error {
	if s.StartTimestamp <= 0 {
		return fmt.Errorf("%w: start timestamp must be positive", ErrInvalidPhases)
	}
	if s.Cap == nil || s.Cap.Sign() <= 0 {
		return fmt.Errorf("%w: cap must be positive", ErrInvalidPhases)
	}
	if len(s.Phases) == 0 {
		return fmt.Errorf("%w: at least one phase required", ErrInvalidPhases)
	}
	for i, phase := range s.Phases {
		if phase.TokenPrice == nil || phase.TokenPrice.Sign() <= 0 {
			return fmt.Errorf("%w: phase %d price must be positive", ErrInvalidPhases, i)
		}
		if phase.Duration <= 0 {
			return fmt.Errorf("%w: phase %d duration must be positive", ErrInvalidPhases, i)
		}
	}
	return nil
}

// ParticipantAccount is the per-owner purchase, vesting and referral record.
// It is created on the first purchase or vesting initialisation and never
// destroyed afterwards.
type ParticipantAccount struct {
	Owner           [20]byte `json:"owner"`
	PurchasedAmount *big.Int `json:"purchasedAmount"`
	VestingStart    int64    `json:"vestingStart"`
	VestingEnd      int64    `json:"vestingEnd"`
	LastAccrual     int64    `json:"lastAccrual"`
	RewardsClaimed  *big.Int `json:"rewardsClaimed"`
	// PendingBonus accumulates referral credits and flushed compound accrual
	// until the next successful claim realises them.
	PendingBonus *big.Int `json:"pendingBonus"`
	ReferredBy   [20]byte `json:"referredBy"`
	HasReferrer  bool     `json:"hasReferrer"`
	TierLevel    uint8    `json:"tierLevel"`
}

// Clone returns a deep copy of the participant account.
func (p *ParticipantAccount) Clone() *ParticipantAccount {
	if p == nil {
		return nil
	}
	clone := &ParticipantAccount{
		Owner:           p.Owner,
		VestingStart:    p.VestingStart,
		VestingEnd:      p.VestingEnd,
		LastAccrual:     p.LastAccrual,
		ReferredBy:      p.ReferredBy,
		HasReferrer:     p.HasReferrer,
		TierLevel:       p.TierLevel,
		PurchasedAmount: big.NewInt(0),
		RewardsClaimed:  big.NewInt(0),
		PendingBonus:    big.NewInt(0),
	}
	if p.PurchasedAmount != nil {
		clone.PurchasedAmount = new(big.Int).Set(p.PurchasedAmount)
	}
	if p.RewardsClaimed != nil {
		clone.RewardsClaimed = new(big.Int).Set(p.RewardsClaimed)
	}
	if p.PendingBonus != nil {
		clone.PendingBonus = new(big.Int).Set(p.PendingBonus)
	}
	return clone
}

func (p *ParticipantAccount) ensureAmounts() {
	if p.PurchasedAmount == nil {
		p.PurchasedAmount = big.NewInt(0)
	}
	if p.RewardsClaimed == nil {
		p.RewardsClaimed = big.NewInt(0)
	}
	if p.PendingBonus == nil {
		p.PendingBonus = big.NewInt(0)
	}
}

// DistributionEvent is an immutable audit record of a completed payout. The
// identifier is the keccak256 hash of the recipient, sequence number and
// timestamp so replays of the same accrual window are detectable.
type DistributionEvent struct {
	ID        [32]byte `json:"id"`
	Recipient [20]byte `json:"recipient"`
	Amount    *big.Int `json:"amount"`
	Timestamp int64    `json:"timestamp"`
	Sequence  uint64   `json:"sequence"`
}

// Clone returns a deep copy of the distribution event.
func (d *DistributionEvent) Clone() *DistributionEvent {
	if d == nil {
		return nil
	}
	clone := &DistributionEvent{
		ID:        d.ID,
		Recipient: d.Recipient,
		Timestamp: d.Timestamp,
		Sequence:  d.Sequence,
		Amount:    big.NewInt(0),
	}
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	}
	return clone
}

// PurchaseReceipt reports the outcome of an admitted purchase.
type PurchaseReceipt struct {
	PhaseIndex   int
	Closing      bool
	TokensMinted *big.Int
	Sold         *big.Int
}

// ClaimReceipt reports the composition of a successful claim payout.
type ClaimReceipt struct {
	Base      *big.Int
	TierBonus *big.Int
	Pending   *big.Int
	Total     *big.Int
	TierLevel uint8
}

package sale

import "math/big"

// PhaseQuote resolves a timestamp against the sale schedule. Closing reports
// that every phase duration has been exhausted and the final phase price is
// being applied as the perpetual closing tier.
type PhaseQuote struct {
	Phase      Phase
	PhaseIndex int
	Closing    bool
}

// ResolvePhase walks the phase list in order, consuming each duration from the
// elapsed sale time, and returns the first phase whose window has not yet
// passed. Timestamps before the sale start report ok=false. Once all phases
// are exhausted the last phase is returned with Closing set: the sale never
// enters a terminal state, it clamps to its final tier.
func ResolvePhase(s *SaleState, now int64) (PhaseQuote, bool) {
	if s == nil || len(s.Phases) == 0 || now < s.StartTimestamp {
		return PhaseQuote{}, false
	}
	elapsed := now - s.StartTimestamp
	for i, phase := range s.Phases {
		if elapsed <= phase.Duration {
			return PhaseQuote{Phase: phase.Clone(), PhaseIndex: i}, true
		}
		elapsed -= phase.Duration
	}
	last := len(s.Phases) - 1
	return PhaseQuote{Phase: s.Phases[last].Clone(), PhaseIndex: last, Closing: true}, true
}

// SaleLevel derives the tier level from elapsed sale time in fixed windows.
// The level starts at 1, advances every TierWindow seconds and clamps at
// MaxTierLevel. Timestamps before the sale start stay at level 1 so the
// function is monotone for any fixed start.
func SaleLevel(start, now int64) uint8 {
	if now <= start {
		return 1
	}
	window := (now - start) / TierWindow
	if window >= MaxTierLevel-1 {
		return MaxTierLevel
	}
	return uint8(window + 1)
}

// PledgeTokens prices a purchase in the level-discount model: early levels
// grant more pledge tokens per unit paid. Division floors, matching the
// remainder-forfeiture policy of the phase-priced path.
func PledgeTokens(amountPaid *big.Int, level uint8) *big.Int {
	if amountPaid == nil || amountPaid.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int)
	switch level {
	case 1:
		out.Mul(amountPaid, big.NewInt(2))
	case 2:
		out.Mul(amountPaid, big.NewInt(175))
		out.Div(out, big.NewInt(100))
	case 3:
		out.Mul(amountPaid, big.NewInt(15))
		out.Div(out, big.NewInt(10))
	case 4:
		out.Mul(amountPaid, big.NewInt(125))
		out.Div(out, big.NewInt(100))
	case 5:
		out.Set(amountPaid)
	default:
		return big.NewInt(0)
	}
	return out
}

// TierBonus returns the fixed bonus paid per claim for the given tier level.
func TierBonus(level uint8) *big.Int {
	if level == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(big.NewInt(int64(level)), big.NewInt(TierReward))
}

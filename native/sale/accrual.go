package sale

import "math/big"

// The compounding policy grows a locked principal at a fixed annual rate with
// a fractional-year exponent: accrued = P * ((1+r)^y - 1). The reference
// formula is evaluated in fixed-precision binary floating point so every
// platform produces bit-identical results: the integer part of the exponent
// is raised by exact rational squaring and the fractional part by the
// square-root bit expansion of the exponent. Results floor to whole base
// units and saturate at MaxAmount.

const (
	accrualPrecision = 192
	accrualFracBits  = 96
	// maxAccrualYears clamps the exponent; anything beyond it already
	// saturates the amount ceiling for any positive principal.
	maxAccrualYears = 2000
)

// CompoundAccrued returns the reward accrued on principal between the from
// and to timestamps under the fixed annual interest rate. A non-positive
// principal or window accrues nothing.
func CompoundAccrued(principal *big.Int, from, to int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || to <= from {
		return big.NewInt(0)
	}
	elapsed := to - from
	years := elapsed / SecondsPerYear
	remainder := elapsed % SecondsPerYear
	if years > maxAccrualYears {
		return new(big.Int).Set(MaxAmount)
	}

	var accrued *big.Int
	if remainder == 0 {
		accrued = wholeYearAccrued(principal, years)
	} else {
		growth := growthFactor(years, uint64(remainder))
		principalF := new(big.Float).SetPrec(accrualPrecision).SetInt(principal)
		accruedF := new(big.Float).SetPrec(accrualPrecision).Sub(growth, big.NewFloat(1).SetPrec(accrualPrecision))
		accruedF.Mul(accruedF, principalF)
		accrued, _ = accruedF.Int(nil)
	}
	if accrued.Sign() < 0 {
		return big.NewInt(0)
	}
	if accrued.Cmp(MaxAmount) > 0 {
		return new(big.Int).Set(MaxAmount)
	}
	return accrued
}

// wholeYearAccrued evaluates floor(P * ((1+r)^years - 1)) in exact rational
// arithmetic so whole-year windows carry no rounding error at all.
func wholeYearAccrued(principal *big.Int, years int64) *big.Int {
	base := new(big.Rat).SetFrac64(
		int64(AnnualInterestDenominator+AnnualInterestNumerator),
		int64(AnnualInterestDenominator),
	)
	growth := ratPow(base, years)
	num := new(big.Int).Sub(growth.Num(), growth.Denom())
	num.Mul(num, principal)
	return num.Div(num, growth.Denom())
}

// growthFactor computes (1+r)^(years + fracSeconds/SecondsPerYear).
func growthFactor(years int64, fracSeconds uint64) *big.Float {
	base := new(big.Rat).SetFrac64(
		int64(AnnualInterestDenominator+AnnualInterestNumerator),
		int64(AnnualInterestDenominator),
	)

	whole := ratPow(base, years)
	factor := new(big.Float).SetPrec(accrualPrecision).SetRat(whole)
	if fracSeconds == 0 {
		return factor
	}

	baseF := new(big.Float).SetPrec(accrualPrecision).SetRat(base)
	return factor.Mul(factor, fracPow(baseF, fracSeconds, SecondsPerYear))
}

// ratPow raises base to a non-negative integer exponent by squaring. The
// arithmetic is exact.
func ratPow(base *big.Rat, exp int64) *big.Rat {
	result := new(big.Rat).SetInt64(1)
	if exp <= 0 {
		return result
	}
	square := new(big.Rat).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, square)
		}
		square.Mul(square, square)
		exp >>= 1
	}
	return result
}

// fracPow computes base^(num/den) for 0 <= num < den by expanding the
// fractional exponent one binary digit at a time: base^(1/2^k) terms are
// produced by repeated square roots and multiplied in when the corresponding
// bit of num/den is set. The iteration count and precision are fixed, so the
// result is deterministic.
func fracPow(base *big.Float, num, den uint64) *big.Float {
	one := big.NewFloat(1).SetPrec(accrualPrecision)
	result := big.NewFloat(1).SetPrec(accrualPrecision)
	cur := new(big.Float).SetPrec(accrualPrecision).Set(base)
	frac := new(big.Float).SetPrec(accrualPrecision).Quo(
		new(big.Float).SetPrec(accrualPrecision).SetUint64(num),
		new(big.Float).SetPrec(accrualPrecision).SetUint64(den),
	)
	for i := 0; i < accrualFracBits && frac.Sign() != 0; i++ {
		cur.Sqrt(cur)
		frac.Add(frac, frac)
		if frac.Cmp(one) >= 0 {
			frac.Sub(frac, one)
			result.Mul(result, cur)
		}
	}
	return result
}

// TotalEntitlement is the maturity-multiplier policy: the full reward earned
// once the vesting horizon has elapsed.
func TotalEntitlement(purchased *big.Int) *big.Int {
	if purchased == nil || purchased.Sign() <= 0 {
		return big.NewInt(0)
	}
	entitlement := new(big.Int).Mul(purchased, big.NewInt(MaturityMultiplier))
	if entitlement.Cmp(MaxAmount) > 0 {
		return new(big.Int).Set(MaxAmount)
	}
	return entitlement
}

package cdp

import (
	"cosmossdk.io/math"
)

// Fixed-point conventions for the engine: balances (collateral amounts,
// credit amounts, pending revenue) are math.Int base units; ratios, rates,
// prices and LTVs are math.LegacyDec with 18 fractional digits, matching the
// rounding rules in spec.md's numeric semantics.
//
// Rounding: debt credited to a position rounds down (user-favorable on
// deposit, protocol-favorable on repay); fees round down in the payer's
// favor. Both are implemented with TruncateInt rather than RoundInt.

var (
	decZero = math.LegacyZeroDec()
	decOne  = math.LegacyOneDec()
	intZero = math.ZeroInt()
)

// decMulInt multiplies a decimal ratio/price by an integer amount and floors
// the result, e.g. value_of(amount, price).
func decMulInt(amount math.Int, price math.LegacyDec) math.Int {
	if amount.IsZero() || price.IsZero() {
		return intZero
	}
	return price.MulInt(amount).TruncateInt()
}

// decDivToInt inverts decMulInt: amount_of(value, price). Returns an error
// sentinel via zero+ok pattern since price may be zero.
func decDivToInt(value math.Int, price math.LegacyDec) (math.Int, bool) {
	if price.IsZero() {
		return intZero, false
	}
	if value.IsZero() {
		return intZero, true
	}
	dec := math.LegacyNewDecFromInt(value).Quo(price)
	return dec.TruncateInt(), true
}

// ratioOfValue returns part/total as a LegacyDec, defined as zero when total
// is zero (rather than dividing by zero).
func ratioOfValue(part, total math.Int) math.LegacyDec {
	if total.IsZero() {
		return decZero
	}
	return math.LegacyNewDecFromInt(part).Quo(math.LegacyNewDecFromInt(total))
}

// weightedAverage computes sum(weights[i]*values[i]) given weights that sum
// to (approximately) one, e.g. the collateral-ratio-weighted mean rate.
func weightedAverage(weights, values []math.LegacyDec) math.LegacyDec {
	total := decZero
	for i := range weights {
		if i >= len(values) {
			break
		}
		total = total.Add(weights[i].Mul(values[i]))
	}
	return total
}

// clampNonNegative floors a decimal at zero, used for max(0, x) expressions
// such as available_fee and excess-LTV calculations.
func clampNonNegative(d math.LegacyDec) math.LegacyDec {
	if d.IsNegative() {
		return decZero
	}
	return d
}

// applyBpsFloor multiplies an integer amount by a basis-point fraction and
// floors, used for fee computations that must round in the payer's favor.
func applyBpsFloor(amount math.Int, bps uint64) math.Int {
	if amount.IsZero() || bps == 0 {
		return intZero
	}
	d := math.LegacyNewDec(int64(bps)).QuoInt64(10_000)
	return decMulInt(amount, d)
}

func minInt(a, b math.Int) math.Int {
	if a.LT(b) {
		return a
	}
	return b
}

func maxInt(a, b math.Int) math.Int {
	if a.GT(b) {
		return a
	}
	return b
}

func minDec(a, b math.LegacyDec) math.LegacyDec {
	if a.LT(b) {
		return a
	}
	return b
}

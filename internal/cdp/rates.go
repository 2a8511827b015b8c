package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// SecondsPerYear is the constant spec.md §6 fixes for annualizing rates.
const SecondsPerYear = 31_536_000

// RateModel is component B: per-asset two-slope borrow rates and the
// redemption-price drift.
type RateModel struct {
	kernel *PriceKernel
}

// NewRateModel constructs a rate model bound to the Price Kernel it needs
// for collateral-ratio weighting.
func NewRateModel(kernel *PriceKernel) *RateModel {
	return &RateModel{kernel: kernel}
}

// assetBorrowRate is base_interest_rate * (1 / max_LTV): riskier collateral
// (a lower max_LTV) pays a higher base rate.
func assetBorrowRate(baseRate math.LegacyDec, maxLTV math.LegacyDec) math.LegacyDec {
	if maxLTV.IsZero() {
		return decZero
	}
	return baseRate.Quo(maxLTV)
}

// effectiveRate applies the two-slope kink at desired utilization: linear
// below the kink, and scaled by 1 + (u-desired)*100 above it.
func effectiveRate(rate, utilization, desired math.LegacyDec) math.LegacyDec {
	if utilization.LTE(desired) {
		return rate.Mul(utilization)
	}
	excess := utilization.Sub(desired)
	multiplier := decOne.Add(excess.MulInt64(100))
	return rate.Mul(utilization).Mul(multiplier)
}

// assetUtilization is debt_total_i / debt_cap_i, where the cap is the
// asset's share of priced collateral value times its cap ratio. Utilization
// is defined as zero when the cap is zero (no borrowing is possible against
// an asset with no cap, so there is nothing to be utilized).
func assetUtilization(cap SupplyCap, debtCapValue math.Int) math.LegacyDec {
	if debtCapValue.IsZero() {
		return decZero
	}
	return ratioOfValue(cap.DebtTotal, debtCapValue)
}

// PositionRate computes the collateral-ratio-weighted mean of each held
// asset's effective per-asset rate.
func (m *RateModel) PositionRate(ctx context.Context, now int64, basket *Basket, position *Position) (math.LegacyDec, error) {
	if len(position.Collateral) == 0 {
		return decZero, nil
	}
	ratios, _, err := m.kernel.Ratios(ctx, now, position.Collateral)
	if err != nil {
		return math.LegacyDec{}, err
	}
	rates := make([]math.LegacyDec, len(position.Collateral))
	for i, held := range position.Collateral {
		idx := basket.FindCollateralType(held.Info)
		if idx < 0 {
			rates[i] = decZero
			continue
		}
		descriptor := basket.CollateralTypes[idx]
		capIdx := basket.FindSupplyCap(held.Info)
		utilization := decZero
		if capIdx >= 0 {
			debtCapValue := basket.SupplyCaps[capIdx].CapRatio.MulInt(descriptor.Amount).TruncateInt()
			utilization = assetUtilization(basket.SupplyCaps[capIdx], debtCapValue)
		}
		base := assetBorrowRate(basket.BaseInterestRate, descriptor.MaxLTV)
		rates[i] = effectiveRate(base, utilization, basket.DesiredDebtCapUtil)
	}
	return weightedAverage(ratios, rates), nil
}

// AccruePosition applies time-elapsed interest to a position's debt and the
// basket's pending revenue, advancing last_accrued. It is a no-op (but still
// advances the clock) for a position with no collateral, since PositionRate
// is undefined without ratios.
func (m *RateModel) AccruePosition(ctx context.Context, now int64, basket *Basket, position *Position) error {
	if position.LastAccrued == 0 {
		position.LastAccrued = now
		return nil
	}
	deltaT := now - position.LastAccrued
	if deltaT <= 0 {
		position.LastAccrued = now
		return nil
	}
	if position.CreditAmount.IsZero() || len(position.Collateral) == 0 {
		position.LastAccrued = now
		return nil
	}

	rate, err := m.PositionRate(ctx, now, basket, position)
	if err != nil {
		return err
	}
	if rate.IsZero() {
		position.LastAccrued = now
		return nil
	}

	interest := computeAccrual(position.CreditAmount, rate, deltaT)
	if interest.IsPositive() {
		position.CreditAmount = position.CreditAmount.Add(interest)
		basket.PendingRevenue = basket.PendingRevenue.Add(interest)

		ratios, _, err := m.kernel.Ratios(ctx, now, position.Collateral)
		if err != nil {
			return err
		}
		distributeAccrualToCaps(basket, position.Collateral, ratios, interest)
	}
	position.LastAccrued = now
	return nil
}

// computeAccrual is credit_amount * rate * Δt / SECONDS_PER_YEAR, floored.
func computeAccrual(principal math.Int, rate math.LegacyDec, deltaT int64) math.Int {
	if principal.IsZero() || rate.IsZero() || deltaT <= 0 {
		return intZero
	}
	perSecond := rate.QuoInt64(SecondsPerYear)
	factor := perSecond.MulInt64(deltaT)
	return factor.MulInt(principal).TruncateInt()
}

// distributeAccrualToCaps adds the interest amount to each touched asset's
// debt_total proportional to the position's current collateral ratios.
func distributeAccrualToCaps(basket *Basket, held []CAsset, ratios []math.LegacyDec, interest math.Int) {
	for i, c := range held {
		idx := basket.FindSupplyCap(c.Info)
		if idx < 0 {
			continue
		}
		share := ratios[i].MulInt(interest).TruncateInt()
		basket.SupplyCaps[idx].DebtTotal = basket.SupplyCaps[idx].DebtTotal.Add(share)
	}
}

// AccrueCreditPrice advances the redemption price: credit_price *=
// (1 + r_credit * Δt / yr). r_credit's sign is chosen by comparing the
// observed debt-token TWAP against the internal peg (1.0), bounded by
// cpc_margin_of_error, and is forced to zero (no drift) when a negative
// direction is indicated but basket.NegativeRates is false.
func (m *RateModel) AccrueCreditPrice(basket *Basket, now int64, observedTWAP math.LegacyDec) {
	deltaT := now - basket.CreditLastAccrued
	if basket.CreditLastAccrued == 0 {
		basket.CreditLastAccrued = now
		return
	}
	if deltaT <= 0 {
		return
	}

	deviation := observedTWAP.Sub(decOne)
	magnitude := deviation.Abs()
	if magnitude.GT(basket.CPCMarginOfError) {
		magnitude = basket.CPCMarginOfError
	}
	negative := deviation.IsNegative()
	if negative && !basket.NegativeRates {
		basket.CreditLastAccrued = now
		return
	}
	rCredit := magnitude
	if negative {
		rCredit = rCredit.Neg()
	}

	perSecond := rCredit.QuoInt64(SecondsPerYear)
	drift := perSecond.MulInt64(deltaT)
	basket.CreditPrice.Value = basket.CreditPrice.Value.Mul(decOne.Add(drift))
	basket.CreditLastAccrued = now
}

package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// RiskEngine is component D: supply-cap tallying and position solvency.
type RiskEngine struct {
	kernel *PriceKernel
	store  Store
}

// NewRiskEngine wires the risk engine to the collaborators it needs to price
// a basket.
func NewRiskEngine(kernel *PriceKernel, store Store) *RiskEngine {
	return &RiskEngine{kernel: kernel, store: store}
}

// volatilityFloor keeps a transformed cap ratio from collapsing to zero
// under a runaway volatility index.
var volatilityFloor = math.LegacyNewDecWithPrec(5, 2) // 0.05

// transformCapsByVolatility dampens each cap's ratio by its volatility index:
// effective_ratio = cap_ratio / max(index, 1), floored at volatilityFloor.
// The index is read as stored on each SupplyCap; nothing in this package
// updates or resets it.
func transformCapsByVolatility(caps []SupplyCap) []math.LegacyDec {
	out := make([]math.LegacyDec, len(caps))
	for i, c := range caps {
		divisor := c.VolatilityIndex
		if divisor.LT(decOne) {
			divisor = decOne
		}
		effective := c.CapRatio.Quo(divisor)
		if effective.LT(volatilityFloor) {
			effective = volatilityFloor
		}
		out[i] = effective
	}
	return out
}

// UpdateBasketTally adjusts each touched asset's current_supply by the
// deposited/withdrawn collateral, then re-checks every ratio against its
// (volatility-transformed) cap. It mirrors the "in_position" exemption the
// original risk engine applies: a cap breach only blocks the call when the
// position still holds (or is newly acquiring) the offending asset, so a
// pre-existing over-cap balance never blocks withdrawing a *different*
// asset, and fully draining the only asset in a position is always allowed
// even if the position was otherwise over cap.
//
// touched is the set of cAssets this call deposits or withdraws; fullPosition
// is the position's resulting (post-op) collateral set, used to decide
// whether an asset remains "in position" for the exemption above.
func (r *RiskEngine) UpdateBasketTally(ctx context.Context, now int64, basket *Basket, touched []CAsset, fullPosition []CAsset, adding bool) error {
	for _, t := range touched {
		idx := basket.FindSupplyCap(t.Info)
		if idx < 0 {
			continue
		}
		cap := &basket.SupplyCaps[idx]
		if adding {
			cap.CurrentSupply = cap.CurrentSupply.Add(t.Amount)
		} else {
			if cap.CurrentSupply.GT(t.Amount) {
				cap.CurrentSupply = cap.CurrentSupply.Sub(t.Amount)
			} else {
				cap.CurrentSupply = intZero
			}
		}
		typeIdx := basket.FindCollateralType(t.Info)
		if typeIdx >= 0 {
			basket.CollateralTypes[typeIdx].Amount = cap.CurrentSupply
		}
	}

	effectiveRatios := transformCapsByVolatility(basket.SupplyCaps)

	ratios, _, err := r.kernel.Ratios(ctx, now, basket.CollateralTypes)
	if err != nil {
		return err
	}

	for i, ratio := range ratios {
		if i >= len(basket.SupplyCaps) {
			break
		}
		inPosition := assetInPosition(basket.SupplyCaps[i].Info, touched, fullPosition, adding)
		if len(basket.SupplyCaps) > 0 && ratio.GT(effectiveRatios[i]) && inPosition {
			return &SupplyCapExceededError{
				Asset: basket.SupplyCaps[i].Info,
				Ratio: ratio,
				Cap:   effectiveRatios[i],
			}
		}
	}

	for _, mc := range basket.MultiAssetCaps {
		totalRatio := decZero
		inPosition := false
		for _, asset := range mc.Assets {
			if idx := basket.FindSupplyCap(asset); idx >= 0 && idx < len(ratios) {
				totalRatio = totalRatio.Add(ratios[idx])
			}
			if assetInPosition(asset, touched, fullPosition, adding) {
				inPosition = true
			}
		}
		if totalRatio.GT(mc.CapRatio) && inPosition {
			return ErrMultiAssetCapExceeded
		}
	}

	return nil
}

// assetInPosition mirrors the original's in_position bookkeeping: on a
// deposit, an asset is "in position" exactly when it is part of the
// deposited set. On a withdrawal, it starts "in position" if the
// post-withdrawal collateral set still carries it; if the call is in fact
// withdrawing that asset, the exemption kicks in — unless it is the single
// remaining asset in an otherwise multi-asset position, draining it down
// without fully emptying the position.
func assetInPosition(info AssetInfo, touched, fullPosition []CAsset, adding bool) bool {
	touchedHas := func() bool {
		for _, c := range touched {
			if c.Info.Equal(info) {
				return true
			}
		}
		return false
	}
	fullHas := func() bool {
		for _, c := range fullPosition {
			if c.Info.Equal(info) {
				return true
			}
		}
		return false
	}

	if adding {
		return touchedHas()
	}

	inPosition := fullHas()
	if touchedHas() {
		if fullHas() {
			inPosition = len(fullPosition) > 1
		} else {
			inPosition = false
		}
	}
	return inPosition
}

// InsolvencyCheck computes a position's current LTV against its effective
// borrow ceiling and reports whether it is insolvent under that ceiling.
// maxBorrow selects the stricter max_borrow_LTV bound (used before issuing
// new debt) instead of the looser max_LTV bound (used for liquidation
// eligibility).
// The fifth return value, availableFee, is the caller's dynamic liquidation
// reward ceiling: how far current_LTV sits above the effective ceiling,
// clamped at zero for a solvent position. It is zero whenever insolvent is
// false, since the position is trivially not eligible for liquidation.
func (r *RiskEngine) InsolvencyCheck(ctx context.Context, now int64, position *Position, creditPrice math.LegacyDec, maxBorrow bool) (insolvent bool, currentLTV, ceiling, availableFee math.LegacyDec, err error) {
	if len(position.Collateral) == 0 {
		if position.CreditAmount.IsZero() {
			return false, decZero, decZero, decZero, nil
		}
		return true, decOne, decZero, decOne, nil
	}

	totalValue, err := r.kernel.TotalValue(ctx, now, position.Collateral)
	if err != nil {
		return false, decZero, decZero, decZero, err
	}
	if totalValue.IsZero() {
		return true, decOne, decZero, decOne, nil
	}

	debtValue := ValueOf(position.CreditAmount, creditPrice)
	currentLTV = ratioOfValue(debtValue, totalValue)

	ratios, _, err := r.kernel.Ratios(ctx, now, position.Collateral)
	if err != nil {
		return false, decZero, decZero, decZero, err
	}
	bounds := make([]math.LegacyDec, len(position.Collateral))
	for i, c := range position.Collateral {
		if maxBorrow {
			bounds[i] = c.MaxBorrowLTV
		} else {
			bounds[i] = c.MaxLTV
		}
	}
	ceiling = weightedAverage(ratios, bounds)
	availableFee = clampNonNegative(currentLTV.Sub(ceiling))

	return currentLTV.GT(ceiling), currentLTV, ceiling, availableFee, nil
}

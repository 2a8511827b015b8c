package cdp

import (
	"context"

	"cosmossdk.io/math"
	"github.com/google/uuid"
)

// defaultLiqFee is the stability-pool liquidation fee applied on top of the
// repaid debt value when SP absorption services a position.
var defaultLiqFee = math.LegacyNewDecWithPrec(5, 2) // 5%

// LiquidationPipeline is component E: it drains an insolvent position's
// repayable collateral across the queue, stability pool, and sell-wall
// tiers in order, stopping as soon as the position is solvent or the
// collateral set is exhausted. Any debt left unrepaid after all three
// tiers is swept as bad debt against pending protocol revenue.
type LiquidationPipeline struct {
	store   Store
	kernel  *PriceKernel
	risk    *RiskEngine
	token   TokenProxy
	queue   LiquidationQueue
	pool    StabilityPool
	router  SwapRouter
	fee     FeeDestination
}

// NewLiquidationPipeline wires the pipeline to its collaborators. queue,
// pool, and router may be nil to disable the corresponding tier (e.g. in a
// basket with LiqQueueConfigured == false). fee may be nil, which simply
// disables the protocol's own liquidation fee cut.
func NewLiquidationPipeline(store Store, kernel *PriceKernel, risk *RiskEngine, token TokenProxy, queue LiquidationQueue, pool StabilityPool, router SwapRouter, fee FeeDestination) *LiquidationPipeline {
	return &LiquidationPipeline{store: store, kernel: kernel, risk: risk, token: token, queue: queue, pool: pool, router: router, fee: fee}
}

// borrowLTVs extracts each held cAsset's max_borrow_LTV, in collateral order.
func borrowLTVs(collateral []CAsset) []math.LegacyDec {
	out := make([]math.LegacyDec, len(collateral))
	for i, c := range collateral {
		out[i] = c.MaxBorrowLTV
	}
	return out
}

// Liquidate begins liquidating positionID on behalf of caller. It verifies
// the position is actually insolvent under the looser max_LTV bound (the
// bound liquidation eligibility uses, distinct from the max_borrow_LTV bound
// issuance uses), then opens a propagation record and fans out to whichever
// tiers are configured.
func (p *LiquidationPipeline) Liquidate(ctx context.Context, now int64, basket *Basket, owner string, positionID uint64, caller string) error {
	positions, err := p.store.GetPositions(owner)
	if err != nil {
		return err
	}
	idx := -1
	for i := range positions {
		if positions[i].ID == positionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NonExistentPositionError{ID: positionID}
	}
	target := positions[idx]

	insolvent, currentLTV, ceiling, availableFee, err := p.risk.InsolvencyCheck(ctx, now, &target, basket.CreditPrice.Value, false)
	if err != nil {
		return err
	}
	if !insolvent {
		return ErrPositionSolvent
	}
	_ = ceiling

	ratios, prices, err := p.kernel.Ratios(ctx, now, target.Collateral)
	if err != nil {
		return err
	}

	// repay_value is the slice of the loan a single liquidation call closes
	// out: just enough that avg_borrow_LTV/current_LTV returns to par,
	// capped at loan_value. A result below debt_minimum is raised to
	// debt_minimum when loan_value - debt_minimum >= debt_minimum, and
	// otherwise becomes the full loan_value.
	loanValue := ValueOf(target.CreditAmount, basket.CreditPrice.Value)
	avgBorrowLTV := weightedAverage(ratios, borrowLTVs(target.Collateral))
	repayValue := loanValue
	if currentLTV.IsPositive() {
		repayValue = loanValue.Sub(avgBorrowLTV.Quo(currentLTV).MulInt(loanValue).TruncateInt())
	}
	if repayValue.GT(loanValue) {
		repayValue = loanValue
	}
	if repayValue.LT(basket.DebtMinimum) {
		if loanValue.Sub(basket.DebtMinimum).GTE(basket.DebtMinimum) {
			repayValue = basket.DebtMinimum
		} else {
			repayValue = loanValue
		}
	}

	id := uuid.NewString()
	prop := &LiquidationPropagation{
		ID:               id,
		TargetPositionID: positionID,
		PositionOwner:    owner,
		TargetSnapshot:   target,
		CAssetPrices:     prices,
		CAssetRatios:     ratios,
		SPLiqFee:         defaultLiqFee,
		TotalRepaid:      intZero,
		CallerFeeValuePaid: intZero,
		LiquidatedAssets: make([]math.Int, len(target.Collateral)),
		LQLeftoverCredit: repayValue,
		SellWallLeftover: intZero,
		Caller:           caller,
	}
	for i := range prop.LiquidatedAssets {
		prop.LiquidatedAssets[i] = intZero
	}

	if err := p.store.PutLiquidationPropagation(id, prop); err != nil {
		return err
	}

	// Caller/protocol fees are computed once, from the collateral equivalent
	// of repay_value, and layered on as extra collateral deductions on top
	// of whatever the three tiers below actually absorb — they do not
	// reduce the credit the tiers repay.
	for i, held := range target.Collateral {
		if repayValue.IsZero() || i >= len(ratios) {
			continue
		}
		repayShareValue := ratios[i].MulInt(repayValue).TruncateInt()
		repayCollateralAmt, err := AmountOf(repayShareValue, prices[i])
		if err != nil {
			return err
		}
		repayCollateralAmt = minInt(repayCollateralAmt, held.Amount)

		callerFeeAmt := availableFee.MulInt(repayCollateralAmt).TruncateInt()
		callerFeeAmt = minInt(callerFeeAmt, held.Amount.Sub(prop.LiquidatedAssets[i]))
		if callerFeeAmt.IsPositive() {
			if err := p.token.Transfer(ctx, held.Info, callerFeeAmt, caller); err != nil {
				return err
			}
			prop.LiquidatedAssets[i] = prop.LiquidatedAssets[i].Add(callerFeeAmt)
			prop.CallerFeeValuePaid = prop.CallerFeeValuePaid.Add(ValueOf(callerFeeAmt, prices[i]))
		}

		protocolFeeRate := basket.LiqFee
		if protocolFeeRate.IsNil() {
			protocolFeeRate = decZero
		}
		protocolFeeAmt := protocolFeeRate.MulInt(repayCollateralAmt).TruncateInt()
		protocolFeeAmt = minInt(protocolFeeAmt, held.Amount.Sub(prop.LiquidatedAssets[i]))
		if protocolFeeAmt.IsPositive() && p.fee != nil {
			if err := p.fee.DepositFee(ctx, held.Info.String(), protocolFeeAmt); err != nil {
				return err
			}
			prop.LiquidatedAssets[i] = prop.LiquidatedAssets[i].Add(protocolFeeAmt)
		}
	}

	remaining := prop.LQLeftoverCredit
	if p.queue != nil && basket.LiqQueueConfigured && remaining.IsPositive() {
		remaining, err = p.runQueueTier(ctx, basket, &target, prop, remaining)
		if err != nil {
			return err
		}
	}
	if p.pool != nil && remaining.IsPositive() {
		remaining, err = p.runStabilityPoolTier(ctx, basket, &target, prop, remaining)
		if err != nil {
			return err
		}
	}
	if p.router != nil && remaining.IsPositive() {
		remaining, err = p.runSellWallTier(ctx, basket, &target, prop, remaining)
		if err != nil {
			return err
		}
	}

	if remaining.IsPositive() {
		p.sweepBadDebt(basket, remaining)
	}

	target.CreditAmount = target.CreditAmount.Sub(prop.TotalRepaid)
	if target.CreditAmount.IsNegative() {
		target.CreditAmount = intZero
	}
	for i, amt := range prop.LiquidatedAssets {
		target.Collateral[i].Amount = target.Collateral[i].Amount.Sub(amt)
		if target.Collateral[i].Amount.IsNegative() {
			target.Collateral[i].Amount = intZero
		}
	}
	if target.IsEmpty() && target.CreditAmount.IsZero() {
		positions = append(positions[:idx], positions[idx+1:]...)
	} else {
		positions[idx] = target
	}

	liquidated := make([]CAsset, 0, len(prop.LiquidatedAssets))
	for i, amt := range prop.LiquidatedAssets {
		if amt.IsPositive() {
			liquidated = append(liquidated, CAsset{Info: prop.TargetSnapshot.Collateral[i].Info, Amount: amt})
		}
	}
	if err := p.risk.UpdateBasketTally(ctx, now, basket, liquidated, target.Collateral, false); err != nil {
		return err
	}

	if err := p.store.PutPositions(owner, positions); err != nil {
		return err
	}
	if err := p.store.PutBasket(basket); err != nil {
		return err
	}
	return p.store.DeleteLiquidationPropagation(id)
}

// runQueueTier asks the order-book liquidator how much of each held asset it
// can absorb at the cached price and commits whatever it can take, walking
// the position's collateral in its stored order.
func (p *LiquidationPipeline) runQueueTier(ctx context.Context, basket *Basket, target *Position, prop *LiquidationPropagation, remaining math.Int) (math.Int, error) {
	for i, held := range target.Collateral {
		if !remaining.IsPositive() {
			break
		}
		absorbable, err := p.queue.CheckAbsorb(ctx, held.Info, held.Amount, prop.CAssetPrices[i])
		if err != nil {
			return remaining, err
		}
		if !absorbable.IsPositive() {
			continue
		}
		take := minInt(absorbable, remaining)
		collateralAmount, err := AmountOf(take, prop.CAssetPrices[i])
		if err != nil {
			return remaining, err
		}
		collateralAmount = minInt(collateralAmount, held.Amount)
		if err := p.queue.Enqueue(ctx, held.Info, collateralAmount, take); err != nil {
			return remaining, err
		}
		prop.LiquidatedAssets[i] = prop.LiquidatedAssets[i].Add(collateralAmount)
		prop.TotalRepaid = prop.TotalRepaid.Add(take)
		remaining = remaining.Sub(take)
	}
	return remaining, nil
}

// runStabilityPoolTier offers the remaining debt to the stability pool and,
// on acceptance, distributes the proportional collateral share to it.
func (p *LiquidationPipeline) runStabilityPoolTier(ctx context.Context, basket *Basket, target *Position, prop *LiquidationPropagation, remaining math.Int) (math.Int, error) {
	absorbable, err := p.pool.CheckAbsorb(ctx, basket.CreditDenom, remaining)
	if err != nil {
		return remaining, err
	}
	if !absorbable.IsPositive() {
		return remaining, nil
	}
	take := minInt(absorbable, remaining)
	feeMultiplier := decOne.Add(prop.SPLiqFee)
	takeWithFee := feeMultiplier.MulInt(take).TruncateInt()

	assets := make([]AssetInfo, len(target.Collateral))
	amounts := make([]math.Int, len(target.Collateral))
	for i, held := range target.Collateral {
		assets[i] = held.Info
		share := prop.CAssetRatios[i].MulInt(takeWithFee).TruncateInt()
		value, err := AmountOf(share, prop.CAssetPrices[i])
		if err != nil {
			return remaining, err
		}
		value = minInt(value, held.Amount.Sub(prop.LiquidatedAssets[i]))
		amounts[i] = value
	}

	if err := p.pool.Liquidate(ctx, basket.CreditDenom, take); err != nil {
		return remaining, err
	}
	if err := p.pool.Distribute(ctx, assets, amounts, take); err != nil {
		return remaining, err
	}
	for i, amt := range amounts {
		prop.LiquidatedAssets[i] = prop.LiquidatedAssets[i].Add(amt)
	}
	prop.TotalRepaid = prop.TotalRepaid.Add(take)
	return remaining.Sub(take), nil
}

// runSellWallTier routes the remaining collateral through the AMM as a last
// resort. The router call is fire-and-forget (ExecuteSwaps' eventual repay
// lands through Repay called back by the router), so the pipeline records
// the intended leftover here and optimistically treats it as repaid. A
// router failure on one asset skips that asset without recording it as sold
// or repaid, so its share stays unrepaid (and is swept as bad debt by
// Liquidate) rather than blocking this call.
func (p *LiquidationPipeline) runSellWallTier(ctx context.Context, basket *Basket, target *Position, prop *LiquidationPropagation, remaining math.Int) (math.Int, error) {
	for i, held := range target.Collateral {
		left := held.Amount.Sub(prop.LiquidatedAssets[i])
		if !left.IsPositive() || !remaining.IsPositive() {
			continue
		}
		sellAmount, err := AmountOf(remaining, prop.CAssetPrices[i])
		if err != nil {
			return remaining, err
		}
		sellAmount = minInt(sellAmount, left)
		if !sellAmount.IsPositive() {
			continue
		}
		if err := p.router.ExecuteSwaps(ctx, held.Info, sellAmount, basket.CreditDenom, math.LegacyNewDecWithPrec(2, 2)); err != nil {
			continue
		}
		prop.LiquidatedAssets[i] = prop.LiquidatedAssets[i].Add(sellAmount)
		repaidValue := ValueOf(sellAmount, prop.CAssetPrices[i])
		repaidCredit, err := AmountOf(repaidValue, basket.CreditPrice.Value)
		if err != nil {
			return remaining, err
		}
		repaidCredit = minInt(repaidCredit, remaining)
		prop.TotalRepaid = prop.TotalRepaid.Add(repaidCredit)
		remaining = remaining.Sub(repaidCredit)
	}
	return remaining, nil
}

// sweepBadDebt writes off debt no tier could absorb against pending
// protocol revenue, flooring at zero rather than letting revenue go
// negative.
func (p *LiquidationPipeline) sweepBadDebt(basket *Basket, unrepaid math.Int) {
	covered := minInt(unrepaid, basket.PendingRevenue)
	basket.PendingRevenue = basket.PendingRevenue.Sub(covered)
}

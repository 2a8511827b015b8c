package cdp

import (
	"context"

	"cosmossdk.io/math"
	"github.com/google/uuid"
)

const maxPositionsPerOwner = 9

// Ledger is component C: the Position Ledger. It handles deposit, withdraw,
// increase-debt, repay and close-position. The Liquidation Pipeline and the
// Redemption Market also write positions and the basket through the Store
// when the Engine calls them directly.
type Ledger struct {
	store      Store
	kernel     *PriceKernel
	risk       *RiskEngine
	rates      *RateModel
	token      TokenProxy
	redemption *RedemptionMarket
	router     SwapRouter
}

// NewLedger wires the Position Ledger to its collaborators. redemption
// backs the forced opt-in a hike_rates deposit triggers; router backs
// close_position's sell path.
func NewLedger(store Store, kernel *PriceKernel, risk *RiskEngine, rates *RateModel, token TokenProxy, redemption *RedemptionMarket, router SwapRouter) *Ledger {
	return &Ledger{store: store, kernel: kernel, risk: risk, rates: rates, token: token, redemption: redemption, router: router}
}

func (l *Ledger) loadBasket() (*Basket, error) {
	basket, err := l.store.GetBasket()
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, ErrPoolNotConfigured
	}
	return basket, nil
}

// assertCollateral maps each deposited asset against the basket's accepted
// collateral types, rejecting anything unrecognized.
func assertCollateral(basket *Basket, assets []CAsset) error {
	for _, a := range assets {
		if basket.FindCollateralType(a.Info) < 0 {
			return ErrInvalidCollateral
		}
	}
	return nil
}

// Deposit adds collateral to a new or existing position. positionID is nil
// to open a new position; a non-nil positionID that does not exist is an
// error rather than a silent create, so a typo never strands funds.
func (l *Ledger) Deposit(ctx context.Context, now int64, owner string, positionID *uint64, assets []CAsset) (uint64, error) {
	basket, err := l.loadBasket()
	if err != nil {
		return 0, err
	}
	if basket.Frozen {
		return 0, ErrFrozen
	}
	if err := assertCollateral(basket, assets); err != nil {
		return 0, err
	}

	positions, err := l.store.GetPositions(owner)
	if err != nil {
		return 0, err
	}

	var target *Position
	if positionID != nil {
		for i := range positions {
			if positions[i].ID == *positionID {
				target = &positions[i]
				break
			}
		}
		if target == nil {
			return 0, &NonExistentPositionError{ID: *positionID}
		}
	} else {
		if len(positions) >= maxPositionsPerOwner {
			return 0, ErrMaxPositionsReached
		}
		id, err := l.store.NextPositionID()
		if err != nil {
			return 0, err
		}
		positions = append(positions, Position{ID: id, Owner: owner, CreditAmount: intZero, LastAccrued: now})
		target = &positions[len(positions)-1]
	}

	for _, deposit := range assets {
		if idx := target.FindAsset(deposit.Info); idx >= 0 {
			target.Collateral[idx].Amount = target.Collateral[idx].Amount.Add(deposit.Amount)
		} else {
			typeIdx := basket.FindCollateralType(deposit.Info)
			held := basket.CollateralTypes[typeIdx].Clone()
			held.Amount = deposit.Amount
			target.Collateral = append(target.Collateral, held)
		}
	}

	if err := l.rates.AccruePosition(ctx, now, basket, target); err != nil {
		return 0, err
	}

	if err := l.risk.UpdateBasketTally(ctx, now, basket, assets, target.Collateral, true); err != nil {
		return 0, err
	}

	// A position holding any hike_rates collateral is forced into the
	// premium-1 redemption bucket as a mandatory entry, and the caller cannot opt it back out while it still
	// holds that asset (RedemptionMarket.EditRedemptionInfo enforces this).
	hikeAsset := false
	for _, c := range target.Collateral {
		if c.HikeRates {
			hikeAsset = true
			break
		}
	}
	if hikeAsset {
		totalValue, err := l.kernel.TotalValue(ctx, now, target.Collateral)
		if err != nil {
			return 0, err
		}
		remainingRepayment, err := AmountOf(totalValue, basket.CreditPrice.Value)
		if err != nil {
			return 0, err
		}
		if err := l.redemption.EditRedemptionInfo(owner, target.ID, remainingRepayment, 1, nil, true); err != nil {
			return 0, err
		}
	}

	if err := l.store.PutPositions(owner, positions); err != nil {
		return 0, err
	}
	if err := l.store.PutBasket(basket); err != nil {
		return 0, err
	}
	return target.ID, nil
}

// Withdraw removes collateral from a position, owner-restricted, and blocks
// any withdrawal that would leave the position insolvent under max_borrow_LTV
// (the stricter of the two bounds — insolvency_check is run against the same
// ceiling used for issuing new debt, not the looser liquidation threshold).
func (l *Ledger) Withdraw(ctx context.Context, now int64, owner string, positionID uint64, caller string, assets []CAsset) error {
	if caller != owner {
		return ErrUnauthorized
	}
	basket, err := l.loadBasket()
	if err != nil {
		return err
	}

	positions, err := l.store.GetPositions(owner)
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
	target := &positions[idx]

	if err := l.rates.AccruePosition(ctx, now, basket, target); err != nil {
		return err
	}

	for _, w := range assets {
		held := target.FindAsset(w.Info)
		if held < 0 {
			return ErrInvalidWithdrawal
		}
		if target.Collateral[held].Amount.LT(w.Amount) {
			return ErrInvalidWithdrawal
		}
	}

	// Compute the resulting collateral set before mutating, so the
	// expunged-asset rule and the risk/solvency checks see the same
	// candidate state the withdrawal would produce.
	resulting := make([]CAsset, 0, len(target.Collateral))
	for _, held := range target.Collateral {
		remaining := held.Amount
		for _, w := range assets {
			if w.Info.Equal(held.Info) {
				remaining = remaining.Sub(w.Amount)
			}
		}
		if remaining.IsPositive() {
			clone := held.Clone()
			clone.Amount = remaining
			resulting = append(resulting, clone)
		}
	}

	if err := assertNoExpungedAssetLeftBehind(basket, resulting); err != nil {
		return err
	}

	if !target.CreditAmount.IsZero() {
		insolvent, currentLTV, ceiling, _, err := l.risk.InsolvencyCheck(ctx, now, &Position{Collateral: resulting, CreditAmount: target.CreditAmount}, basket.CreditPrice.Value, true)
		if err != nil {
			return err
		}
		if insolvent {
			return &PositionInsolventError{PositionID: positionID, CurrentLTV: currentLTV, MaxLTV: ceiling, MaxBorrow: true}
		}
	}

	if err := l.risk.UpdateBasketTally(ctx, now, basket, assets, resulting, false); err != nil {
		return err
	}

	target.Collateral = resulting
	if target.IsEmpty() && target.CreditAmount.IsZero() {
		positions = append(positions[:idx], positions[idx+1:]...)
	}

	if err := l.store.PutPositions(owner, positions); err != nil {
		return err
	}
	return l.store.PutBasket(basket)
}

// assertNoExpungedAssetLeftBehind blocks a withdrawal that would leave a
// zero-cap ("expunged") asset behind at a non-zero balance without fully
// draining it, so a position can never get stuck holding an asset the basket
// no longer prices for new debt.
func assertNoExpungedAssetLeftBehind(basket *Basket, resulting []CAsset) error {
	var stuck []AssetInfo
	for _, c := range resulting {
		idx := basket.FindSupplyCap(c.Info)
		if idx >= 0 && basket.SupplyCaps[idx].CapRatio.IsZero() {
			stuck = append(stuck, c.Info)
		}
	}
	if len(stuck) > 0 {
		return &ExpungedAssetPresentError{Assets: stuck}
	}
	return nil
}

// IncreaseDebt mints new debt against a position, either a caller-supplied
// amount or one solved to reach targetLTV. amount takes precedence when both
// are supplied.
func (l *Ledger) IncreaseDebt(ctx context.Context, now int64, owner string, positionID uint64, caller string, amount *math.Int, targetLTV *math.LegacyDec, mintTo string) error {
	if caller != owner {
		return ErrUnauthorized
	}
	basket, err := l.loadBasket()
	if err != nil {
		return err
	}
	if basket.Frozen {
		return ErrFrozen
	}

	positions, err := l.store.GetPositions(owner)
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
	target := &positions[idx]

	if err := l.rates.AccruePosition(ctx, now, basket, target); err != nil {
		return err
	}

	var draw math.Int
	if amount != nil {
		draw = *amount
	} else if targetLTV != nil {
		draw, err = l.solveAmountForTargetLTV(ctx, now, basket, target, *targetLTV)
		if err != nil {
			return err
		}
	} else {
		return &CustomError{Msg: "increase_debt requires either amount or target LTV"}
	}

	target.CreditAmount = target.CreditAmount.Add(draw)

	debtValue := ValueOf(target.CreditAmount, basket.CreditPrice.Value)
	if debtValue.LT(basket.DebtMinimum) {
		return &BelowMinimumDebtError{Minimum: basket.DebtMinimum, Debt: debtValue}
	}

	if !basket.OracleSet {
		return ErrNoRepaymentPrice
	}

	insolvent, currentLTV, ceiling, _, err := l.risk.InsolvencyCheck(ctx, now, target, basket.CreditPrice.Value, true)
	if err != nil {
		return err
	}
	if insolvent {
		return &PositionInsolventError{PositionID: positionID, CurrentLTV: currentLTV, MaxLTV: ceiling, MaxBorrow: true}
	}

	recipient := owner
	if mintTo != "" {
		recipient = mintTo
	}
	if err := l.token.Mint(ctx, basket.CreditDenom, draw, recipient); err != nil {
		return err
	}

	if err := l.store.PutPositions(owner, positions); err != nil {
		return err
	}
	return l.store.PutBasket(basket)
}

// solveAmountForTargetLTV inverts target_LTV = (debt_value + draw) /
// collateral_value for draw, rejecting a target outside (0, max_borrow_LTV]
// (the position's ratio-weighted max_borrow_LTV) or not above the current LTV.
func (l *Ledger) solveAmountForTargetLTV(ctx context.Context, now int64, basket *Basket, position *Position, targetLTV math.LegacyDec) (math.Int, error) {
	if !targetLTV.IsPositive() {
		return math.Int{}, &InvalidLTVError{Target: targetLTV}
	}
	ratios, _, err := l.kernel.Ratios(ctx, now, position.Collateral)
	if err != nil {
		return math.Int{}, err
	}
	if targetLTV.GT(weightedAverage(ratios, borrowLTVs(position.Collateral))) {
		return math.Int{}, &InvalidLTVError{Target: targetLTV}
	}
	totalValue, err := l.kernel.TotalValue(ctx, now, position.Collateral)
	if err != nil {
		return math.Int{}, err
	}
	debtValue := ValueOf(position.CreditAmount, basket.CreditPrice.Value)
	targetDebtValue := targetLTV.MulInt(totalValue).TruncateInt()
	if targetDebtValue.LTE(debtValue) {
		return math.Int{}, &InvalidLTVError{Target: targetLTV}
	}
	drawValue := targetDebtValue.Sub(debtValue)
	return AmountOf(drawValue, basket.CreditPrice.Value)
}

// Repay burns debt off a position. A repayment larger than the outstanding
// balance is rejected rather than silently clamped, so a caller's accounting
// never drifts from what actually burned.
func (l *Ledger) Repay(ctx context.Context, now int64, owner string, positionID uint64, payer string, amount math.Int) error {
	basket, err := l.loadBasket()
	if err != nil {
		return err
	}

	positions, err := l.store.GetPositions(owner)
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
	target := &positions[idx]

	if err := l.rates.AccruePosition(ctx, now, basket, target); err != nil {
		return err
	}

	if amount.GT(target.CreditAmount) {
		return ErrExcessRepayment
	}

	resultingDebt := target.CreditAmount.Sub(amount)
	if resultingDebt.IsPositive() && payer != basket.RangeBoundVault {
		resultingValue := ValueOf(resultingDebt, basket.CreditPrice.Value)
		if resultingValue.LT(basket.DebtMinimum) {
			return &BelowMinimumDebtError{Minimum: basket.DebtMinimum, Debt: resultingValue}
		}
	}

	if err := l.token.Burn(ctx, basket.CreditDenom, amount, payer); err != nil {
		return err
	}

	target.CreditAmount = resultingDebt

	if target.CreditAmount.IsZero() && target.IsEmpty() {
		positions = append(positions[:idx], positions[idx+1:]...)
	}

	if err := l.store.PutPositions(owner, positions); err != nil {
		return err
	}
	return l.store.PutBasket(basket)
}

// ClosePosition fully repays a position by selling its collateral through
// the swap router, rather than requiring the owner to supply debt tokens.
// It reserves credit_value*(1+maxSpread) of collateral value per spec.md's
// slippage allowance, swaps only the credit_value share (the actual debt),
// and refunds the slippage buffer's share directly as unsold collateral to
// sendTo — mirroring the sell-wall tier's synchronous treatment of
// ExecuteSwaps (see liquidation.go's runSellWallTier) rather than waiting on
// a callback.
func (l *Ledger) ClosePosition(ctx context.Context, now int64, owner string, positionID uint64, caller string, sendTo string, maxSpread math.LegacyDec) error {
	if caller != owner {
		return ErrUnauthorized
	}
	basket, err := l.loadBasket()
	if err != nil {
		return err
	}
	if basket.Frozen {
		return ErrFrozen
	}
	if !basket.OracleSet {
		return ErrNoRepaymentPrice
	}

	positions, err := l.store.GetPositions(owner)
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
	target := &positions[idx]

	if err := l.rates.AccruePosition(ctx, now, basket, target); err != nil {
		return err
	}
	if target.CreditAmount.IsZero() {
		return &CustomError{Msg: "close_position called against a position with no outstanding debt"}
	}

	ratios, prices, err := l.kernel.Ratios(ctx, now, target.Collateral)
	if err != nil {
		return err
	}

	recipient := sendTo
	if recipient == "" {
		recipient = owner
	}

	id := uuid.NewString()
	prop := &ClosePositionPropagation{
		ID:             id,
		PositionID:     positionID,
		Owner:          owner,
		SendTo:         recipient,
		RemainingSwaps: len(target.Collateral),
		CAssetRatios:   ratios,
	}
	if err := l.store.PutClosePositionPropagation(id, prop); err != nil {
		return err
	}

	creditValue := ValueOf(target.CreditAmount, basket.CreditPrice.Value)
	consumed := make([]math.Int, len(target.Collateral))
	for i, held := range target.Collateral {
		if i >= len(ratios) {
			continue
		}
		neededShareValue := ratios[i].MulInt(creditValue).TruncateInt()
		neededAmt, err := AmountOf(neededShareValue, prices[i])
		if err != nil {
			return err
		}
		neededAmt = minInt(neededAmt, held.Amount)

		bufferShareValue := ratios[i].Mul(maxSpread).MulInt(creditValue).TruncateInt()
		bufferAmt, err := AmountOf(bufferShareValue, prices[i])
		if err != nil {
			return err
		}
		bufferAmt = minInt(bufferAmt, held.Amount.Sub(neededAmt))

		if neededAmt.IsPositive() {
			if err := l.router.ExecuteSwaps(ctx, held.Info, neededAmt, basket.CreditDenom, maxSpread); err != nil {
				return err
			}
		}
		if bufferAmt.IsPositive() {
			if err := l.token.Transfer(ctx, held.Info, bufferAmt, recipient); err != nil {
				return err
			}
		}
		consumed[i] = neededAmt.Add(bufferAmt)
		prop.RemainingSwaps--
	}

	target.CreditAmount = intZero
	for i, amt := range consumed {
		if amt.IsPositive() {
			target.Collateral[i].Amount = target.Collateral[i].Amount.Sub(amt)
			if target.Collateral[i].Amount.IsNegative() {
				target.Collateral[i].Amount = intZero
			}
		}
	}

	liquidated := make([]CAsset, 0, len(consumed))
	for i, amt := range consumed {
		if amt.IsPositive() {
			liquidated = append(liquidated, CAsset{Info: target.Collateral[i].Info, Amount: amt})
		}
	}
	if err := l.risk.UpdateBasketTally(ctx, now, basket, liquidated, target.Collateral, false); err != nil {
		return err
	}

	if target.IsEmpty() {
		positions = append(positions[:idx], positions[idx+1:]...)
	}

	if err := l.store.PutPositions(owner, positions); err != nil {
		return err
	}
	if err := l.store.PutBasket(basket); err != nil {
		return err
	}
	return l.store.DeleteClosePositionPropagation(id)
}

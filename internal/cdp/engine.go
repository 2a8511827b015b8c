package cdp

import (
	"context"

	"cosmossdk.io/math"
)

const moduleName = "cdp"

// Engine orchestrates the seven components (price kernel, rate model,
// ledger, risk engine, liquidation pipeline, redemption market, revenue
// router) behind a single Store and a single set of external
// collaborators. Callers interact with Engine only; the component types
// are exported for testing each concern in isolation.
type Engine struct {
	state Store
	pause PauseView

	kernel      *PriceKernel
	rates       *RateModel
	risk        *RiskEngine
	ledger      *Ledger
	liquidation *LiquidationPipeline
	redemption  *RedemptionMarket
	revenue     *RevenueRouter

	token  TokenProxy
	oracle Oracle
	pool   PoolQuerier
	queue  LiquidationQueue
	sp     StabilityPool
	router SwapRouter
	fee    FeeDestination

	oracleTimeLimit int64
}

// NewEngine constructs an unwired engine; SetState and the SetXxx
// collaborator setters below must run before any operation is called.
func NewEngine(oracleTimeLimit int64) *Engine {
	return &Engine{oracleTimeLimit: oracleTimeLimit}
}

// SetState wires the engine to its persistence port.
func (e *Engine) SetState(state Store) { e.state = state }

// SetPauses wires the module-wide circuit breaker.
func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pause = p
}

// SetTokenProxy wires the mint/burn/transfer collaborator.
func (e *Engine) SetTokenProxy(token TokenProxy) {
	if e == nil {
		return
	}
	e.token = token
	e.rewire()
}

// SetOracle wires the price-discovery collaborator.
func (e *Engine) SetOracle(oracle Oracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
	e.rewire()
}

// SetPoolQuerier wires the LP decomposition collaborator.
func (e *Engine) SetPoolQuerier(pool PoolQuerier) {
	if e == nil {
		return
	}
	e.pool = pool
	e.rewire()
}

// SetLiquidationQueue wires the order-book liquidation tier. A nil queue
// disables that tier even when basket.LiqQueueConfigured is true.
func (e *Engine) SetLiquidationQueue(queue LiquidationQueue) {
	if e == nil {
		return
	}
	e.queue = queue
	e.rewire()
}

// SetStabilityPool wires the pooled liquidation tier.
func (e *Engine) SetStabilityPool(sp StabilityPool) {
	if e == nil {
		return
	}
	e.sp = sp
	e.rewire()
}

// SetSwapRouter wires the AMM sell-wall tier and close-position sell path.
func (e *Engine) SetSwapRouter(router SwapRouter) {
	if e == nil {
		return
	}
	e.router = router
	e.rewire()
}

// SetFeeDestination wires the staking/fee-distribution endpoint the revenue
// router forwards to.
func (e *Engine) SetFeeDestination(fee FeeDestination) {
	if e == nil {
		return
	}
	e.fee = fee
	e.rewire()
}

// rewire reconstructs every component against the engine's current
// collaborator set. Cheap and safe to call after every SetXxx since none of
// the components hold mutable state of their own — everything they touch
// lives in Store.
func (e *Engine) rewire() {
	if e.state == nil {
		return
	}
	e.kernel = NewPriceKernel(e.state, e.oracle, e.pool, e.oracleTimeLimit)
	e.rates = NewRateModel(e.kernel)
	e.risk = NewRiskEngine(e.kernel, e.state)
	e.revenue = NewRevenueRouter(e.token, e.fee)
	e.redemption = NewRedemptionMarket(e.state, e.kernel, e.token, e.revenue)
	e.ledger = NewLedger(e.state, e.kernel, e.risk, e.rates, e.token, e.redemption, e.router)
	e.liquidation = NewLiquidationPipeline(e.state, e.kernel, e.risk, e.token, e.queue, e.sp, e.router, e.fee)
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return ErrPoolNotConfigured
	}
	if e.kernel == nil {
		e.rewire()
	}
	if e.pause != nil && e.pause.IsPaused(moduleName) {
		return ErrFrozen
	}
	return nil
}

// Deposit adds collateral to a new or existing position.
func (e *Engine) Deposit(ctx context.Context, now int64, owner string, positionID *uint64, assets []CAsset) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	return e.ledger.Deposit(ctx, now, owner, positionID, assets)
}

// Withdraw removes collateral from a position.
func (e *Engine) Withdraw(ctx context.Context, now int64, owner string, positionID uint64, caller string, assets []CAsset) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.ledger.Withdraw(ctx, now, owner, positionID, caller, assets)
}

// IncreaseDebt mints new debt against a position.
func (e *Engine) IncreaseDebt(ctx context.Context, now int64, owner string, positionID uint64, caller string, amount *math.Int, targetLTV *math.LegacyDec, mintTo string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.ledger.IncreaseDebt(ctx, now, owner, positionID, caller, amount, targetLTV, mintTo)
}

// Repay burns debt off a position.
func (e *Engine) Repay(ctx context.Context, now int64, owner string, positionID uint64, payer string, amount math.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.ledger.Repay(ctx, now, owner, positionID, payer, amount)
}

// Liquidate drains an insolvent position across the liquidation tiers.
func (e *Engine) Liquidate(ctx context.Context, now int64, owner string, positionID uint64, caller string) error {
	if err := e.guard(); err != nil {
		return err
	}
	basket, err := e.state.GetBasket()
	if err != nil {
		return err
	}
	if basket == nil {
		return ErrPoolNotConfigured
	}
	return e.liquidation.Liquidate(ctx, now, basket, owner, positionID, caller)
}

// EditRedemptionInfo opts a position into or out of the redemption book.
func (e *Engine) EditRedemptionInfo(owner string, positionID uint64, remainingRepayment math.Int, premium uint32, restricted []AssetInfo, mandatory bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.redemption.EditRedemptionInfo(owner, positionID, remainingRepayment, premium, restricted, mandatory)
}

// RedeemForCollateral redeems debt tokens for a discounted collateral share.
func (e *Engine) RedeemForCollateral(ctx context.Context, now int64, redeemer string, redeemAmount math.Int, maxPremium uint32) error {
	if err := e.guard(); err != nil {
		return err
	}
	basket, err := e.state.GetBasket()
	if err != nil {
		return err
	}
	if basket == nil {
		return ErrPoolNotConfigured
	}
	return e.redemption.RedeemForCollateral(ctx, now, basket, redeemer, redeemAmount, maxPremium)
}

// ClosePosition fully repays a position by selling its own collateral
// through the swap router, rather than requiring the owner to supply debt
// tokens directly.
func (e *Engine) ClosePosition(ctx context.Context, now int64, owner string, positionID uint64, caller string, sendTo string, maxSpread math.LegacyDec) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.ledger.ClosePosition(ctx, now, owner, positionID, caller, sendTo, maxSpread)
}

// RouteRevenue sweeps accrued interest to its configured destinations.
func (e *Engine) RouteRevenue(ctx context.Context) error {
	if err := e.guard(); err != nil {
		return err
	}
	basket, err := e.state.GetBasket()
	if err != nil {
		return err
	}
	if basket == nil {
		return ErrPoolNotConfigured
	}
	if err := e.revenue.RouteRevenue(ctx, basket, basket.PendingRevenue); err != nil {
		return err
	}
	return e.state.PutBasket(basket)
}

// GetPosition returns the stored position and its current LTV at the Price
// Kernel's unit prices (a cached price within oracle_time_limit, else a fresh
// oracle read that refreshes the price cache). It does not write the
// position or the basket.
func (e *Engine) GetPosition(ctx context.Context, now int64, owner string, positionID uint64) (Position, math.LegacyDec, error) {
	if err := e.guard(); err != nil {
		return Position{}, decZero, err
	}
	positions, err := e.state.GetPositions(owner)
	if err != nil {
		return Position{}, decZero, err
	}
	for _, p := range positions {
		if p.ID == positionID {
			basket, err := e.state.GetBasket()
			if err != nil {
				return Position{}, decZero, err
			}
			if basket == nil {
				return Position{}, decZero, ErrPoolNotConfigured
			}
			_, currentLTV, _, _, err := e.risk.InsolvencyCheck(ctx, now, &p, basket.CreditPrice.Value, false)
			if err != nil {
				return Position{}, decZero, err
			}
			return p, currentLTV, nil
		}
	}
	return Position{}, decZero, &NonExistentPositionError{ID: positionID}
}

// GetBasket returns the current basket snapshot.
func (e *Engine) GetBasket(ctx context.Context) (*Basket, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	basket, err := e.state.GetBasket()
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, ErrPoolNotConfigured
	}
	return basket, nil
}

// AccrueCreditPrice advances the redemption peg's drift for the current
// basket given an externally observed debt-token TWAP.
func (e *Engine) AccrueCreditPrice(ctx context.Context, now int64, observedTWAP math.LegacyDec) error {
	if err := e.guard(); err != nil {
		return err
	}
	basket, err := e.state.GetBasket()
	if err != nil {
		return err
	}
	if basket == nil {
		return ErrPoolNotConfigured
	}
	e.rates.AccrueCreditPrice(basket, now, observedTWAP)
	return e.state.PutBasket(basket)
}

package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// moduleRevenueAccount is the custody account pending_revenue sits in before
// routing; debt tokens burned off the sweep come from this account, never a
// user's.
const moduleRevenueAccount = "cdp/revenue"

// routeThreshold is the minimum credit value (either the basket's sitting
// pending_revenue or the inflow that just triggered this call) a route
// requires before it bothers distributing/burning; below it, revenue just
// keeps accumulating toward the next call.
var routeThreshold = math.NewInt(50_000_000)

// RevenueRouter is component G: it sweeps accrued interest off the basket
// and splits it between burning debt supply and configured fee
// destinations (e.g. a staking contract).
type RevenueRouter struct {
	token TokenProxy
	fee   FeeDestination
}

// NewRevenueRouter wires the router to its collaborators. fee may be nil
// when basket.RevToStakers is false.
func NewRevenueRouter(token TokenProxy, fee FeeDestination) *RevenueRouter {
	return &RevenueRouter{token: token, fee: fee}
}

// RouteRevenue burns basket.PendingRevenue's share destined to no
// configured recipient and forwards the rest through the router's single
// FeeDestination, one DepositFee call per RevenueDestination sized by its
// ratio; a destination's Address is not passed on. Any dust left after
// rounding every share down is also burned, so no revenue is ever minted as
// net-new supply.
//
// x is purely a gating signal — the inflow (if any) that prompted this
// call, e.g. a redemption fee the caller already folded into
// basket.PendingRevenue before calling. RouteRevenue never adds x to
// PendingRevenue itself; double-counting it here would mean every caller
// that pre-adds its own inflow gets it routed twice.
func (r *RevenueRouter) RouteRevenue(ctx context.Context, basket *Basket, x math.Int) error {
	total := basket.PendingRevenue
	if !total.IsPositive() {
		return nil
	}
	gate := total
	if x.GT(gate) {
		gate = x
	}
	if gate.LT(routeThreshold) {
		return nil
	}

	if !basket.RevToStakers || len(basket.RevenueDestinations) == 0 || r.fee == nil {
		if err := r.token.Burn(ctx, basket.CreditDenom, total, moduleRevenueAccount); err != nil {
			return err
		}
		basket.PendingRevenue = intZero
		return nil
	}

	distributed := intZero
	for _, dest := range basket.RevenueDestinations {
		share := dest.Ratio.MulInt(total).TruncateInt()
		if !share.IsPositive() {
			continue
		}
		if err := r.fee.DepositFee(ctx, basket.CreditDenom, share); err != nil {
			return err
		}
		distributed = distributed.Add(share)
	}

	dust := total.Sub(distributed)
	if dust.IsPositive() {
		if err := r.token.Burn(ctx, basket.CreditDenom, dust, moduleRevenueAccount); err != nil {
			return err
		}
	}
	basket.PendingRevenue = intZero
	return nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/covenantlabs/cdpcore/internal/cdp"
)

// Adapter wraps the internal CDP engine behind the decimal-string Engine
// facade. It owns no state of its own; every call reads the current clock
// and forwards into the wrapped engine.
type Adapter struct {
	core *cdp.Engine
	now  func() time.Time
}

// NewAdapter constructs an Adapter over an already-wired internal engine.
func NewAdapter(core *cdp.Engine, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{core: core, now: now}
}

func (a *Adapter) clock() int64 {
	return a.now().Unix()
}

func parseInt(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid integer amount %q", s)
	}
	return v, nil
}

func parseDec(s string) (math.LegacyDec, error) {
	if s == "" {
		return math.LegacyDec{}, fmt.Errorf("empty decimal amount")
	}
	return math.LegacyNewDecFromStr(s)
}

func toDomainAssets(assets []CAsset) ([]cdp.CAsset, error) {
	out := make([]cdp.CAsset, len(assets))
	for i, a := range assets {
		amt, err := parseInt(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		out[i] = cdp.CAsset{Info: cdp.AssetInfo{Denom: a.Denom}, Amount: amt}
	}
	return out, nil
}

// Deposit forwards to the ledger's Deposit operation.
func (a *Adapter) Deposit(ctx context.Context, owner string, positionID *uint64, assets []CAsset) (uint64, error) {
	domainAssets, err := toDomainAssets(assets)
	if err != nil {
		return 0, err
	}
	return a.core.Deposit(ctx, a.clock(), owner, positionID, domainAssets)
}

// Withdraw forwards to the ledger's Withdraw operation.
func (a *Adapter) Withdraw(ctx context.Context, owner string, positionID uint64, caller string, assets []CAsset) error {
	domainAssets, err := toDomainAssets(assets)
	if err != nil {
		return err
	}
	return a.core.Withdraw(ctx, a.clock(), owner, positionID, caller, domainAssets)
}

// IncreaseDebt forwards to the ledger's IncreaseDebt operation. An empty
// amount or targetLTV is passed on as absent; when both are set, the internal
// engine uses amount and ignores targetLTV.
func (a *Adapter) IncreaseDebt(ctx context.Context, owner string, positionID uint64, caller, amount, targetLTV, mintTo string) error {
	var amountPtr *math.Int
	var ltvPtr *math.LegacyDec
	if amount != "" {
		v, err := parseInt(amount)
		if err != nil {
			return err
		}
		amountPtr = &v
	}
	if targetLTV != "" {
		v, err := parseDec(targetLTV)
		if err != nil {
			return err
		}
		ltvPtr = &v
	}
	return a.core.IncreaseDebt(ctx, a.clock(), owner, positionID, caller, amountPtr, ltvPtr, mintTo)
}

// Repay forwards to the ledger's Repay operation.
func (a *Adapter) Repay(ctx context.Context, owner string, positionID uint64, payer, amount string) error {
	amt, err := parseInt(amount)
	if err != nil {
		return err
	}
	return a.core.Repay(ctx, a.clock(), owner, positionID, payer, amt)
}

// Liquidate forwards to the liquidation pipeline.
func (a *Adapter) Liquidate(ctx context.Context, owner string, positionID uint64, caller string) error {
	return a.core.Liquidate(ctx, a.clock(), owner, positionID, caller)
}

// ClosePosition forwards to the ledger's ClosePosition operation, selling a
// position's own collateral through the swap router to fully repay it.
func (a *Adapter) ClosePosition(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error {
	spread, err := parseDec(maxSpread)
	if err != nil {
		return err
	}
	return a.core.ClosePosition(ctx, a.clock(), owner, positionID, caller, sendTo, spread)
}

// EditRedemptionInfo forwards to the redemption market's opt-in editor.
func (a *Adapter) EditRedemptionInfo(ctx context.Context, owner string, positionID uint64, remainingRepayment string, premiumBps uint32, restricted []string, mandatory bool) error {
	amt, err := parseInt(remainingRepayment)
	if err != nil {
		return err
	}
	infos := make([]cdp.AssetInfo, len(restricted))
	for i, denom := range restricted {
		infos[i] = cdp.AssetInfo{Denom: denom}
	}
	return a.core.EditRedemptionInfo(owner, positionID, amt, premiumBps, infos, mandatory)
}

// RedeemForCollateral forwards to the redemption market's walk operation.
func (a *Adapter) RedeemForCollateral(ctx context.Context, redeemer, amount string, maxPremiumBps uint32) error {
	amt, err := parseInt(amount)
	if err != nil {
		return err
	}
	return a.core.RedeemForCollateral(ctx, a.clock(), redeemer, amt, maxPremiumBps)
}

// GetPosition reads a position snapshot and re-derives its current LTV at
// the internal engine's current (possibly cached) unit prices.
func (a *Adapter) GetPosition(ctx context.Context, owner string, positionID uint64) (Position, error) {
	pos, ltv, err := a.core.GetPosition(ctx, a.clock(), owner, positionID)
	if err != nil {
		return Position{}, err
	}
	collateral := make([]CAsset, len(pos.Collateral))
	for i, c := range pos.Collateral {
		collateral[i] = CAsset{Denom: c.Info.Denom, Amount: c.Amount.String()}
	}
	return Position{
		ID:           pos.ID,
		Owner:        owner,
		Collateral:   collateral,
		CreditAmount: pos.CreditAmount.String(),
		CurrentLTV:   ltv.String(),
	}, nil
}

// GetBasket reads the current basket snapshot.
func (a *Adapter) GetBasket(ctx context.Context) (Basket, error) {
	basket, err := a.core.GetBasket(ctx)
	if err != nil {
		return Basket{}, err
	}
	caps := make([]Cap, len(basket.SupplyCaps))
	for i, c := range basket.SupplyCaps {
		caps[i] = Cap{
			Denom:           c.Info.Denom,
			CapRatio:        c.CapRatio.String(),
			CurrentSupply:   c.CurrentSupply.String(),
			VolatilityIndex: c.VolatilityIndex.String(),
		}
	}
	return Basket{
		CreditDenom:      basket.CreditDenom,
		CreditPriceValue: basket.CreditPrice.Value.String(),
		PendingRevenue:   basket.PendingRevenue.String(),
		RevToStakers:     basket.RevToStakers,
		SupplyCaps:       caps,
	}, nil
}

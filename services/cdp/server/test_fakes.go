package server

import (
	"context"

	"github.com/covenantlabs/cdpcore/services/cdp/engine"
)

type fakeEngine struct {
	depositFn             func(ctx context.Context, owner string, positionID *uint64, assets []engine.CAsset) (uint64, error)
	withdrawFn            func(ctx context.Context, owner string, positionID uint64, caller string, assets []engine.CAsset) error
	increaseDebtFn        func(ctx context.Context, owner string, positionID uint64, caller, amount, targetLTV, mintTo string) error
	repayFn               func(ctx context.Context, owner string, positionID uint64, payer, amount string) error
	liquidateFn           func(ctx context.Context, owner string, positionID uint64, caller string) error
	closePositionFn       func(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error
	editRedemptionInfoFn  func(ctx context.Context, owner string, positionID uint64, remainingRepayment string, premiumBps uint32, restricted []string, mandatory bool) error
	redeemForCollateralFn func(ctx context.Context, redeemer, amount string, maxPremiumBps uint32) error
	getPositionFn         func(ctx context.Context, owner string, positionID uint64) (engine.Position, error)
	getBasketFn           func(ctx context.Context) (engine.Basket, error)
}

func (f *fakeEngine) Deposit(ctx context.Context, owner string, positionID *uint64, assets []engine.CAsset) (uint64, error) {
	if f != nil && f.depositFn != nil {
		return f.depositFn(ctx, owner, positionID, assets)
	}
	return 0, nil
}

func (f *fakeEngine) Withdraw(ctx context.Context, owner string, positionID uint64, caller string, assets []engine.CAsset) error {
	if f != nil && f.withdrawFn != nil {
		return f.withdrawFn(ctx, owner, positionID, caller, assets)
	}
	return nil
}

func (f *fakeEngine) IncreaseDebt(ctx context.Context, owner string, positionID uint64, caller, amount, targetLTV, mintTo string) error {
	if f != nil && f.increaseDebtFn != nil {
		return f.increaseDebtFn(ctx, owner, positionID, caller, amount, targetLTV, mintTo)
	}
	return nil
}

func (f *fakeEngine) Repay(ctx context.Context, owner string, positionID uint64, payer, amount string) error {
	if f != nil && f.repayFn != nil {
		return f.repayFn(ctx, owner, positionID, payer, amount)
	}
	return nil
}

func (f *fakeEngine) Liquidate(ctx context.Context, owner string, positionID uint64, caller string) error {
	if f != nil && f.liquidateFn != nil {
		return f.liquidateFn(ctx, owner, positionID, caller)
	}
	return nil
}

func (f *fakeEngine) ClosePosition(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error {
	if f != nil && f.closePositionFn != nil {
		return f.closePositionFn(ctx, owner, positionID, caller, sendTo, maxSpread)
	}
	return nil
}

func (f *fakeEngine) EditRedemptionInfo(ctx context.Context, owner string, positionID uint64, remainingRepayment string, premiumBps uint32, restricted []string, mandatory bool) error {
	if f != nil && f.editRedemptionInfoFn != nil {
		return f.editRedemptionInfoFn(ctx, owner, positionID, remainingRepayment, premiumBps, restricted, mandatory)
	}
	return nil
}

func (f *fakeEngine) RedeemForCollateral(ctx context.Context, redeemer, amount string, maxPremiumBps uint32) error {
	if f != nil && f.redeemForCollateralFn != nil {
		return f.redeemForCollateralFn(ctx, redeemer, amount, maxPremiumBps)
	}
	return nil
}

func (f *fakeEngine) GetPosition(ctx context.Context, owner string, positionID uint64) (engine.Position, error) {
	if f != nil && f.getPositionFn != nil {
		return f.getPositionFn(ctx, owner, positionID)
	}
	return engine.Position{}, nil
}

func (f *fakeEngine) GetBasket(ctx context.Context) (engine.Basket, error) {
	if f != nil && f.getBasketFn != nil {
		return f.getBasketFn(ctx)
	}
	return engine.Basket{}, nil
}

package main

import (
	"context"
	"log/slog"

	"cosmossdk.io/math"

	"github.com/covenantlabs/cdpcore/internal/cdp"
	"github.com/covenantlabs/cdpcore/internal/cdp/memstore"
)

// runSelfCheck exercises seed scenario S1 (deposit, draw to a target LTV,
// over-ceiling withdrawal) against a disposable in-memory store, the way a teacher service might run a smoke
// check before opening its real listener. It never touches the engine the
// daemon goes on to serve.
func runSelfCheck(logger *slog.Logger) {
	store := memstore.New()
	atom := cdp.AssetInfo{Denom: "uatom"}
	basket := &cdp.Basket{
		CreditDenom: "ucdp",
		CreditPrice: cdp.CreditPrice{Value: math.LegacyOneDec()},
		SupplyCaps: []cdp.SupplyCap{{
			Info:            atom,
			CurrentSupply:   math.ZeroInt(),
			CapRatio:        math.LegacyOneDec(),
			VolatilityIndex: math.LegacyOneDec(),
		}},
		CollateralTypes: []cdp.CAsset{{
			Info:         atom,
			MaxBorrowLTV: math.LegacyNewDecWithPrec(6, 1),
			MaxLTV:       math.LegacyNewDecWithPrec(8, 1),
			RateIndex:    math.LegacyOneDec(),
		}},
		DebtMinimum: math.NewInt(1),
		OracleSet:   true,
	}
	if err := store.PutBasket(basket); err != nil {
		logger.Error("self-check: seed basket", "error", err)
		return
	}

	oracle := newStubOracle()
	oracle.set(atom, math.LegacyOneDec())

	engine := cdp.NewEngine(3600)
	engine.SetState(store)
	engine.SetPauses(stubPauseView{})
	engine.SetTokenProxy(stubTokenProxy{})
	engine.SetOracle(oracle)
	engine.SetPoolQuerier(stubPoolQuerier{})

	ctx := context.Background()
	const now = int64(1_700_000_000)

	// S1 — deposit 100, draw to LTV 0.5, expect debt 50 and a rejected
	// over-ceiling withdrawal.
	id, err := engine.Deposit(ctx, now, "alice", nil, []cdp.CAsset{{Info: atom, Amount: math.NewInt(100)}})
	if err != nil {
		logger.Error("self-check S1: deposit", "error", err)
		return
	}
	targetLTV := math.LegacyNewDecWithPrec(5, 1)
	if err := engine.IncreaseDebt(ctx, now, "alice", id, "alice", nil, &targetLTV, ""); err != nil {
		logger.Error("self-check S1: increase debt", "error", err)
		return
	}
	pos, ltv, err := engine.GetPosition(ctx, now, "alice", id)
	if err != nil {
		logger.Error("self-check S1: get position", "error", err)
		return
	}
	logger.Info("self-check S1 ok", "credit_amount", pos.CreditAmount.String(), "current_ltv", ltv.String())

	if err := engine.Withdraw(ctx, now, "alice", id, "alice", []cdp.CAsset{{Info: atom, Amount: math.NewInt(40)}}); err == nil {
		logger.Warn("self-check S1: over-ceiling withdrawal unexpectedly succeeded")
	} else {
		logger.Info("self-check S1: over-ceiling withdrawal correctly rejected", "reason", err)
	}
}

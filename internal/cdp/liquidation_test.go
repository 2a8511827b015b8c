package cdp

import (
	"context"
	"testing"

	"cosmossdk.io/math"
)

type mockQueue struct {
	absorbable math.Int
	enqueued   map[string]math.Int
}

func newMockQueue(absorbable math.Int) *mockQueue {
	return &mockQueue{absorbable: absorbable, enqueued: map[string]math.Int{}}
}

func (q *mockQueue) CheckAbsorb(_ context.Context, _ AssetInfo, _ math.Int, _ math.LegacyDec) (math.Int, error) {
	return q.absorbable, nil
}

func (q *mockQueue) Enqueue(_ context.Context, asset AssetInfo, collateralAmount math.Int, creditAmount math.Int) error {
	q.enqueued[asset.String()] = collateralAmount
	return nil
}

func (q *mockQueue) MaxPremium(math.LegacyDec) uint32 { return 5 }

func TestLiquidateRejectsSolventPosition(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000)}})
	if err != nil {
		t.Fatal(err)
	}
	amount := math.NewInt(100)
	if err := env.ledger.IncreaseDebt(context.Background(), 1000, "alice", id, "alice", &amount, nil, ""); err != nil {
		t.Fatal(err)
	}

	queue := newMockQueue(math.ZeroInt())
	pipeline := NewLiquidationPipeline(env.store, env.kernel, env.risk, env.token, queue, nil, nil, nil)
	basket, _ = env.store.GetBasket()
	err = pipeline.Liquidate(context.Background(), 1000, basket, "alice", id, "bob")
	if err != ErrPositionSolvent {
		t.Fatalf("err = %v, want ErrPositionSolvent", err)
	}
}

func TestLiquidateDrainsThroughQueueTier(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	basket.CollateralTypes[0].MaxLTV = dec("0.45")
	basket.CollateralTypes[0].MaxBorrowLTV = dec("0.40")
	// Liquidate only runs the queue tier for a basket flagged as having one.
	basket.LiqQueueConfigured = true
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000), MaxLTV: dec("0.45"), MaxBorrowLTV: dec("0.40")}})
	if err != nil {
		t.Fatal(err)
	}
	amount := math.NewInt(400)
	if err := env.ledger.IncreaseDebt(context.Background(), 1000, "alice", id, "alice", &amount, nil, ""); err != nil {
		t.Fatal(err)
	}

	// Drop the price 15%, within the ±20% move guard, enough to push the
	// position over its max_LTV=0.45 liquidation ceiling.
	env.oracle.set(atom, dec("0.85"))
	basket, _ = env.store.GetBasket()

	queue := newMockQueue(math.NewInt(1000)) // queue can absorb everything
	pipeline := NewLiquidationPipeline(env.store, env.kernel, env.risk, env.token, queue, nil, nil, nil)
	// Liquidate just after the 3600s price cache from the draw expires, so
	// the kernel reads the 0.85 price. Liquidate does not accrue interest,
	// so debt stays 400 and the repay_value arithmetic is exact:
	// current_LTV = 400/850, avg_borrow_LTV = 0.40, so
	// repay_value = 400*(1-0.40/(400/850)) = 60.
	if err := pipeline.Liquidate(context.Background(), 1000+3601, basket, "alice", id, "bob"); err != nil {
		t.Fatalf("Liquidate: %v", err)
	}

	positions, _ := env.store.GetPositions("alice")
	if len(positions) != 1 {
		t.Fatalf("want the position to survive with its remaining collateral, got %d positions", len(positions))
	}
	if !positions[0].CreditAmount.Equal(math.NewInt(340)) {
		t.Fatalf("credit_amount = %s, want 340 (400 - partial repay_value 60)", positions[0].CreditAmount)
	}
	if !positions[0].Collateral[0].Amount.LT(math.NewInt(1000)) {
		t.Fatalf("collateral should have shrunk from liquidation: %s", positions[0].Collateral[0].Amount)
	}
	if len(queue.enqueued) == 0 {
		t.Fatalf("queue tier was never invoked")
	}
	if got := env.token.transfers[atom.String()+"/bob"]; !got.IsPositive() {
		t.Fatalf("caller fee transfer = %s, want a positive available_fee payout to bob", got)
	}
}

// TestLiquidateLeavesBadDebtWhenNoTierAbsorbs exercises the sweep path: with
// every tier disabled, the unpaid repay_value is written off against
// pending_revenue and the position keeps its remaining debt and collateral.
func TestLiquidateLeavesBadDebtWhenNoTierAbsorbs(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	basket.CollateralTypes[0].MaxLTV = dec("0.45")
	basket.CollateralTypes[0].MaxBorrowLTV = dec("0.40")
	basket.PendingRevenue = math.NewInt(1000)
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000), MaxLTV: dec("0.45"), MaxBorrowLTV: dec("0.40")}})
	if err != nil {
		t.Fatal(err)
	}
	amount := math.NewInt(400)
	if err := env.ledger.IncreaseDebt(context.Background(), 1000, "alice", id, "alice", &amount, nil, ""); err != nil {
		t.Fatal(err)
	}

	env.oracle.set(atom, dec("0.85"))
	basket, _ = env.store.GetBasket()

	pipeline := NewLiquidationPipeline(env.store, env.kernel, env.risk, env.token, nil, nil, nil, nil)
	// As above: liquidate once the cached 1.0 price has expired.
	if err := pipeline.Liquidate(context.Background(), 1000+3601, basket, "alice", id, "bob"); err != nil {
		t.Fatalf("Liquidate: %v", err)
	}

	basket, _ = env.store.GetBasket()
	if !basket.PendingRevenue.LT(math.NewInt(1000)) {
		t.Fatalf("pending_revenue = %s, want it reduced by the bad-debt sweep", basket.PendingRevenue)
	}
	positions, _ := env.store.GetPositions("alice")
	if !positions[0].CreditAmount.Equal(math.NewInt(400)) {
		t.Fatalf("credit_amount = %s, want untouched at 400: no tier repaid anything, only pending_revenue absorbed the write-off", positions[0].CreditAmount)
	}
}

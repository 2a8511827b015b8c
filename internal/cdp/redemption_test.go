package cdp

import (
	"context"
	"testing"

	"cosmossdk.io/math"
)

func TestRedeemForCollateralWalksLowestPremiumFirst(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000)}})
	if err != nil {
		t.Fatal(err)
	}
	amount := math.NewInt(300)
	if err := env.ledger.IncreaseDebt(context.Background(), 1000, "alice", id, "alice", &amount, nil, ""); err != nil {
		t.Fatal(err)
	}

	market := NewRedemptionMarket(env.store, env.kernel, env.token, env.revenue)
	if err := market.EditRedemptionInfo("alice", id, math.NewInt(300), 0, nil, false); err != nil {
		t.Fatalf("EditRedemptionInfo: %v", err)
	}

	basket, _ = env.store.GetBasket()
	if err := market.RedeemForCollateral(context.Background(), 1000, basket, "redeemer", math.NewInt(100), 5); err != nil {
		t.Fatalf("RedeemForCollateral: %v", err)
	}

	positions, _ := env.store.GetPositions("alice")
	if !positions[0].CreditAmount.Equal(math.NewInt(200)) {
		t.Fatalf("remaining credit_amount = %s, want 200", positions[0].CreditAmount)
	}
	if got := env.token.transfers[atom.String()+"/redeemer"]; !got.Equal(math.NewInt(100)) {
		t.Fatalf("transferred collateral = %s, want 100", got)
	}
	if got := env.token.burned["ucdp/redeemer"]; !got.Equal(math.NewInt(100)) {
		t.Fatalf("burned = %s, want 100", got)
	}
}

func TestEditRedemptionInfoRejectsOptOutWhileHoldingHikeRatesAsset(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	basket.CollateralTypes[0].HikeRates = true
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000), HikeRates: true}})
	if err != nil {
		t.Fatal(err)
	}

	market := NewRedemptionMarket(env.store, env.kernel, env.token, env.revenue)
	if err := market.EditRedemptionInfo("alice", id, math.NewInt(0), 5, nil, false); err != ErrMandatoryRedemptionOptIn {
		t.Fatalf("err = %v, want ErrMandatoryRedemptionOptIn", err)
	}
	// Opting back in mandatory=true is always allowed.
	if err := market.EditRedemptionInfo("alice", id, math.NewInt(100), 5, nil, true); err != nil {
		t.Fatalf("mandatory opt-in: %v", err)
	}
}

func TestEditRedemptionInfoRejectsPremiumAbove99(t *testing.T) {
	env := newTestEnv()
	market := NewRedemptionMarket(env.store, env.kernel, env.token, env.revenue)
	if err := market.EditRedemptionInfo("alice", 1, math.NewInt(100), 100, nil, false); err == nil {
		t.Fatalf("want a rejection for premium 100 > maxPremiumBps")
	}
	if err := market.EditRedemptionInfo("alice", 1, math.NewInt(100), 99, nil, false); err != nil {
		t.Fatalf("premium 99 should be the top of the allowed range: %v", err)
	}
}

func TestRedeemForCollateralCarvesRedemptionFeeWhenNoSlack(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))
	basket := newTestBasket()
	basket.RedemptionFee = dec("0.10")
	env.store.PutBasket(basket)

	id, err := env.ledger.Deposit(context.Background(), 1000, "alice", nil, []CAsset{{Info: atom, Amount: math.NewInt(1000)}})
	if err != nil {
		t.Fatal(err)
	}
	amount := math.NewInt(300)
	if err := env.ledger.IncreaseDebt(context.Background(), 1000, "alice", id, "alice", &amount, nil, ""); err != nil {
		t.Fatal(err)
	}

	market := NewRedemptionMarket(env.store, env.kernel, env.token, env.revenue)
	if err := market.EditRedemptionInfo("alice", id, math.NewInt(300), 0, nil, false); err != nil {
		t.Fatalf("EditRedemptionInfo: %v", err)
	}

	basket, _ = env.store.GetBasket()
	// redeemAmount (150) exceeds what the single entry can give (rawRedeemable
	// = min(300, 299, 150) = 150), so there is no slack: the fee is carved out
	// of the entry's own payout rather than riding on top of the caller's
	// budget. fee = 0.10*150 = 15; net_redeemable = 135.
	if err := market.RedeemForCollateral(context.Background(), 1000, basket, "redeemer", math.NewInt(150), 5); err != nil {
		t.Fatalf("RedeemForCollateral: %v", err)
	}

	positions, _ := env.store.GetPositions("alice")
	if !positions[0].CreditAmount.Equal(math.NewInt(165)) {
		t.Fatalf("remaining credit_amount = %s, want 165 (300 - net_redeemable 135)", positions[0].CreditAmount)
	}
	if got := env.token.burned["ucdp/redeemer"]; !got.Equal(math.NewInt(135)) {
		t.Fatalf("burned = %s, want 135", got)
	}
	basket, _ = env.store.GetBasket()
	// 15 is far under routeThreshold, so RouteRevenue is a no-op and the fee
	// simply sits in pending_revenue rather than being dropped.
	if !basket.PendingRevenue.Equal(math.NewInt(15)) {
		t.Fatalf("pending_revenue = %s, want the 15 fee credited and left pending", basket.PendingRevenue)
	}
}

func TestRedeemForCollateralErrorsWhenNoOptInsAtOrBelowPremium(t *testing.T) {
	env := newTestEnv()
	basket := newTestBasket()
	env.store.PutBasket(basket)
	market := NewRedemptionMarket(env.store, env.kernel, env.token, env.revenue)

	err := market.RedeemForCollateral(context.Background(), 1000, basket, "redeemer", math.NewInt(100), 5)
	if err != ErrNoCollateralAtPremium {
		t.Fatalf("err = %v, want ErrNoCollateralAtPremium", err)
	}
}

package cdp

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
)

func TestUpdateBasketTallyBlocksOverCapDeposit(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	osmo := usdAsset("uosmo")
	env.oracle.set(atom, dec("1"))
	env.oracle.set(osmo, dec("1"))

	basket := newTestBasket()
	basket.SupplyCaps[0].CapRatio = dec("0.10") // tight cap on atom

	deposit := []CAsset{{Info: atom, Amount: math.NewInt(900)}}
	full := []CAsset{
		{Info: atom, Amount: math.NewInt(900)},
		{Info: osmo, Amount: math.NewInt(100)},
	}
	basket.CollateralTypes[1].Amount = math.NewInt(100)

	err := env.risk.UpdateBasketTally(context.Background(), 1000, basket, deposit, full, true)
	var capErr *SupplyCapExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want SupplyCapExceededError", err)
	}
}

func TestUpdateBasketTallyAllowsFullyDrainingOnlyAsset(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))

	basket := newTestBasket()
	basket.SupplyCaps[0].CapRatio = dec("0.01")
	basket.SupplyCaps[0].CurrentSupply = math.NewInt(1000)
	basket.CollateralTypes[0].Amount = math.NewInt(1000)

	withdraw := []CAsset{{Info: atom, Amount: math.NewInt(1000)}}
	// resulting position is empty: draining the sole asset must be allowed
	// even though it was over cap beforehand.
	err := env.risk.UpdateBasketTally(context.Background(), 1000, basket, withdraw, nil, false)
	if err != nil {
		t.Fatalf("UpdateBasketTally: %v", err)
	}
}

func TestInsolvencyCheckFlagsOverCeilingPosition(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))

	pos := &Position{
		Collateral:   []CAsset{{Info: atom, Amount: math.NewInt(100), MaxBorrowLTV: dec("0.4"), MaxLTV: dec("0.5")}},
		CreditAmount: math.NewInt(60),
	}
	insolvent, ltv, ceiling, _, err := env.risk.InsolvencyCheck(context.Background(), 1000, pos, decOne, false)
	if err != nil {
		t.Fatalf("InsolvencyCheck: %v", err)
	}
	if !insolvent {
		t.Fatalf("want insolvent: ltv=%s ceiling=%s", ltv, ceiling)
	}
	if !ceiling.Equal(dec("0.5")) {
		t.Fatalf("ceiling = %s, want 0.5", ceiling)
	}
}

func TestInsolvencyCheckUsesStricterMaxBorrowBoundWhenRequested(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("1"))

	pos := &Position{
		Collateral:   []CAsset{{Info: atom, Amount: math.NewInt(100), MaxBorrowLTV: dec("0.4"), MaxLTV: dec("0.5")}},
		CreditAmount: math.NewInt(45),
	}
	insolventLiq, _, _, _, _ := env.risk.InsolvencyCheck(context.Background(), 1000, pos, decOne, false)
	insolventBorrow, _, _, _, _ := env.risk.InsolvencyCheck(context.Background(), 1000, pos, decOne, true)
	if insolventLiq {
		t.Fatalf("0.45 LTV should be solvent under max_LTV=0.5")
	}
	if !insolventBorrow {
		t.Fatalf("0.45 LTV should be insolvent under the stricter max_borrow_LTV=0.4")
	}
}

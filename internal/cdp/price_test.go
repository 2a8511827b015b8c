package cdp

import (
	"context"
	"testing"

	"cosmossdk.io/math"
)

func TestUnitPriceCachesWithinTimeLimit(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("10.00"))

	price, err := env.kernel.UnitPrice(context.Background(), 1000, atom)
	if err != nil {
		t.Fatalf("UnitPrice: %v", err)
	}
	if !price.Equal(dec("10.00")) {
		t.Fatalf("price = %s, want 10.00", price)
	}

	// Move the oracle price; a call inside the cache window must still
	// return the stale cached value.
	env.oracle.set(atom, dec("99.00"))
	cached, err := env.kernel.UnitPrice(context.Background(), 1100, atom)
	if err != nil {
		t.Fatalf("UnitPrice (cached): %v", err)
	}
	if !cached.Equal(dec("10.00")) {
		t.Fatalf("cached price = %s, want 10.00 (cache should not refresh yet)", cached)
	}
}

func TestUnitPriceRejectsMoveBeyondGuard(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	env.oracle.set(atom, dec("10.00"))
	if _, err := env.kernel.UnitPrice(context.Background(), 1000, atom); err != nil {
		t.Fatalf("seed UnitPrice: %v", err)
	}

	// 31% move, outside the ±20% guard, after the cache has expired.
	env.oracle.set(atom, dec("13.10"))
	_, err := env.kernel.UnitPrice(context.Background(), 1000+3601, atom)
	if err != ErrOracleMoveGuard {
		t.Fatalf("err = %v, want ErrOracleMoveGuard", err)
	}
}

func TestLPUnitPriceRejectsReorderedLegs(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	osmo := usdAsset("uosmo")
	env.oracle.set(atom, dec("10"))
	env.oracle.set(osmo, dec("1"))

	env.pool.tot["pool1"] = math.NewInt(100)
	env.pool.bals["pool1"] = []math.Int{math.NewInt(50), math.NewInt(500)}
	env.pool.legs["pool1"] = []AssetInfo{osmo, atom} // reversed vs. descriptor order

	c := CAsset{
		Info: AssetInfo{Kind: AssetToken, Handle: "lp1"},
		Amount: math.NewInt(10),
		Pool: &PoolInfo{
			PoolID: "pool1",
			Legs: []PoolLeg{
				{Info: atom, Decimals: 6},
				{Info: osmo, Decimals: 6},
			},
		},
	}

	_, err := env.kernel.AssetUnitPrice(context.Background(), 1000, c)
	if err != ErrLPAssetOrderMismatch {
		t.Fatalf("err = %v, want ErrLPAssetOrderMismatch", err)
	}
}

func TestRatiosSumToOne(t *testing.T) {
	env := newTestEnv()
	atom := usdAsset("uatom")
	osmo := usdAsset("uosmo")
	env.oracle.set(atom, dec("10"))
	env.oracle.set(osmo, dec("5"))

	held := []CAsset{
		{Info: atom, Amount: math.NewInt(100)},
		{Info: osmo, Amount: math.NewInt(100)},
	}
	ratios, _, err := env.kernel.Ratios(context.Background(), 1000, held)
	if err != nil {
		t.Fatalf("Ratios: %v", err)
	}
	sum := ratios[0].Add(ratios[1])
	if sum.Sub(decOne).Abs().GT(dec("0.0001")) {
		t.Fatalf("ratios sum to %s, want ~1", sum)
	}
}

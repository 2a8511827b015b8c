package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// moveGuardBps is the ±20% manipulation guard applied when refreshing a
// cached price: a new observation outside this band of the stored value
// fails the call outright rather than being silently clamped.
const moveGuardBps = 2000

// sixDecimals is the normalization target spec.md §4.A names for LP leg
// balances before pricing.
const sixDecimals = 6

// PriceKernel is component A: it computes priced values for any collateral,
// including LP-share decomposition, and caches the last observed unit price
// per asset behind a staleness window and a manipulation guard.
type PriceKernel struct {
	store             Store
	oracle            Oracle
	pool              PoolQuerier
	oracleTimeLimit   int64 // seconds a cached price may be reused
	priceVolStaleSecs int64 // staleness window for the vol-limiter reference
}

// NewPriceKernel wires the kernel to its external collaborators.
func NewPriceKernel(store Store, oracle Oracle, pool PoolQuerier, oracleTimeLimit int64) *PriceKernel {
	return &PriceKernel{
		store:             store,
		oracle:            oracle,
		pool:              pool,
		oracleTimeLimit:   oracleTimeLimit,
		priceVolStaleSecs: 300,
	}
}

// ValueOf is decimal multiplication with the price's internal scaling.
func ValueOf(amount math.Int, price math.LegacyDec) math.Int {
	return decMulInt(amount, price)
}

// AmountOf is the inverse of ValueOf; it fails if price is zero (the value
// would not be representable).
func AmountOf(value math.Int, price math.LegacyDec) (math.Int, error) {
	amount, ok := decDivToInt(value, price)
	if !ok {
		return math.Int{}, ErrFaultyCalc
	}
	return amount, nil
}

// UnitPrice returns the current unit price for a single (non-LP) asset,
// consulting the cache before issuing a fresh oracle call.
func (k *PriceKernel) UnitPrice(ctx context.Context, now int64, asset AssetInfo) (math.LegacyDec, error) {
	cached, err := k.store.GetStoredPrice(asset)
	if err != nil {
		return math.LegacyDec{}, err
	}
	if cached != nil && now-cached.LastTimeUpdated <= k.oracleTimeLimit {
		return cached.Price, nil
	}

	fresh, _, err := k.oracle.Price(ctx, asset, 0)
	if err != nil {
		return math.LegacyDec{}, err
	}

	limiter := fresh
	if cached != nil {
		limiter = cached.PriceVolLimiter
		if now-cached.LimiterSetAt > k.priceVolStaleSecs {
			limiter = cached.Price
		}
		if err := guardPriceMove(limiter, fresh); err != nil {
			return math.LegacyDec{}, err
		}
	}

	next := &StoredPrice{
		Price:           fresh,
		LastTimeUpdated: now,
		PriceVolLimiter: limiter,
		LimiterSetAt:    now,
	}
	if cached == nil || now-cached.LimiterSetAt > k.priceVolStaleSecs {
		next.PriceVolLimiter = fresh
		next.LimiterSetAt = now
	}
	if err := k.store.PutStoredPrice(asset, next); err != nil {
		return math.LegacyDec{}, err
	}
	return fresh, nil
}

// guardPriceMove rejects a refreshed price that has moved more than ±20%
// away from the stored reference — an explicit manipulation guard, never a
// silent clamp.
func guardPriceMove(reference, fresh math.LegacyDec) error {
	if reference.IsZero() {
		return nil
	}
	lowerBps := int64(10_000 - moveGuardBps)
	upperBps := int64(10_000 + moveGuardBps)
	lower := reference.MulInt64(lowerBps).QuoInt64(10_000)
	upper := reference.MulInt64(upperBps).QuoInt64(10_000)
	if fresh.LT(lower) || fresh.GT(upper) {
		return ErrOracleMoveGuard
	}
	return nil
}

// AssetUnitPrice prices a single cAsset, decomposing LP shares through the
// pool querier when the descriptor carries pool metadata.
func (k *PriceKernel) AssetUnitPrice(ctx context.Context, now int64, c CAsset) (math.LegacyDec, error) {
	if c.Pool == nil {
		return k.UnitPrice(ctx, now, c.Info)
	}
	return k.lpUnitPrice(ctx, now, *c.Pool)
}

func (k *PriceKernel) lpUnitPrice(ctx context.Context, now int64, pool PoolInfo) (math.LegacyDec, error) {
	totalShares, legBalances, canonicalOrder, err := k.pool.Decompose(ctx, pool.PoolID)
	if err != nil {
		return math.LegacyDec{}, err
	}
	if len(canonicalOrder) != len(pool.Legs) {
		return math.LegacyDec{}, ErrLPAssetOrderMismatch
	}
	for i, leg := range pool.Legs {
		if !leg.Info.Equal(canonicalOrder[i]) {
			return math.LegacyDec{}, ErrLPAssetOrderMismatch
		}
	}
	if totalShares.IsZero() {
		return math.LegacyDec{}, ErrFaultyCalc
	}

	sumValue := decZero
	for i, leg := range pool.Legs {
		if i >= len(legBalances) {
			return math.LegacyDec{}, ErrFaultyCalc
		}
		normalized := normalizeToSixDecimals(legBalances[i], leg.Decimals)
		price, err := k.UnitPrice(ctx, now, leg.Info)
		if err != nil {
			return math.LegacyDec{}, err
		}
		sumValue = sumValue.Add(math.LegacyNewDecFromInt(normalized).Mul(price))
	}
	return sumValue.Quo(math.LegacyNewDecFromInt(totalShares)), nil
}

// normalizeToSixDecimals rescales an integer amount expressed with `decimals`
// fractional digits down (or up) to a six-decimal unit, per spec.md §4.A.
func normalizeToSixDecimals(amount math.Int, decimals uint32) math.Int {
	if decimals == sixDecimals {
		return amount
	}
	if decimals > sixDecimals {
		shift := decimals - sixDecimals
		return amount.Quo(pow10(shift))
	}
	shift := sixDecimals - decimals
	return amount.Mul(pow10(shift))
}

func pow10(n uint32) math.Int {
	result := math.NewInt(1)
	ten := math.NewInt(10)
	for i := uint32(0); i < n; i++ {
		result = result.Mul(ten)
	}
	return result
}

// Ratios returns each asset's fraction of the sequence's total priced value
// and its unit price. Ratios sum to one within rounding.
func (k *PriceKernel) Ratios(ctx context.Context, now int64, assets []CAsset) ([]math.LegacyDec, []math.LegacyDec, error) {
	prices := make([]math.LegacyDec, len(assets))
	values := make([]math.Int, len(assets))
	total := intZero
	for i, a := range assets {
		price, err := k.AssetUnitPrice(ctx, now, a)
		if err != nil {
			return nil, nil, err
		}
		prices[i] = price
		values[i] = ValueOf(a.Amount, price)
		total = total.Add(values[i])
	}
	ratios := make([]math.LegacyDec, len(assets))
	for i := range assets {
		ratios[i] = ratioOfValue(values[i], total)
	}
	return ratios, prices, nil
}

// TotalValue sums the priced value of a collateral sequence.
func (k *PriceKernel) TotalValue(ctx context.Context, now int64, assets []CAsset) (math.Int, error) {
	total := intZero
	for _, a := range assets {
		price, err := k.AssetUnitPrice(ctx, now, a)
		if err != nil {
			return math.Int{}, err
		}
		total = total.Add(ValueOf(a.Amount, price))
	}
	return total, nil
}

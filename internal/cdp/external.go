package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// The interfaces below are the typed collaborators spec.md §6 describes.
// Every call across one of these is a "suspension point" per §5: the core
// emits the call and observes its outcome through the same interface's
// return value within the same logical transaction. None of these are
// implemented here — oracle price discovery, AMM execution, stability-pool
// deposit accounting, and liquidation-queue bid matching are explicitly out
// of scope (spec.md §1).

// TokenProxy mints and burns the debt token. Mint/Burn are expected to be
// idempotent on the (denom, to/from, amount) tuple from the caller's
// perspective; the engine never retries a call it cannot observe the result
// of.
type TokenProxy interface {
	Mint(ctx context.Context, denom string, amount math.Int, to string) error
	Burn(ctx context.Context, denom string, amount math.Int, from string) error
	// Transfer moves an already-minted balance the engine holds in custody
	// (redeemed or liquidated collateral) out to a recipient. Unlike Mint
	// and Burn it changes no supply, only custody.
	Transfer(ctx context.Context, asset AssetInfo, amount math.Int, to string) error
}

// Oracle resolves a single unit price for an asset. LP shares are never
// asked for directly — the Price Kernel decomposes them itself via
// PoolQuerier and prices each leg through Oracle.
type Oracle interface {
	Price(ctx context.Context, asset AssetInfo, twapTimeframeSeconds uint32) (price math.LegacyDec, decimals uint32, err error)
}

// PoolQuerier decomposes an LP share into its underlying leg balances so the
// Price Kernel can compute a unit LP price. Implementations must report legs
// in the pool's canonical order; the kernel treats an order change between
// calls as ErrLPAssetOrderMismatch rather than silently re-mapping.
type PoolQuerier interface {
	Decompose(ctx context.Context, poolID string) (totalShares math.Int, legBalances []math.Int, canonicalOrder []AssetInfo, err error)
}

// LiquidationQueue is the order-book liquidator (Tier 1). CheckAbsorb asks
// how much of the given asset's collateral (and therefore how much credit)
// the queue can absorb at the supplied price before any state mutates;
// Enqueue commits that amount.
type LiquidationQueue interface {
	CheckAbsorb(ctx context.Context, asset AssetInfo, collateralAvailable math.Int, price math.LegacyDec) (absorbableCredit math.Int, err error)
	Enqueue(ctx context.Context, asset AssetInfo, collateralAmount math.Int, creditAmount math.Int) error
	MaxPremium(maxLTV math.LegacyDec) uint32
}

// StabilityPool is the pooled liquidator (Tier 2).
type StabilityPool interface {
	CheckAbsorb(ctx context.Context, creditAsset string, creditAmount math.Int) (absorbableCredit math.Int, err error)
	Liquidate(ctx context.Context, creditAsset string, creditAmount math.Int) error
	Distribute(ctx context.Context, assets []AssetInfo, amounts []math.Int, distributeFor math.Int) error
}

// SwapRouter is the AMM fallback liquidation path (Tier 3) and the
// close-position sell path. ExecuteSwaps is fire-and-forget from the
// engine's point of view: its eventual repay lands through Engine.Repay
// called by the router's callback, not through this call's return value.
type SwapRouter interface {
	ExecuteSwaps(ctx context.Context, tokenIn AssetInfo, amountIn math.Int, tokenOut string, maxSlippage math.LegacyDec) error
}

// FeeDestination models staking/fee-distribution endpoints external to the
// engine; only the typed interface is needed here, not their bodies.
type FeeDestination interface {
	DepositFee(ctx context.Context, denom string, amount math.Int) error
}

// PauseView lets the engine consult a module-wide circuit breaker.
type PauseView interface {
	IsPaused(module string) bool
}

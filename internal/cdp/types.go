package cdp

import "cosmossdk.io/math"

// AssetKind distinguishes the two collateral shapes the engine understands.
// A tagged variant with two arms plus an orthogonal PoolInfo on the cAsset
// descriptor collapses the dynamic dispatch dimension spec.md §9 calls out.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// AssetInfo identifies a single fungible asset, native or contract-bound.
type AssetInfo struct {
	Kind   AssetKind
	Denom  string // native denom when Kind == AssetNative
	Handle string // token/contract handle when Kind == AssetToken
}

// Equal reports whether two asset descriptors refer to the same underlying
// asset, mirroring the original contract's `AssetInfo::equal`.
func (a AssetInfo) Equal(b AssetInfo) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == AssetNative {
		return a.Denom == b.Denom
	}
	return a.Handle == b.Handle
}

func (a AssetInfo) String() string {
	if a.Kind == AssetNative {
		return a.Denom
	}
	return a.Handle
}

// PoolLeg is one underlying asset of an LP share, in the order the pool
// registry reports it.
type PoolLeg struct {
	Info     AssetInfo
	Decimals uint32
	Weight   math.LegacyDec
}

// PoolInfo carries the LP decomposition metadata for a pooled cAsset.
type PoolInfo struct {
	PoolID string
	Legs   []PoolLeg
}

// CAsset is a collateral descriptor: either a basket-level template (held on
// Basket.CollateralTypes) or a position's claim against that collateral
// (held on Position.Collateral). Amount means "claim by this position" on a
// position's copy; on the basket template it is the basket-wide total,
// kept equal to the asset's SupplyCap.CurrentSupply by UpdateBasketTally.
type CAsset struct {
	Info          AssetInfo
	Amount        math.Int
	MaxBorrowLTV  math.LegacyDec // (0,1)
	MaxLTV        math.LegacyDec // (MaxBorrowLTV, 1)
	Pool          *PoolInfo      // nil unless this is an LP share
	RateIndex     math.LegacyDec // monotonically non-decreasing interest accumulator
	HikeRates     bool           // forces mandatory redemption opt-in when held
}

// Clone deep-copies a cAsset so callers never alias a stored descriptor.
func (c CAsset) Clone() CAsset {
	clone := c
	if c.Pool != nil {
		legs := make([]PoolLeg, len(c.Pool.Legs))
		copy(legs, c.Pool.Legs)
		clone.Pool = &PoolInfo{PoolID: c.Pool.PoolID, Legs: legs}
	}
	return clone
}

// Position is a single CDP: an ordered, stable sequence of collateral claims
// against an outstanding debt balance.
type Position struct {
	ID           uint64
	Owner        string
	Collateral   []CAsset
	CreditAmount math.Int
	LastAccrued  int64 // unix seconds
}

// IsEmpty reports whether every collateral amount on the position is zero.
func (p *Position) IsEmpty() bool {
	for _, c := range p.Collateral {
		if !c.Amount.IsZero() {
			return false
		}
	}
	return true
}

// FindAsset returns the index of the held cAsset matching info, or -1.
func (p *Position) FindAsset(info AssetInfo) int {
	for i, c := range p.Collateral {
		if c.Info.Equal(info) {
			return i
		}
	}
	return -1
}

// SupplyCap tracks a single collateral asset's basket-wide ceiling.
type SupplyCap struct {
	Info            AssetInfo
	CurrentSupply   math.Int
	CapRatio        math.LegacyDec
	DebtTotal       math.Int
	Lp              bool
	SPRatioRule     *math.LegacyDec // optional stability-pool participation ratio
	VolatilityIndex math.LegacyDec  // cap-ratio divisor; nothing in this package updates it
}

// MultiAssetCap bounds the joint priced-value ratio of a group of assets.
type MultiAssetCap struct {
	Assets   []AssetInfo
	CapRatio math.LegacyDec
}

// RevenueDestination is one configured recipient of routed protocol revenue.
type RevenueDestination struct {
	Address string
	Ratio   math.LegacyDec
}

// CreditPrice is the redemption peg of the debt token plus its drift
// metadata.
type CreditPrice struct {
	Value  math.LegacyDec
	Source string // informational: how the peg was last set/observed
}

// Basket is the single container of collateral types, caps, rates, and the
// credit asset configuration. There is exactly one Basket per engine
// instance; the Position Ledger, Liquidation Pipeline and Redemption Market
// each write it back to the Store.
type Basket struct {
	CollateralTypes      []CAsset // basket-level templates (Amount is the basket-wide total)
	SupplyCaps           []SupplyCap
	MultiAssetCaps       []MultiAssetCap
	CreditDenom          string
	CreditPrice          CreditPrice
	BaseInterestRate     math.LegacyDec
	DesiredDebtCapUtil   math.LegacyDec
	PendingRevenue       math.Int
	CreditLastAccrued    int64
	RatesLastAccrued     int64
	LiqQueueConfigured   bool
	NegativeRates        bool
	CPCMarginOfError     math.LegacyDec
	OracleSet            bool
	Frozen               bool
	RevToStakers         bool
	RevenueDestinations  []RevenueDestination
	DebtMinimum          math.Int
	RangeBoundVault      string // configured bypass principal, see spec.md §9 (i)

	// RedemptionQuotaPerEpoch and RedemptionEpochSeconds bound how much
	// credit any single redeemer may redeem from this basket per epoch.
	// Either field being non-positive disables the throttle.
	RedemptionQuotaPerEpoch math.Int
	RedemptionEpochSeconds  int64

	// RedemptionFee is the fraction of each redemption's redeemable credit
	// charged to pending_revenue before collateral is released. May be the
	// nil Dec (treated as zero) for a basket that never set one.
	RedemptionFee math.LegacyDec

	// LiqFee is the protocol's own cut of a liquidation's repay-value-
	// equivalent collateral, paid to the configured fee destination on top
	// of the caller's dynamic available_fee reward. May be the nil Dec.
	LiqFee math.LegacyDec
}

// FindSupplyCap returns the index of the cap tracking info, or -1.
func (b *Basket) FindSupplyCap(info AssetInfo) int {
	for i, c := range b.SupplyCaps {
		if c.Info.Equal(info) {
			return i
		}
	}
	return -1
}

// FindCollateralType returns the index of the basket-level descriptor for
// info, or -1.
func (b *Basket) FindCollateralType(info AssetInfo) int {
	for i, c := range b.CollateralTypes {
		if c.Info.Equal(info) {
			return i
		}
	}
	return -1
}

// PositionRedemption is one opt-in entry inside a premium bucket.
type PositionRedemption struct {
	PositionID                 uint64
	Owner                      string
	RemainingLoanRepayment     math.Int
	RestrictedCollateralAssets []AssetInfo
	Mandatory                  bool // forced by a held hike_rates asset; see RedemptionMarket.EditRedemptionInfo
}

// StoredPrice is the Price Kernel's cache entry for one asset.
type StoredPrice struct {
	Price           math.LegacyDec
	LastTimeUpdated int64
	PriceVolLimiter math.LegacyDec // five-minute-stale reference used as the manipulation-guard anchor
	LimiterSetAt    int64
}

// VolatilityRecord is the per-asset record stored under VOLATILITY[asset].
// risk.go's cap transform reads SupplyCap.VolatilityIndex, not this record.
type VolatilityRecord struct {
	Index   math.LegacyDec
	History []math.LegacyDec
}

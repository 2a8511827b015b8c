package cdp

import "cosmossdk.io/math"

// Store is the logical persistence port: BASKET, POSITIONS[owner],
// VOLATILITY[asset_info], STORED_PRICES[asset_info],
// REDEMPTION_OPT_IN[premium], FREEZE_TIMER, per-redeemer redemption quotas,
// and the transient LIQUIDATION / CLOSE_POSITION propagation records. There
// is no CONFIG or WITHDRAW record. No storage engine is prescribed
// (spec.md §1); this module ships only internal/cdp/memstore, an in-memory
// implementation used by cmd/cdpd (the package's tests use their own
// mockStore).
//
// Writers: the Position Ledger, the Liquidation Pipeline and the Redemption
// Market write positions and the basket; the Price Kernel writes stored
// prices. The Risk Engine and Rate Model only modify the *Basket they are
// handed, which their caller then persists.
type Store interface {
	GetBasket() (*Basket, error)
	PutBasket(*Basket) error

	// GetPositions returns the ordered position list for owner. A miss
	// returns (nil, nil), not an error — callers distinguish "no positions"
	// from a storage fault.
	GetPositions(owner string) ([]Position, error)
	PutPositions(owner string, positions []Position) error

	// NextPositionID returns a strictly increasing, basket-wide unique id.
	// Ids are never reused, even across owners.
	NextPositionID() (uint64, error)

	GetVolatility(asset AssetInfo) (*VolatilityRecord, error)
	PutVolatility(asset AssetInfo, record *VolatilityRecord) error

	GetStoredPrice(asset AssetInfo) (*StoredPrice, error)
	PutStoredPrice(asset AssetInfo, price *StoredPrice) error

	// GetRedemptionBucket returns the opt-in entries for exactly this
	// premium, keyed by owner, in deposit order.
	GetRedemptionBucket(premium uint32) ([]RedemptionBucketEntry, error)
	PutRedemptionBucket(premium uint32, entries []RedemptionBucketEntry) error

	GetFreezeTimer() (int64, error)
	PutFreezeTimer(int64) error

	// GetRedemptionQuota returns the per-redeemer epoch throttle counters. A
	// miss returns the zero value, not an error.
	GetRedemptionQuota(redeemer string) (RedemptionQuotaNow, error)
	PutRedemptionQuota(redeemer string, quota RedemptionQuotaNow) error

	// Transient propagation records, written before an operation's external
	// calls and deleted when that operation finishes in the same call. A Get
	// that finds nothing returns (nil, nil).
	GetLiquidationPropagation(id string) (*LiquidationPropagation, error)
	PutLiquidationPropagation(id string, rec *LiquidationPropagation) error
	DeleteLiquidationPropagation(id string) error

	GetClosePositionPropagation(id string) (*ClosePositionPropagation, error)
	PutClosePositionPropagation(id string, rec *ClosePositionPropagation) error
	DeleteClosePositionPropagation(id string) error
}

// RedemptionBucketEntry is one owner's opt-in list within a premium bucket.
type RedemptionBucketEntry struct {
	Owner   string
	Entries []PositionRedemption
}

// LiquidationPropagation is the transient object the Liquidation Pipeline
// writes before fanning out to the queue/SP/sell-wall tiers, per spec.md §3.
type LiquidationPropagation struct {
	ID                 string
	TargetPositionID   uint64
	PositionOwner      string
	TargetSnapshot      Position
	CAssetPrices       []math.LegacyDec
	CAssetRatios       []math.LegacyDec
	SPLiqFee           math.LegacyDec
	TotalRepaid        math.Int
	CallerFeeValuePaid math.Int
	LiquidatedAssets   []math.Int // per cAsset index, amount already sent out
	LQLeftoverCredit   math.Int
	SellWallLeftover   math.Int
	Caller             string
}

// ClosePositionPropagation is the transient record close_position writes
// before sequencing its swap-to-debt-token calls; ClosePosition finalizes the
// position after the last swap call in the same invocation and then deletes
// the record.
type ClosePositionPropagation struct {
	ID               string
	PositionID       uint64
	Owner            string
	SendTo           string
	RemainingSwaps   int
	CAssetRatios     []math.LegacyDec
}

package cdp

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

// Sentinel errors for the error kinds spec.md §7 lists that carry no
// payload. Kinds that carry data (NonExistentPosition, PositionInsolvent,
// BelowMinimumDebt, SupplyCapExceeded, ExpungedAssetPresent) are their own
// struct types below so callers can inspect them with errors.As.
var (
	ErrFrozen              = errors.New("cdp: basket is frozen")
	ErrNoRepaymentPrice    = errors.New("cdp: no repayment price, oracle not set")
	ErrNoUserPositions     = errors.New("cdp: owner has no positions")
	ErrMaxPositionsReached = errors.New("cdp: owner already holds the maximum number of positions")
	ErrInvalidCollateral   = errors.New("cdp: asset is not accepted collateral for this basket")
	ErrInvalidWithdrawal   = errors.New("cdp: withdrawal exceeds the position's held amount")
	ErrPositionSolvent     = errors.New("cdp: position is not eligible for liquidation")
	ErrInvalidCredit       = errors.New("cdp: credit asset denom mismatch")
	ErrExcessRepayment     = errors.New("cdp: repayment exceeds outstanding debt")
	ErrUnauthorized        = errors.New("cdp: caller does not own this position")
	ErrMultiAssetCapExceeded = errors.New("cdp: multi-asset supply cap exceeded")
	ErrFaultyCalc          = errors.New("cdp: calculation produced an invalid result")
	ErrOraclePriceStale    = errors.New("cdp: cached oracle price older than the allowed window")
	ErrOracleMoveGuard     = errors.New("cdp: oracle price moved more than the allowed ±20% band")
	ErrLPAssetOrderMismatch = errors.New("cdp: LP underlying asset order changed between pool queries")
	ErrNoCollateralAtPremium = errors.New("cdp: no collateral redeemed at or below the requested max premium")
	ErrOrphanedReply       = errors.New("cdp: reply does not match an in-flight propagation record")
	ErrPoolNotConfigured   = errors.New("cdp: no basket configured for this engine instance")
	ErrMandatoryRedemptionOptIn = errors.New("cdp: position holds a hike_rates asset and cannot opt out of redemption")
)

// NonExistentPositionError reports a lookup miss for (owner, position_id).
type NonExistentPositionError struct {
	ID uint64
}

func (e *NonExistentPositionError) Error() string {
	return fmt.Sprintf("cdp: position %d does not exist", e.ID)
}

// PositionInsolventError carries the LTV snapshot that failed the solvency
// check, matching spec.md's `PositionInsolvent{snapshot}`.
type PositionInsolventError struct {
	PositionID   uint64
	CurrentLTV   math.LegacyDec
	MaxLTV       math.LegacyDec
	MaxBorrow    bool
}

func (e *PositionInsolventError) Error() string {
	bound := "max_LTV"
	if e.MaxBorrow {
		bound = "max_borrow_LTV"
	}
	return fmt.Sprintf("cdp: position %d insolvent: current_LTV=%s exceeds %s=%s", e.PositionID, e.CurrentLTV, bound, e.MaxLTV)
}

// BelowMinimumDebtError reports a resulting debt value under the basket's
// debt_minimum.
type BelowMinimumDebtError struct {
	Minimum math.Int
	Debt    math.Int
}

func (e *BelowMinimumDebtError) Error() string {
	return fmt.Sprintf("cdp: resulting debt value %s below minimum %s", e.Debt, e.Minimum)
}

// SupplyCapExceededError reports a per-asset cap breach.
type SupplyCapExceededError struct {
	Asset AssetInfo
	Ratio math.LegacyDec
	Cap   math.LegacyDec
}

func (e *SupplyCapExceededError) Error() string {
	return fmt.Sprintf("cdp: supply cap ratio for %s is over the limit (%s > %s)", e.Asset, e.Ratio, e.Cap)
}

// ExpungedAssetPresentError reports a withdrawal rejected by the
// expunged-asset rule.
type ExpungedAssetPresentError struct {
	Assets []AssetInfo
}

func (e *ExpungedAssetPresentError) Error() string {
	return fmt.Sprintf("cdp: withdrawal leaves zero-cap assets %v behind without fully draining them", e.Assets)
}

// InvalidLTVError reports a target-LTV solve request outside bounds.
type InvalidLTVError struct {
	Target math.LegacyDec
}

func (e *InvalidLTVError) Error() string {
	return fmt.Sprintf("cdp: invalid target LTV %s", e.Target)
}

// CustomError wraps a state-assurance ("possible state error") violation —
// a hard-abort designator for a latent bug, never meant to be recovered
// from by callers.
type CustomError struct {
	Msg string
}

func (e *CustomError) Error() string { return "cdp: possible state error: " + e.Msg }

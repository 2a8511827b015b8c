package cdp

import (
	"errors"

	"cosmossdk.io/math"
)

// ErrRedemptionQuotaExceeded reports a redeemer exceeding its configured
// per-epoch redemption volume. The basket optionally caps how much
// credit any single redeemer can redeem from the basket per epoch, so one
// large redeemer cannot walk the entire book in a single call.
var ErrRedemptionQuotaExceeded = errors.New("cdp: redeemer's per-epoch redemption quota exceeded")

// RedemptionQuotaNow tracks one redeemer's consumed quota within the current
// epoch.
type RedemptionQuotaNow struct {
	EpochID    int64
	CreditUsed math.Int
}

// checkRedemptionQuota rolls prev over to the current epoch if needed, then
// verifies addCredit fits within limitPerEpoch. A non-positive limit or
// epoch length disables throttling entirely.
func checkRedemptionQuota(limitPerEpoch math.Int, epochSeconds int64, now int64, prev RedemptionQuotaNow, addCredit math.Int) (RedemptionQuotaNow, error) {
	if epochSeconds <= 0 || limitPerEpoch.IsNil() || !limitPerEpoch.IsPositive() {
		return prev, nil
	}
	epochID := now / epochSeconds
	next := prev
	if prev.EpochID != epochID || next.CreditUsed.IsNil() {
		next = RedemptionQuotaNow{EpochID: epochID, CreditUsed: intZero}
	}
	next.CreditUsed = next.CreditUsed.Add(addCredit)
	if next.CreditUsed.GT(limitPerEpoch) {
		return prev, ErrRedemptionQuotaExceeded
	}
	return next, nil
}

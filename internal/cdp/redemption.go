package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// maxPremiumBps bounds the redemption opt-in premium bucket spread: premium
// is expressed in whole percentage points, 0..maxPremiumBps.
const maxPremiumBps = 99

// RedemptionMarket is component F: the debt-token redemption book. Owners
// opt in to a premium bucket; a redeemer walks buckets from the lowest
// premium up, repaying debt at basket.CreditPrice.Value in exchange for a
// proportional share of the position's collateral at a premium discount.
type RedemptionMarket struct {
	store   Store
	kernel  *PriceKernel
	token   TokenProxy
	revenue *RevenueRouter
}

// NewRedemptionMarket wires the market to its collaborators.
func NewRedemptionMarket(store Store, kernel *PriceKernel, token TokenProxy, revenue *RevenueRouter) *RedemptionMarket {
	return &RedemptionMarket{store: store, kernel: kernel, token: token, revenue: revenue}
}

// EditRedemptionInfo opts a caller's position in or out of the redemption
// book at the given premium, optionally restricting which collateral assets
// may be redeemed out of it. mandatory marks an opt-in the ledger forced (a
// rate-hike asset deposit). A position still holding a hike_rates asset can
// never opt out — EditRedemptionInfo rejects the call outright rather than
// silently re-forcing mandatory=true, so a caller always knows why.
func (r *RedemptionMarket) EditRedemptionInfo(owner string, positionID uint64, remainingRepayment math.Int, premium uint32, restricted []AssetInfo, mandatory bool) error {
	if premium > maxPremiumBps {
		return &InvalidLTVError{Target: math.LegacyNewDec(int64(premium))}
	}

	positions, err := r.store.GetPositions(owner)
	if err != nil {
		return err
	}
	holdsHikeAsset := false
	for _, p := range positions {
		if p.ID != positionID {
			continue
		}
		for _, c := range p.Collateral {
			if c.HikeRates {
				holdsHikeAsset = true
			}
		}
	}
	if holdsHikeAsset && !mandatory {
		return ErrMandatoryRedemptionOptIn
	}

	bucket, err := r.store.GetRedemptionBucket(premium)
	if err != nil {
		return err
	}

	entry := PositionRedemption{
		PositionID:                 positionID,
		Owner:                      owner,
		RemainingLoanRepayment:     remainingRepayment,
		RestrictedCollateralAssets: restricted,
		Mandatory:                  mandatory,
	}

	found := false
	for i := range bucket {
		if bucket[i].Owner != owner {
			continue
		}
		for j := range bucket[i].Entries {
			if bucket[i].Entries[j].PositionID == positionID {
				bucket[i].Entries[j] = entry
				found = true
			}
		}
		if !found {
			bucket[i].Entries = append(bucket[i].Entries, entry)
			found = true
		}
	}
	if !found {
		bucket = append(bucket, RedemptionBucketEntry{Owner: owner, Entries: []PositionRedemption{entry}})
	}

	return r.store.PutRedemptionBucket(premium, bucket)
}

// RedeemForCollateral walks premium buckets from zero up to maxPremium,
// repaying each opted-in position's debt with redeemer-supplied debt tokens
// and sending back a proportional, premium-discounted collateral share,
// until redeemAmount is exhausted or no more buckets are eligible.
func (r *RedemptionMarket) RedeemForCollateral(ctx context.Context, now int64, basket *Basket, redeemer string, redeemAmount math.Int, maxPremium uint32) error {
	if maxPremium > maxPremiumBps {
		maxPremium = maxPremiumBps
	}

	prevQuota, err := r.store.GetRedemptionQuota(redeemer)
	if err != nil {
		return err
	}
	nextQuota, err := checkRedemptionQuota(basket.RedemptionQuotaPerEpoch, basket.RedemptionEpochSeconds, now, prevQuota, redeemAmount)
	if err != nil {
		return err
	}

	remaining := redeemAmount
	redeemedAny := false
	totalNetRedeemed := intZero

	for premium := uint32(0); premium <= maxPremium && remaining.IsPositive(); premium++ {
		bucket, err := r.store.GetRedemptionBucket(premium)
		if err != nil {
			return err
		}
		if len(bucket) == 0 {
			continue
		}

		changed := false
		for bi := range bucket {
			owner := bucket[bi].Owner
			positions, err := r.store.GetPositions(owner)
			if err != nil {
				return err
			}

			kept := bucket[bi].Entries[:0]
			for _, entry := range bucket[bi].Entries {
				if !remaining.IsPositive() {
					kept = append(kept, entry)
					continue
				}
				posIdx := -1
				for i := range positions {
					if positions[i].ID == entry.PositionID {
						posIdx = i
						break
					}
				}
				if posIdx < 0 {
					changed = true
					continue // position closed since opt-in; drop the stale entry
				}
				pos := &positions[posIdx]

				maxRedeemable := pos.CreditAmount.Sub(basket.DebtMinimum)
				if maxRedeemable.IsNegative() {
					maxRedeemable = intZero
				}
				rawRedeemable := minInt(entry.RemainingLoanRepayment, minInt(maxRedeemable, remaining))
				if !rawRedeemable.IsPositive() {
					kept = append(kept, entry)
					continue
				}

				feeRate := basket.RedemptionFee
				if feeRate.IsNil() {
					feeRate = decZero
				}
				fee := feeRate.MulInt(rawRedeemable).TruncateInt()

				// The fee is charged on top of rawRedeemable out of the
				// redeemer's remaining budget when there's slack for it;
				// otherwise it is carved out of the redemption itself so
				// `remaining` never goes negative.
				var netRedeemable, consumedFromCaller math.Int
				slack := remaining.Sub(rawRedeemable)
				if slack.GTE(fee) {
					netRedeemable = rawRedeemable
					consumedFromCaller = rawRedeemable.Add(fee)
				} else {
					netRedeemable = rawRedeemable.Sub(fee)
					consumedFromCaller = rawRedeemable
				}
				if !netRedeemable.IsPositive() {
					kept = append(kept, entry)
					continue
				}

				if err := r.payoutRedemption(ctx, now, basket, pos, redeemer, netRedeemable, premium, entry.RestrictedCollateralAssets); err != nil {
					return err
				}
				pos.CreditAmount = pos.CreditAmount.Sub(netRedeemable)
				remaining = remaining.Sub(consumedFromCaller)
				totalNetRedeemed = totalNetRedeemed.Add(netRedeemable)
				redeemedAny = true
				changed = true

				entry.RemainingLoanRepayment = entry.RemainingLoanRepayment.Sub(netRedeemable)
				if entry.RemainingLoanRepayment.IsPositive() {
					kept = append(kept, entry)
				}
			}
			bucket[bi].Entries = kept

			if err := r.store.PutPositions(owner, positions); err != nil {
				return err
			}
		}

		nonEmpty := bucket[:0]
		for _, b := range bucket {
			if len(b.Entries) > 0 {
				nonEmpty = append(nonEmpty, b)
			}
		}
		if changed {
			if err := r.store.PutRedemptionBucket(premium, nonEmpty); err != nil {
				return err
			}
		}
	}

	if !redeemedAny {
		return ErrNoCollateralAtPremium
	}

	totalConsumed := redeemAmount.Sub(remaining)
	totalFee := totalConsumed.Sub(totalNetRedeemed)

	if totalNetRedeemed.IsPositive() {
		if err := r.token.Burn(ctx, basket.CreditDenom, totalNetRedeemed, redeemer); err != nil {
			return err
		}
	}
	if totalFee.IsPositive() {
		basket.PendingRevenue = basket.PendingRevenue.Add(totalFee)
		if err := r.revenue.RouteRevenue(ctx, basket, totalFee); err != nil {
			return err
		}
	}

	if err := r.store.PutRedemptionQuota(redeemer, nextQuota); err != nil {
		return err
	}
	return r.store.PutBasket(basket)
}

// payoutRedemption sends the redeemer a proportional, premium-discounted
// share of every unrestricted collateral asset the position holds.
func (r *RedemptionMarket) payoutRedemption(ctx context.Context, now int64, basket *Basket, pos *Position, redeemer string, creditRedeemed math.Int, premium uint32, restricted []AssetInfo) error {
	ratios, prices, err := r.kernel.Ratios(ctx, now, pos.Collateral)
	if err != nil {
		return err
	}
	discount := decOne.Sub(math.LegacyNewDec(int64(premium)).QuoInt64(100))

	for i, held := range pos.Collateral {
		if isRestricted(held.Info, restricted) {
			continue
		}
		creditValue := ValueOf(creditRedeemed, basket.CreditPrice.Value)
		share := ratios[i].MulInt(creditValue).Mul(discount).TruncateInt()
		amount, err := AmountOf(share, prices[i])
		if err != nil {
			return err
		}
		amount = minInt(amount, held.Amount)
		if !amount.IsPositive() {
			continue
		}
		pos.Collateral[i].Amount = pos.Collateral[i].Amount.Sub(amount)
		if err := r.token.Transfer(ctx, held.Info, amount, redeemer); err != nil {
			return err
		}
	}
	return nil
}

func isRestricted(info AssetInfo, restricted []AssetInfo) bool {
	for _, r := range restricted {
		if r.Equal(info) {
			return true
		}
	}
	return false
}

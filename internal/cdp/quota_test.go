package cdp

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
)

func TestCheckRedemptionQuotaLimit(t *testing.T) {
	limit := math.NewInt(1000)
	prev := RedemptionQuotaNow{EpochID: 1, CreditUsed: math.NewInt(900)}

	denied, err := checkRedemptionQuota(limit, 3600, 3600, prev, math.NewInt(200))
	if !errors.Is(err, ErrRedemptionQuotaExceeded) {
		t.Fatalf("err = %v, want ErrRedemptionQuotaExceeded", err)
	}
	if !denied.CreditUsed.Equal(prev.CreditUsed) {
		t.Fatalf("expected counters unchanged on denial, got %s", denied.CreditUsed)
	}

	next, err := checkRedemptionQuota(limit, 3600, 3600, prev, math.NewInt(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.CreditUsed.Equal(math.NewInt(950)) {
		t.Fatalf("credit used = %s, want 950", next.CreditUsed)
	}
}

func TestCheckRedemptionQuotaRollsOverOnNewEpoch(t *testing.T) {
	limit := math.NewInt(1000)
	prev := RedemptionQuotaNow{EpochID: 1, CreditUsed: math.NewInt(900)}

	next, err := checkRedemptionQuota(limit, 3600, 7300, prev, math.NewInt(500))
	if err != nil {
		t.Fatalf("unexpected error after rollover: %v", err)
	}
	if next.EpochID != 2 {
		t.Fatalf("epoch = %d, want 2", next.EpochID)
	}
	if !next.CreditUsed.Equal(math.NewInt(500)) {
		t.Fatalf("credit used after rollover = %s, want 500", next.CreditUsed)
	}
}

func TestCheckRedemptionQuotaDisabledWhenUnset(t *testing.T) {
	prev := RedemptionQuotaNow{}
	next, err := checkRedemptionQuota(math.Int{}, 0, 1000, prev, math.NewInt(5000))
	if err != nil {
		t.Fatalf("unexpected error with quota disabled: %v", err)
	}
	if next.EpochID != prev.EpochID {
		t.Fatalf("expected prev unchanged when quota disabled")
	}
}

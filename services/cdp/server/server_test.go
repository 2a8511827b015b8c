package server

import (
	"context"
	"errors"
	"testing"

	"github.com/covenantlabs/cdpcore/internal/cdp"
	"github.com/covenantlabs/cdpcore/services/cdp/engine"
)

func TestDepositTranslatesNotFoundError(t *testing.T) {
	fake := &fakeEngine{
		depositFn: func(ctx context.Context, owner string, positionID *uint64, assets []engine.CAsset) (uint64, error) {
			return 0, &cdp.NonExistentPositionError{ID: 7}
		},
	}
	svc := New(fake, 10, 10)
	_, err := svc.Deposit(context.Background(), "alice", nil, nil)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Code != CodeNotFound {
		t.Fatalf("code = %s, want not_found", svcErr.Code)
	}
}

func TestDepositSucceeds(t *testing.T) {
	fake := &fakeEngine{
		depositFn: func(ctx context.Context, owner string, positionID *uint64, assets []engine.CAsset) (uint64, error) {
			return 42, nil
		},
	}
	svc := New(fake, 10, 10)
	id, err := svc.Deposit(context.Background(), "alice", nil, nil)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestRedeemForCollateralRateLimitsPerCaller(t *testing.T) {
	fake := &fakeEngine{
		redeemForCollateralFn: func(ctx context.Context, redeemer, amount string, maxPremiumBps uint32) error {
			return nil
		},
		getBasketFn: func(ctx context.Context) (engine.Basket, error) {
			return engine.Basket{CreditDenom: "ucdp"}, nil
		},
	}
	svc := New(fake, 1, 1)
	if err := svc.RedeemForCollateral(context.Background(), "redeemer", "100", 5); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := svc.RedeemForCollateral(context.Background(), "redeemer", "100", 5)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError on throttled call, got %v", err)
	}
	if svcErr.Code != CodeInvalidArgument {
		t.Fatalf("code = %s, want invalid_argument", svcErr.Code)
	}
}

func TestClosePositionTranslatesNotFoundError(t *testing.T) {
	fake := &fakeEngine{
		closePositionFn: func(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error {
			return &cdp.NonExistentPositionError{ID: positionID}
		},
	}
	svc := New(fake, 10, 10)
	err := svc.ClosePosition(context.Background(), "alice", 3, "alice", "", "0.02")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Code != CodeNotFound {
		t.Fatalf("code = %s, want not_found", svcErr.Code)
	}
}

func TestClosePositionSucceeds(t *testing.T) {
	fake := &fakeEngine{
		closePositionFn: func(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error {
			return nil
		},
	}
	svc := New(fake, 10, 10)
	if err := svc.ClosePosition(context.Background(), "alice", 3, "alice", "", "0.02"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
}

func TestEditRedemptionInfoPublishesToFeed(t *testing.T) {
	fake := &fakeEngine{}
	svc := New(fake, 10, 10)
	events, unsubscribe := svc.Feed().Subscribe()
	defer unsubscribe()

	if err := svc.EditRedemptionInfo(context.Background(), "alice", 1, "500", 5, nil, false); err != nil {
		t.Fatalf("EditRedemptionInfo: %v", err)
	}
	select {
	case event := <-events:
		if event.Owner != "alice" || event.PositionID != 1 {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("expected a published event")
	}
}

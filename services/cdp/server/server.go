// Package server exposes the CDP engine as a logging, rate-limited,
// typed-error-translating operation surface plus a websocket feed for
// redemption-book changes. Wire serialization of requests/responses is left
// to whatever transport embeds this package.
package server

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/covenantlabs/cdpcore/services/cdp/engine"
)

// Service wraps a cdp engine facade with the operational concerns a
// production surface needs: structured logging, per-caller rate limiting on
// the redemption path, metrics, and a change feed for the redemption book.
type Service struct {
	engine engine.Engine
	logger *slog.Logger
	limits *callerLimiter
	feed   *RedemptionFeed
	metrics *metrics
	now    func() time.Time
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service around an already-wired engine facade.
func New(eng engine.Engine, redeemPerSecond float64, redeemBurst int, opts ...Option) *Service {
	s := &Service{
		engine:  eng,
		logger:  slog.Default(),
		limits:  newCallerLimiter(redeemPerSecond, redeemBurst),
		feed:    NewRedemptionFeed(),
		metrics: Metrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) observe(method string, start time.Time, err *ServiceError) {
	var plain error
	if err != nil {
		plain = err
	}
	s.metrics.observe(method, s.now().Sub(start), plain)
	if err != nil && err.Code == CodeInternal {
		s.logger.Error("cdp operation failed", "method", method, "error", err.Err)
	}
}

// Deposit adds collateral to a position.
func (s *Service) Deposit(ctx context.Context, owner string, positionID *uint64, assets []engine.CAsset) (uint64, error) {
	start := s.now()
	id, err := s.engine.Deposit(ctx, owner, positionID, assets)
	svcErr := translateEngineError(err)
	s.observe("deposit", start, svcErr)
	if svcErr != nil {
		return 0, svcErr
	}
	return id, nil
}

// Withdraw removes collateral from a position.
func (s *Service) Withdraw(ctx context.Context, owner string, positionID uint64, caller string, assets []engine.CAsset) error {
	start := s.now()
	err := s.engine.Withdraw(ctx, owner, positionID, caller, assets)
	svcErr := translateEngineError(err)
	s.observe("withdraw", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	return nil
}

// IncreaseDebt mints new debt against a position.
func (s *Service) IncreaseDebt(ctx context.Context, owner string, positionID uint64, caller, amount, targetLTV, mintTo string) error {
	start := s.now()
	err := s.engine.IncreaseDebt(ctx, owner, positionID, caller, amount, targetLTV, mintTo)
	svcErr := translateEngineError(err)
	s.observe("increase_debt", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	return nil
}

// Repay burns debt off a position.
func (s *Service) Repay(ctx context.Context, owner string, positionID uint64, payer, amount string) error {
	start := s.now()
	err := s.engine.Repay(ctx, owner, positionID, payer, amount)
	svcErr := translateEngineError(err)
	s.observe("repay", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	return nil
}

// Liquidate drains an insolvent position. Tier outcomes are not observable
// from the facade's error alone, so the tier counters are incremented by
// whatever transport has visibility into the propagation record; here only
// the top-level outcome is recorded.
func (s *Service) Liquidate(ctx context.Context, owner string, positionID uint64, caller string) error {
	start := s.now()
	err := s.engine.Liquidate(ctx, owner, positionID, caller)
	svcErr := translateEngineError(err)
	s.observe("liquidate", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	return nil
}

// ClosePosition fully repays a position by selling its own collateral
// through the swap router rather than requiring the caller to supply debt
// tokens directly.
func (s *Service) ClosePosition(ctx context.Context, owner string, positionID uint64, caller, sendTo, maxSpread string) error {
	start := s.now()
	err := s.engine.ClosePosition(ctx, owner, positionID, caller, sendTo, maxSpread)
	svcErr := translateEngineError(err)
	s.observe("close_position", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	return nil
}

// EditRedemptionInfo opts a position into or out of the redemption book and
// publishes the change on the feed.
func (s *Service) EditRedemptionInfo(ctx context.Context, owner string, positionID uint64, remainingRepayment string, premiumBps uint32, restricted []string, mandatory bool) error {
	start := s.now()
	err := s.engine.EditRedemptionInfo(ctx, owner, positionID, remainingRepayment, premiumBps, restricted, mandatory)
	svcErr := translateEngineError(err)
	s.observe("edit_redemption_info", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	s.feed.Publish(RedemptionBookEvent{
		Owner:      owner,
		PositionID: positionID,
		PremiumBps: premiumBps,
		Mandatory:  mandatory,
		OptedOut:   remainingRepayment == "0",
	})
	return nil
}

// RedeemForCollateral redeems debt tokens for a discounted collateral share.
// Callers are rate-limited per redeemer, since a single redemption can walk
// every opted-in position at or below the requested premium.
func (s *Service) RedeemForCollateral(ctx context.Context, redeemer, amount string, maxPremiumBps uint32) error {
	if !s.limits.Allow(redeemer) {
		s.metrics.recordThrottle("redeem_for_collateral")
		return &ServiceError{Code: CodeInvalidArgument, Err: errThrottled}
	}
	start := s.now()
	err := s.engine.RedeemForCollateral(ctx, redeemer, amount, maxPremiumBps)
	svcErr := translateEngineError(err)
	s.observe("redeem_for_collateral", start, svcErr)
	if svcErr != nil {
		return svcErr
	}
	if volume, parseErr := strconv.ParseFloat(amount, 64); parseErr == nil {
		basket, bErr := s.engine.GetBasket(ctx)
		if bErr == nil {
			s.metrics.recordRedemption(basket.CreditDenom, volume)
		}
	}
	return nil
}

// GetPosition reads a position snapshot.
func (s *Service) GetPosition(ctx context.Context, owner string, positionID uint64) (engine.Position, error) {
	pos, err := s.engine.GetPosition(ctx, owner, positionID)
	if svcErr := translateEngineError(err); svcErr != nil {
		return engine.Position{}, svcErr
	}
	return pos, nil
}

// GetBasket reads the current basket snapshot.
func (s *Service) GetBasket(ctx context.Context) (engine.Basket, error) {
	basket, err := s.engine.GetBasket(ctx)
	if svcErr := translateEngineError(err); svcErr != nil {
		return engine.Basket{}, svcErr
	}
	return basket, nil
}

// Feed returns the redemption-book change feed for websocket subscribers.
func (s *Service) Feed() *RedemptionFeed { return s.feed }

var errThrottled = &throttledError{}

type throttledError struct{}

func (*throttledError) Error() string { return "cdp: redemption rate limit exceeded for this caller" }

// callerLimiter hands out a token-bucket limiter per caller identity,
// mirroring the gateway's per-visitor rate limiting at the service boundary.
type callerLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perSec   float64
	burst    int
}

func newCallerLimiter(perSec float64, burst int) *callerLimiter {
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{visitors: make(map[string]*rate.Limiter), perSec: perSec, burst: burst}
}

func (c *callerLimiter) Allow(caller string) bool {
	c.mu.Lock()
	limiter, ok := c.visitors[caller]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(c.perSec), c.burst)
		c.visitors[caller] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

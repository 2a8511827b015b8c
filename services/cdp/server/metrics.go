package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	accruals    *prometheus.CounterVec
	liqTier     *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	throttles   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	registry    *metrics
)

// Metrics returns the lazily-initialised metrics registry for the cdp
// service surface.
func Metrics() *metrics {
	metricsOnce.Do(func() {
		registry = &metrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Total cdp operations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cdp",
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for cdp operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "rates",
				Name:      "accrual_total",
				Help:      "Count of interest accrual passes segmented by basket.",
			}, []string{"credit_denom"}),
			liqTier: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "liquidation",
				Name:      "tier_fills_total",
				Help:      "Count of liquidations that reached a given tier, segmented by tier.",
			}, []string{"tier"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "redemption",
				Name:      "volume_total",
				Help:      "Cumulative credit-denominated volume redeemed for collateral.",
			}, []string{"credit_denom"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdp",
				Subsystem: "server",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the per-caller rate limiter.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			registry.requests,
			registry.latency,
			registry.accruals,
			registry.liqTier,
			registry.redemptions,
			registry.throttles,
		)
	})
	return registry
}

func (m *metrics) observe(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(d.Seconds())
}

func (m *metrics) recordThrottle(method string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(method).Inc()
}

func (m *metrics) recordLiquidationTier(tier string) {
	if m == nil {
		return
	}
	m.liqTier.WithLabelValues(tier).Inc()
}

func (m *metrics) recordRedemption(creditDenom string, volume float64) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(creditDenom).Add(volume)
}

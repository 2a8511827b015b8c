package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cosmossdk.io/math"

	"github.com/covenantlabs/cdpcore/internal/cdp"
	"github.com/covenantlabs/cdpcore/internal/cdp/memstore"
	"github.com/covenantlabs/cdpcore/observability/logging"
	telemetry "github.com/covenantlabs/cdpcore/observability/otel"
	"github.com/covenantlabs/cdpcore/services/cdp/config"
	cdpengine "github.com/covenantlabs/cdpcore/services/cdp/engine"
	"github.com/covenantlabs/cdpcore/services/cdp/server"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/cdp/config.yaml", "path to cdpd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CDP_ENV"))
	logger := logging.Setup("cdpd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	otlpEndpoint := strings.TrimSpace(cfg.Telemetry.Endpoint)
	insecure := cfg.Telemetry.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "cdpd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	runSelfCheck(logger)

	store := memstore.New()
	if err := seedBasket(store, cfg); err != nil {
		log.Fatalf("seed basket: %v", err)
	}

	oracle := newStubOracle()
	engine := cdp.NewEngine(cfg.Basket.OracleTimeLimitSecs)
	engine.SetState(store)
	engine.SetPauses(stubPauseView{})
	engine.SetTokenProxy(stubTokenProxy{})
	engine.SetOracle(oracle)
	engine.SetPoolQuerier(stubPoolQuerier{})

	adapter := cdpengine.NewAdapter(engine, time.Now)
	svc := server.New(adapter, cfg.RateLimit.RedeemPerSecond, cfg.RateLimit.RedeemBurst, server.WithLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/redemptions/feed", svc.ServeHTTP)

	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("cdpd listening", "addr", cfg.MetricsAddr)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func seedBasket(store *memstore.Store, cfg config.Config) error {
	baseRate, err := math.LegacyNewDecFromStr(orDefault(cfg.Basket.BaseInterestRate, "0.02"))
	if err != nil {
		return err
	}
	desiredUtil, err := math.LegacyNewDecFromStr(orDefault(cfg.Basket.DesiredDebtCapUtil, "0.9"))
	if err != nil {
		return err
	}
	debtMin, ok := math.NewIntFromString(orDefault(cfg.Basket.DebtMinimum, "0"))
	if !ok {
		debtMin = math.ZeroInt()
	}

	var redemptionFee math.LegacyDec
	if strings.TrimSpace(cfg.Basket.RedemptionFee) != "" {
		redemptionFee, err = math.LegacyNewDecFromStr(cfg.Basket.RedemptionFee)
		if err != nil {
			return err
		}
	}
	var liqFee math.LegacyDec
	if strings.TrimSpace(cfg.Basket.LiqFee) != "" {
		liqFee, err = math.LegacyNewDecFromStr(cfg.Basket.LiqFee)
		if err != nil {
			return err
		}
	}

	return store.PutBasket(&cdp.Basket{
		CreditDenom:        cfg.Basket.CreditDenom,
		CreditPrice:        cdp.CreditPrice{Value: math.LegacyOneDec(), Source: "boot-seed"},
		BaseInterestRate:   baseRate,
		DesiredDebtCapUtil: desiredUtil,
		DebtMinimum:        debtMin,
		NegativeRates:      cfg.Basket.NegativeRates,
		RevToStakers:       cfg.Basket.RevToStakers,
		RedemptionFee:      redemptionFee,
		LiqFee:             liqFee,
		RangeBoundVault:    cfg.Basket.RangeBoundVault,
	})
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Package config loads the cdpd service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the CDP engine daemon.
type Config struct {
	ListenAddress string         `yaml:"listen"`
	MetricsAddr   string         `yaml:"metrics_listen"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Basket        BasketConfig    `yaml:"basket"`
}

// TelemetryConfig controls the OpenTelemetry exporter wiring.
type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Metrics     bool              `yaml:"metrics"`
	Traces      bool              `yaml:"traces"`
	Environment string            `yaml:"environment"`
}

// RateLimitConfig bounds the redemption endpoint's request rate, since a
// redemption walks every opted-in position in a premium bucket and is the
// single most expensive externally-triggerable call the service exposes.
type RateLimitConfig struct {
	RedeemPerSecond float64 `yaml:"redeem_per_second"`
	RedeemBurst     int     `yaml:"redeem_burst"`
}

// BasketConfig seeds the single basket this engine instance serves at boot,
// when no prior state exists in the configured store.
type BasketConfig struct {
	CreditDenom        string  `yaml:"credit_denom"`
	BaseInterestRate    string  `yaml:"base_interest_rate"`
	DesiredDebtCapUtil  string  `yaml:"desired_debt_cap_util"`
	CPCMarginOfError    string  `yaml:"cpc_margin_of_error"`
	DebtMinimum         string  `yaml:"debt_minimum"`
	NegativeRates       bool    `yaml:"negative_rates"`
	RevToStakers        bool    `yaml:"rev_to_stakers"`
	OracleTimeLimitSecs int64   `yaml:"oracle_time_limit_seconds"`
	RedemptionFee       string  `yaml:"redemption_fee"`
	LiqFee              string  `yaml:"liq_fee"`
	RangeBoundVault     string  `yaml:"range_bound_vault"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8443",
		MetricsAddr:   ":9464",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8443"
	}
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9464"
	}
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	cfg.Basket.CreditDenom = strings.TrimSpace(cfg.Basket.CreditDenom)
	if cfg.Basket.OracleTimeLimitSecs == 0 {
		cfg.Basket.OracleTimeLimitSecs = 3600
	}
	if cfg.RateLimit.RedeemPerSecond == 0 {
		cfg.RateLimit.RedeemPerSecond = 1
	}
	if cfg.RateLimit.RedeemBurst == 0 {
		cfg.RateLimit.RedeemBurst = 5
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Basket.CreditDenom == "" {
		return fmt.Errorf("basket.credit_denom is required")
	}
	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when metrics or traces are enabled")
		}
	}
	if cfg.RateLimit.RedeemPerSecond <= 0 {
		return fmt.Errorf("rate_limit.redeem_per_second must be positive")
	}
	return nil
}

// Package config provides configuration management for the planner service.
package config

import (
	"fmt"
	"time"

	"github.com/solatis/waveplanner/internal/types"
)

// PlannerConfig holds configuration for the gRPC planner service.
type PlannerConfig struct {
	Host               string
	Port               int
	MetricsAddr        string // empty disables the metrics listener
	RequestTimeout     time.Duration
	MaxOrders          int // per-request batch limit
	CompareParallelism int
	StockPointsFile    string
	DatabaseURL        string // empty selects the in-memory store
	Weights            types.Weights
	RateLimitRPS       float64 // 0 disables rate limiting
	RateLimitBurst     int
}

// DefaultPlannerConfig returns configuration with default values.
func DefaultPlannerConfig() *PlannerConfig {
	return &PlannerConfig{
		Host:               "0.0.0.0",
		Port:               50061,
		MetricsAddr:        ":9090",
		RequestTimeout:     30 * time.Second,
		MaxOrders:          10000,
		CompareParallelism: 4,
		Weights:            types.DefaultWeights(),
		RateLimitBurst:     50,
	}
}

// Addr returns the gRPC listen address.
func (c *PlannerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *PlannerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxOrders <= 0 {
		return fmt.Errorf("max_orders must be positive, got %d", cfg.MaxOrders)
	}
	if cfg.CompareParallelism <= 0 {
		return fmt.Errorf("compare_parallelism must be positive, got %d", cfg.CompareParallelism)
	}
	if err := cfg.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must not be negative, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("rate_limit_burst must be positive when rate limiting is enabled, got %d", cfg.RateLimitBurst)
	}
	return nil
}

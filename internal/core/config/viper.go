package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solatis/waveplanner/internal/types"
)

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"host":            "planner.host",
	"port":            "planner.port",
	"metrics-addr":    "planner.metrics_addr",
	"db-url":          "planner.db_url",
	"stock-points":    "planner.stock_points_file",
	"request-timeout": "planner.request_timeout",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags the user changed override lower layers.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*PlannerConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultPlannerConfig
	def := DefaultPlannerConfig()
	v.SetDefault("planner.host", def.Host)
	v.SetDefault("planner.port", def.Port)
	v.SetDefault("planner.metrics_addr", def.MetricsAddr)
	v.SetDefault("planner.request_timeout", def.RequestTimeout.String())
	v.SetDefault("planner.max_orders", def.MaxOrders)
	v.SetDefault("planner.compare_parallelism", def.CompareParallelism)
	v.SetDefault("planner.stock_points_file", "")
	v.SetDefault("planner.db_url", "")
	v.SetDefault("planner.weights.proximity", def.Weights.Proximity)
	v.SetDefault("planner.weights.cost", def.Weights.Cost)
	v.SetDefault("planner.weights.load", def.Weights.Load)
	v.SetDefault("planner.rate_limit_rps", def.RateLimitRPS)
	v.SetDefault("planner.rate_limit_burst", def.RateLimitBurst)

	// Bind environment variables with WP_ prefix
	v.SetEnvPrefix("WP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &PlannerConfig{
		Host:               v.GetString("planner.host"),
		Port:               v.GetInt("planner.port"),
		MetricsAddr:        v.GetString("planner.metrics_addr"),
		RequestTimeout:     v.GetDuration("planner.request_timeout"),
		MaxOrders:          v.GetInt("planner.max_orders"),
		CompareParallelism: v.GetInt("planner.compare_parallelism"),
		StockPointsFile:    v.GetString("planner.stock_points_file"),
		DatabaseURL:        v.GetString("planner.db_url"),
		Weights: types.Weights{
			Proximity: v.GetFloat64("planner.weights.proximity"),
			Cost:      v.GetFloat64("planner.weights.cost"),
			Load:      v.GetFloat64("planner.weights.load"),
		},
		RateLimitRPS:   v.GetFloat64("planner.rate_limit_rps"),
		RateLimitBurst: v.GetInt("planner.rate_limit_burst"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

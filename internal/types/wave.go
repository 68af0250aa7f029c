package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects how destinations are chosen for a wave.
type Mode string

const (
	// ModeStrategy scores every eligible stock point with a decision model.
	ModeStrategy Mode = "strategy"
	// ModeManual distributes orders over a pinned stock-point pool.
	ModeManual Mode = "manual"
)

// WaveConfig holds the destination mode and the per-sub-wave envelopes.
// A zero Max disables that upper bound.
type WaveConfig struct {
	Mode        Mode            `json:"mode" yaml:"mode"`
	StockPoints []StockPointID  `json:"stock_points,omitempty" yaml:"stock_points,omitempty"`
	MinOrders   int             `json:"min_orders" yaml:"min_orders"`
	MaxOrders   int             `json:"max_orders" yaml:"max_orders"`
	MinLines    int             `json:"min_lines" yaml:"min_lines"`
	MaxLines    int             `json:"max_lines" yaml:"max_lines"`
	MinQty      int             `json:"min_qty" yaml:"min_qty"`
	MaxQty      int             `json:"max_qty" yaml:"max_qty"`
	MinVolume   decimal.Decimal `json:"min_volume" yaml:"min_volume"`
	MaxVolume   decimal.Decimal `json:"max_volume" yaml:"max_volume"`
}

// DefaultWaveConfig mirrors the defaults of the orchestration settings screen.
func DefaultWaveConfig() WaveConfig {
	return WaveConfig{
		Mode:      ModeStrategy,
		MinOrders: 1,
		MaxOrders: 50,
		MinLines:  1,
		MaxLines:  200,
		MinQty:    1,
		MaxQty:    500,
		MinVolume: decimal.RequireFromString("0.1"),
		MaxVolume: decimal.RequireFromString("10.5"),
	}
}

// Validate enforces non-negative bounds and min <= max for every enabled max.
func (c WaveConfig) Validate() error {
	switch c.Mode {
	case ModeStrategy, ModeManual:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}

	ints := []struct {
		name     string
		min, max int
	}{
		{"orders", c.MinOrders, c.MaxOrders},
		{"lines", c.MinLines, c.MaxLines},
		{"qty", c.MinQty, c.MaxQty},
	}
	for _, b := range ints {
		if b.min < 0 || b.max < 0 {
			return fmt.Errorf("%w: %s bounds must be non-negative", ErrInvalidConfig, b.name)
		}
		if b.max > 0 && b.min > b.max {
			return fmt.Errorf("%w: min_%s %d exceeds max_%s %d", ErrInvalidConfig, b.name, b.min, b.name, b.max)
		}
	}

	if c.MinVolume.IsNegative() || c.MaxVolume.IsNegative() {
		return fmt.Errorf("%w: volume bounds must be non-negative", ErrInvalidConfig)
	}
	if c.MaxVolume.IsPositive() && c.MinVolume.GreaterThan(c.MaxVolume) {
		return fmt.Errorf("%w: min_volume %s exceeds max_volume %s", ErrInvalidConfig, c.MinVolume, c.MaxVolume)
	}
	return nil
}

// Weights are the decision engine's scoring weights. They are relative:
// the composite score divides by their sum.
type Weights struct {
	Proximity float64 `json:"proximity" yaml:"proximity"`
	Cost      float64 `json:"cost" yaml:"cost"`
	Load      float64 `json:"load" yaml:"load"`
}

// Total returns the sum of the weights.
func (w Weights) Total() float64 {
	return w.Proximity + w.Cost + w.Load
}

// Validate rejects negative weights and an all-zero weight set.
func (w Weights) Validate() error {
	if w.Proximity < 0 || w.Cost < 0 || w.Load < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}
	if w.Total() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultWeights weighs the three terms equally.
func DefaultWeights() Weights {
	return Weights{Proximity: 1, Cost: 1, Load: 1}
}

// DecisionModel is a strategy's automatic destination logic: which stock
// points are eligible and how candidates are weighed.
type DecisionModel struct {
	Weights      Weights  `json:"weights" yaml:"weights"`
	Regions      []string `json:"regions,omitempty" yaml:"regions,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Eligible reports whether sp passes the model's region and capability filter.
// Empty Regions admits every region; every listed capability is required.
// The filter does not depend on the order, so one run shares one candidate set.
func (m DecisionModel) Eligible(sp StockPoint) bool {
	if len(m.Regions) > 0 {
		found := false
		for _, r := range m.Regions {
			if strings.EqualFold(r, sp.Region) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, c := range m.Capabilities {
		if !sp.HasCapability(c) {
			return false
		}
	}
	return true
}

// StrategyStatus mirrors the dashboard status badge.
type StrategyStatus string

const (
	StatusDraft     StrategyStatus = "Draft"
	StatusActive    StrategyStatus = "Active"
	StatusScheduled StrategyStatus = "Scheduled"
)

// RunMetrics are the write-once outputs of one planning run.
type RunMetrics struct {
	RunAt           time.Time       `json:"run_at"`
	FulfillmentRate float64         `json:"fulfillment_rate"`
	OrderCount      int             `json:"order_count"`
	ItemCount       int             `json:"item_count"`
	MatchedCount    int             `json:"matched_count"`
	AssignedCount   int             `json:"assigned_count"`
	UnassignedCount int             `json:"unassigned_count"`
	SubWaveCount    int             `json:"sub_wave_count"`
	TotalLines      int             `json:"total_lines"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	MeanConfidence  float64         `json:"mean_confidence"`
}

// Strategy is a named, persisted orchestration strategy.
// Only Name and Rules are mutable after creation; History is append-only.
type Strategy struct {
	ID          StrategyID      `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      StrategyStatus  `json:"status"`
	Rules       []Condition     `json:"rules"`
	Config      WaveConfig      `json:"config"`
	Model       DecisionModel   `json:"model"`
	Schedule    json.RawMessage `json:"schedule,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastMetrics *RunMetrics     `json:"last_metrics,omitempty"`
	History     []RunMetrics    `json:"history,omitempty"`
}

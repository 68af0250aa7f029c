// Package types provides domain models shared across waveplanner components.
//
// Everything here is plain data: orders and stock points are immutable
// snapshots supplied by the data layer, and the planning engines never mutate
// them. JSON tags define the wire shape used by the gRPC layer and the
// snapshot loaders.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderID identifies an order within a planning snapshot.
type OrderID string

// StockPointID identifies a fulfillment stock point (warehouse, store).
type StockPointID string

// StrategyID represents a UUIDv7 strategy identifier.
// String alias keeps JSON serialization as a plain string.
type StrategyID string

// Priority is the order priority class shown in the rule builder.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Order is one pending order in the planning pool.
// Lines and Volume feed the wave envelopes; zero Lines counts as one line.
type Order struct {
	ID                OrderID         `json:"id" yaml:"id"`
	Client            string          `json:"client" yaml:"client"`
	Priority          Priority        `json:"priority" yaml:"priority"`
	SKU               string          `json:"sku" yaml:"sku"`
	Quantity          int             `json:"quantity" yaml:"quantity"`
	Date              time.Time       `json:"date" yaml:"date"`
	Channel           string          `json:"channel" yaml:"channel"`
	Status            string          `json:"status" yaml:"status"`
	Lines             int             `json:"lines,omitempty" yaml:"lines,omitempty"`
	Volume            decimal.Decimal `json:"volume" yaml:"volume"`
	Destination       *GeoPoint       `json:"destination,omitempty" yaml:"destination,omitempty"`
	DynamicAttributes map[string]any  `json:"dynamic_attributes,omitempty" yaml:"dynamic_attributes,omitempty"`
}

// LineCount returns the number of lines the order contributes to a wave.
func (o Order) LineCount() int {
	if o.Lines <= 0 {
		return 1
	}
	return o.Lines
}

// UnmarshalJSON accepts a calendar day ("2006-01-02") as well as RFC 3339
// for the date field. Unknown keys are rejected.
func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	aux := struct {
		*plain
		Date string `json:"date"`
	}{plain: (*plain)(o)}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	o.Date = time.Time{}
	if aux.Date == "" {
		return nil
	}
	t, err := ParseDate(aux.Date)
	if err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Date = t
	return nil
}

// ParseDate parses a calendar day or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
}

// StockPoint is a destination orders can be allocated to.
// Everything beyond ID is optional metadata used by decision models.
type StockPoint struct {
	ID           StockPointID    `json:"id" yaml:"id"`
	Region       string          `json:"region,omitempty" yaml:"region,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Location     *GeoPoint       `json:"location,omitempty" yaml:"location,omitempty"`
	FixedCost    decimal.Decimal `json:"fixed_cost" yaml:"fixed_cost"`
	UnitCost     decimal.Decimal `json:"unit_cost" yaml:"unit_cost"`
}

// HasCapability reports whether the stock point advertises capability c.
func (s StockPoint) HasCapability(c string) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Resource limits enforced by the rule engine and allocation engine.
const (
	// MaxPathDepth bounds dotted/indexed paths into dynamic attributes.
	MaxPathDepth = 16

	// MaxNestedWildcards limits [*] expansion in dynamic attribute paths.
	MaxNestedWildcards = 2

	// MaxInOperatorValues limits the literal set of in / not in clauses.
	MaxInOperatorValues = 64

	// MaxConditions limits the length of a single condition sequence.
	MaxConditions = 128
)

// Package allocation assigns matched orders to stock points under wave
// envelopes.
//
// A run has three stages, each in input order:
//
//  1. Eligibility: the candidate stock points for the run. Manual mode uses
//     the pinned pool, strategy mode the registered stock points admitted by
//     the decision model. Orders with no candidate are unassigned with
//     ReasonNoEligibleDestination.
//  2. Envelope packing: orders are accumulated into the current sub-wave
//     until the next one would breach a max bound, then the sub-wave closes
//     and a new one starts. A closed sub-wave below any min bound has all of
//     its orders unassigned with ReasonEnvelopeUnsatisfiable, as has an order
//     that breaches a max bound on its own.
//  3. Assignment: manual mode distributes round-robin over the pool,
//     strategy mode picks the highest-scoring candidate.
//
// Packing is greedy by arrival order, not a global bin-packing optimum.
package allocation

import (
	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

// ReasonCode explains why an order was not assigned.
type ReasonCode string

const (
	// ReasonNoEligibleDestination means no stock point could take the order.
	ReasonNoEligibleDestination ReasonCode = "NoEligibleDestination"
	// ReasonEnvelopeUnsatisfiable means the order could not be placed in a
	// sub-wave that satisfies every envelope bound.
	ReasonEnvelopeUnsatisfiable ReasonCode = "EnvelopeUnsatisfiable"
)

// Assignment places one order on one stock point.
type Assignment struct {
	OrderID      types.OrderID      `json:"order_id"`
	StockPointID types.StockPointID `json:"stock_point_id"`
	Confidence   float64            `json:"confidence"`
	SubWave      int                `json:"sub_wave"`
}

// Unassigned is an order routed out of the plan, with the reason.
type Unassigned struct {
	OrderID types.OrderID `json:"order_id"`
	Reason  ReasonCode    `json:"reason"`
	Detail  string        `json:"detail,omitempty"`
}

// SubWave is one closed, envelope-compliant group of orders.
type SubWave struct {
	Index    int             `json:"index"`
	OrderIDs []types.OrderID `json:"order_ids"`
	Orders   int             `json:"orders"`
	Lines    int             `json:"lines"`
	Quantity int             `json:"quantity"`
	Volume   decimal.Decimal `json:"volume"`
}

// WavePlan is the output of one allocation run. Every matched order appears
// exactly once across Assignments and Unassigned.
type WavePlan struct {
	Mode        types.Mode   `json:"mode"`
	Assignments []Assignment `json:"assignments"`
	Unassigned  []Unassigned `json:"unassigned_orders"`
	SubWaves    []SubWave    `json:"sub_waves"`
}

// Assignment returns the assignment for id, if the order was assigned.
func (p *WavePlan) Assignment(id types.OrderID) (Assignment, bool) {
	for _, a := range p.Assignments {
		if a.OrderID == id {
			return a, true
		}
	}
	return Assignment{}, false
}

// Index returns the plan's assignments keyed by order id.
func (p *WavePlan) Index() map[types.OrderID]Assignment {
	idx := make(map[types.OrderID]Assignment, len(p.Assignments))
	for _, a := range p.Assignments {
		idx[a.OrderID] = a
	}
	return idx
}

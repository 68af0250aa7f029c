package rules

import (
	"github.com/solatis/waveplanner/internal/schema"
	"github.com/solatis/waveplanner/internal/types"
)

// FilterResult is the outcome of filtering an order pool.
type FilterResult struct {
	Matched []types.Order
	// TypeMismatches counts clause evaluations whose order value could not
	// be coerced to the field type. Each one counted as a non-match.
	TypeMismatches int
	// MissingFields counts clause evaluations with no value on the order.
	MissingFields int
}

// Filter returns the orders satisfying seq, in input order.
// An empty sequence returns orders unchanged.
func Filter(seq *CompiledSequence, orders []types.Order) []types.Order {
	if seq.Len() == 0 {
		return orders
	}
	matched := make([]types.Order, 0, len(orders))
	for i := range orders {
		if Evaluate(seq, &orders[i]) {
			matched = append(matched, orders[i])
		}
	}
	return matched
}

// FilterDetailed is Filter plus per-clause diagnostics.
func FilterDetailed(seq *CompiledSequence, orders []types.Order) FilterResult {
	if seq.Len() == 0 {
		return FilterResult{Matched: orders}
	}
	result := FilterResult{Matched: make([]types.Order, 0, len(orders))}
	for i := range orders {
		mr := EvaluateDetailed(seq, &orders[i])
		for _, c := range mr.Clauses {
			switch c.Err {
			case types.ErrTypeMismatch:
				result.TypeMismatches++
			case types.ErrFieldNotFound:
				result.MissingFields++
			}
		}
		if mr.Matched {
			result.Matched = append(result.Matched, orders[i])
		}
	}
	return result
}

// Engine binds condition compilation to a field registry.
type Engine struct {
	registry *schema.Registry
}

// NewEngine creates a rules engine over reg. A nil reg uses schema.Default().
func NewEngine(reg *schema.Registry) *Engine {
	if reg == nil {
		reg = schema.Default()
	}
	return &Engine{registry: reg}
}

// Registry returns the field registry the engine compiles against.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Compile validates seq against the engine's registry.
func (e *Engine) Compile(seq []types.Condition) (*CompiledSequence, error) {
	return Compile(seq, e.registry)
}

// Filter compiles seq and filters orders with it.
func (e *Engine) Filter(seq []types.Condition, orders []types.Order) (FilterResult, error) {
	compiled, err := e.Compile(seq)
	if err != nil {
		return FilterResult{}, err
	}
	return FilterDetailed(compiled, orders), nil
}

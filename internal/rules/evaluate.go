// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Condition sequence evaluation.
 *
 * Evaluates a CompiledSequence against an order as a strict left fold:
 *
 *   r = clause[0]
 *   r = r AND clause[i]   (joiner AND)
 *   r = r OR  clause[i]   (joiner OR)
 *
 * There is no precedence grouping: "A OR B AND C" is ((A OR B) AND C), not
 * A OR (B AND C). This matches the rule builder, which only ever appends a
 * clause with a joiner.
 *
 * Evaluation flow per clause:
 *   1. Resolve the raw value (direct attribute or dynamic attribute)
 *   2. Coerce to the clause's value type
 *   3. Compare with the pre-coerced literal
 *
 * Missing values and coercion failures make the clause a non-match for that
 * order only (fail closed); they are reported in MatchResult and never abort
 * a batch. A clause whose result cannot change r (AND while r is false, OR
 * while r is true) is skipped; evaluation is pure so this is unobservable
 * beyond the Skipped flag.
 */

// ClauseOutcome records the result of one clause for one order.
type ClauseOutcome struct {
	ConditionID string
	Matched     bool
	Skipped     bool
	Err         error // ErrFieldNotFound or ErrTypeMismatch, nil otherwise
}

// MatchResult contains the outcome of evaluating a sequence against an order.
type MatchResult struct {
	OrderID types.OrderID
	Matched bool
	Clauses []ClauseOutcome
}

// Evaluate reports whether order satisfies seq.
func Evaluate(seq *CompiledSequence, order *types.Order) bool {
	if seq.Len() == 0 {
		return true
	}
	r := false
	for i := range seq.Conditions {
		cond := &seq.Conditions[i]
		if i > 0 && !needsClause(cond.Joiner, r) {
			continue
		}
		matched, _ := evaluateCondition(cond, order)
		r = fold(i, cond.Joiner, r, matched)
	}
	return r
}

// EvaluateDetailed evaluates seq and records every clause outcome.
func EvaluateDetailed(seq *CompiledSequence, order *types.Order) MatchResult {
	result := MatchResult{OrderID: order.ID, Matched: true}
	if seq.Len() == 0 {
		return result
	}

	result.Clauses = make([]ClauseOutcome, len(seq.Conditions))
	r := false
	for i := range seq.Conditions {
		cond := &seq.Conditions[i]
		outcome := ClauseOutcome{ConditionID: cond.ID}
		if i > 0 && !needsClause(cond.Joiner, r) {
			outcome.Skipped = true
			result.Clauses[i] = outcome
			continue
		}
		matched, err := evaluateCondition(cond, order)
		outcome.Matched = matched
		outcome.Err = err
		result.Clauses[i] = outcome
		r = fold(i, cond.Joiner, r, matched)
	}
	result.Matched = r
	return result
}

// needsClause reports whether a clause joined by j can change running result r.
func needsClause(j types.Joiner, r bool) bool {
	switch j {
	case types.JoinerAnd:
		return r
	case types.JoinerOr:
		return !r
	default:
		return true
	}
}

// fold combines the running result with clause i.
func fold(i int, j types.Joiner, r, clause bool) bool {
	if i == 0 {
		return clause
	}
	if j == types.JoinerOr {
		return r || clause
	}
	return r && clause
}

// evaluateCondition evaluates a single clause against order.
// Orchestrates: resolve field -> coerce type -> compare operator.
func evaluateCondition(cond *CompiledCondition, order *types.Order) (bool, error) {
	raw, err := resolveField(cond, order)
	if err != nil {
		return false, types.ErrFieldNotFound
	}

	if cond.Operator == types.OpContains {
		if elems, ok := listElements(raw); ok {
			return Compare(cond.Operator, coerceElements(elems, cond.ValueType), cond.Value), nil
		}
	}

	coerced, err := Coerce(raw, cond.ValueType)
	if err != nil {
		return false, types.ErrTypeMismatch
	}
	if coerced.IsNull {
		return false, types.ErrFieldNotFound
	}

	target := cond.Value
	if cond.Operator == types.OpIn || cond.Operator == types.OpNotIn {
		target = cond.Values
	}
	return Compare(cond.Operator, coerced.Value, target), nil
}

// listElements reports raw as a generic list if it is list-valued.
func listElements(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// coerceElements coerces list elements, dropping those that cannot be coerced.
func coerceElements(elems []any, vt types.ValueType) []any {
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		c, err := Coerce(e, vt)
		if err != nil || c.IsNull {
			continue
		}
		out = append(out, c.Value)
	}
	return out
}

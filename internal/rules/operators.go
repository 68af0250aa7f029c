// internal/rules/operators.go
package rules

import (
	"strings"
	"time"

	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the seven rule-builder operators. Values should already be
 * coerced via Coerce() before reaching Compare(): strings for string/enum
 * fields, float64 for numbers, bool, and UTC-day time.Time for dates.
 *
 * Operators:
 *   - is/is not: equality after coercion
 *   - contains: substring for scalars, membership for list-valued fields
 *   - in/not in: membership in the literal set parsed at compile time
 *   - greater than/less than: strict numeric or chronological order
 *
 * Ordering on non-orderable values fails closed: both greater than and less
 * than report false rather than picking an arbitrary side.
 */

// Compare applies the operator to compare value against target.
func Compare(op types.Operator, value, target any) bool {
	switch op {
	case types.OpIs:
		return compareEqual(value, target)
	case types.OpIsNot:
		return !compareEqual(value, target)
	case types.OpContains:
		return compareContains(value, target)
	case types.OpIn:
		return compareIn(value, target)
	case types.OpNotIn:
		return !compareIn(value, target)
	case types.OpGreaterThan:
		c, ok := compareOrdered(value, target)
		return ok && c > 0
	case types.OpLessThan:
		c, ok := compareOrdered(value, target)
		return ok && c < 0
	default:
		return false
	}
}

// compareEqual performs equality with numeric and time awareness.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if ta, tb, ok := asTimes(a, b); ok {
		return ta.Equal(tb)
	}
	return a == b
}

// compareOrdered performs three-way comparison (-1/0/1) and reports whether
// the pair was orderable at all.
func compareOrdered(a, b any) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	if ta, tb, ok := asTimes(a, b); ok {
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// asNumbers reports both values as float64 if both are numeric.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := a.(float64)
	nb, okb := b.(float64)
	return na, nb, oka && okb
}

// asTimes reports both values as time.Time if both are dates.
func asTimes(a, b any) (time.Time, time.Time, bool) {
	ta, oka := a.(time.Time)
	tb, okb := b.(time.Time)
	return ta, tb, oka && okb
}

// compareContains is a substring test for strings and a membership test for
// lists (elements already coerced by the evaluator).
func compareContains(value, target any) bool {
	switch v := value.(type) {
	case string:
		ts, ok := target.(string)
		if !ok {
			return false
		}
		return strings.Contains(v, ts)
	case []any:
		for _, elem := range v {
			if compareEqual(elem, target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compareIn checks if value exists in set using equality semantics.
func compareIn(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Type coercion for condition evaluation.
 *
 * Both sides of a clause are coerced to the field's declared type before the
 * operator runs: the literal once at compile time (failure is batch-fatal
 * ErrInvalidCondition), the order value per evaluation (failure is
 * ErrTypeMismatch, recovered as a non-match for that order only).
 *
 * Type modes:
 *   - STRING/ENUM: Lenient - auto-coerce scalars to their text form
 *   - NUMBER: Strict - numeric kinds and numeric strings to float64, reject booleans
 *   - BOOLEAN: bool, or the strings accepted by strconv.ParseBool
 *   - DATE: time.Time or "2006-01-02"/RFC 3339 strings, truncated to the UTC day
 *
 * Null/nil input is reported as IsNull rather than an error so the evaluator
 * can treat absent values and mismatched values separately.
 */

// dateLayouts are tried in order when coercing strings to dates.
var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04"}

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil
}

// Coerce attempts to convert value to the expected value type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrTypeMismatch for impossible coercions.
func Coerce(value any, vt types.ValueType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch vt {
	case types.ValueTypeString, types.ValueTypeEnum:
		return coerceText(value)
	case types.ValueTypeNumber:
		return coerceNumber(value)
	case types.ValueTypeBoolean:
		return coerceBoolean(value)
	case types.ValueTypeDate:
		return coerceDate(value)
	default:
		return CoercionResult{}, types.ErrTypeMismatch
	}
}

// coerceText converts scalars to their string form.
// Collections are rejected: "is" against a list has no single text form.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case types.Priority:
		return CoercionResult{Value: string(v)}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case decimal.Decimal:
		return CoercionResult{Value: v.String()}, nil
	case json.Number:
		return CoercionResult{Value: v.String()}, nil
	case time.Time:
		return CoercionResult{Value: v.UTC().Format("2006-01-02")}, nil
	case []any, []string, map[string]any:
		return CoercionResult{}, types.ErrTypeMismatch
	default:
		return CoercionResult{Value: fmt.Sprintf("%v", v)}, nil
	}
}

// coerceNumber converts value to float64 for numeric comparison.
// Whitespace-only strings return ErrTypeMismatch.
func coerceNumber(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case float64:
		return CoercionResult{Value: v}, nil
	case float32:
		return CoercionResult{Value: float64(v)}, nil
	case int:
		return CoercionResult{Value: float64(v)}, nil
	case int32:
		return CoercionResult{Value: float64(v)}, nil
	case int64:
		return CoercionResult{Value: float64(v)}, nil
	case decimal.Decimal:
		return CoercionResult{Value: v.InexactFloat64()}, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Value: f}, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Value: f}, nil
	default:
		// bool and collections never coerce to numbers
		return CoercionResult{}, types.ErrTypeMismatch
	}
}

// coerceBoolean accepts booleans and their canonical string forms.
func coerceBoolean(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case bool:
		return CoercionResult{Value: v}, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return CoercionResult{}, types.ErrTypeMismatch
		}
		return CoercionResult{Value: b}, nil
	default:
		return CoercionResult{}, types.ErrTypeMismatch
	}
}

// coerceDate converts value to a UTC calendar day.
// A zero time.Time counts as null: the order has no date.
func coerceDate(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return CoercionResult{IsNull: true}, nil
		}
		return CoercionResult{Value: truncateDay(v)}, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return CoercionResult{Value: truncateDay(t)}, nil
			}
		}
		return CoercionResult{}, types.ErrTypeMismatch
	default:
		return CoercionResult{}, types.ErrTypeMismatch
	}
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

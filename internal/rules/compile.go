// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/waveplanner/internal/schema"
	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Condition sequence compilation and validation.
 *
 * Compiles a []types.Condition into a CompiledSequence with resolved field
 * descriptors, parsed dynamic attribute paths and pre-coerced literals.
 *
 * Compilation workflow:
 *   1. Structural checks (ids, joiner placement, sequence length)
 *   2. Field lookup in the schema registry, sub-key rules for information fields
 *   3. Operator applicability for the effective value type
 *   4. Literal coercion (comma-separated set for in / not in)
 *
 * Every failure wraps ErrInvalidCondition and is batch-fatal: a sequence
 * either compiles completely or not at all. Clause order is preserved
 * exactly since the evaluator folds strictly left to right.
 */

// CompiledCondition is a pre-processed clause ready for evaluation.
type CompiledCondition struct {
	ID        string
	Field     schema.FieldDescriptor
	Key       string              // dynamic attribute key (dynamic fields only)
	Path      []types.PathSegment // parsed Key, nil when Key has no path syntax
	Operator  types.Operator
	ValueType types.ValueType
	Value     any   // coerced literal (all operators except in / not in)
	Values    []any // coerced literal set for in / not in
	Joiner    types.Joiner
}

// CompiledSequence is a validated condition sequence.
// An empty sequence matches every order.
type CompiledSequence struct {
	Conditions []CompiledCondition
}

// Len returns the number of clauses.
func (s *CompiledSequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Conditions)
}

// Compile validates seq against reg and pre-processes it for evaluation.
func Compile(seq []types.Condition, reg *schema.Registry) (*CompiledSequence, error) {
	if len(seq) > types.MaxConditions {
		return nil, fmt.Errorf("%w: sequence has %d clauses, maximum is %d", types.ErrInvalidCondition, len(seq), types.MaxConditions)
	}

	compiled := &CompiledSequence{
		Conditions: make([]CompiledCondition, 0, len(seq)),
	}
	seen := make(map[string]bool, len(seq))

	for i, cond := range seq {
		if cond.ID == "" {
			return nil, fmt.Errorf("%w: clause %d has no id", types.ErrInvalidCondition, i)
		}
		if seen[cond.ID] {
			return nil, fmt.Errorf("%w: duplicate condition id %q", types.ErrInvalidCondition, cond.ID)
		}
		seen[cond.ID] = true

		cc, err := compileCondition(cond, i == 0, reg)
		if err != nil {
			return nil, fmt.Errorf("%w: condition %q: %w", types.ErrInvalidCondition, cond.ID, err)
		}
		compiled.Conditions = append(compiled.Conditions, cc)
	}

	return compiled, nil
}

// compileCondition validates and pre-processes a single clause.
func compileCondition(cond types.Condition, first bool, reg *schema.Registry) (CompiledCondition, error) {
	switch {
	case first && cond.Joiner != types.JoinerNone:
		return CompiledCondition{}, errors.New("first clause must not carry a joiner")
	case !first && cond.Joiner == types.JoinerNone:
		return CompiledCondition{}, errors.New("joiner required after the first clause")
	}

	desc, ok := reg.Lookup(cond.Field)
	if !ok {
		return CompiledCondition{}, fmt.Errorf("%w: %q", types.ErrUnknownField, cond.Field)
	}

	cc := CompiledCondition{
		ID:       cond.ID,
		Field:    desc,
		Operator: cond.Operator,
		Joiner:   cond.Joiner,
	}

	if desc.AllowsDynamicSubKey {
		name := strings.TrimSpace(cond.InfoFieldName)
		if name == "" {
			return CompiledCondition{}, fmt.Errorf("field %q requires an information field name", desc.Name)
		}
		switch cond.InfoFieldType {
		case types.ValueTypeUnspecified, types.ValueTypeString, types.ValueTypeNumber,
			types.ValueTypeBoolean, types.ValueTypeDate:
		default:
			return CompiledCondition{}, fmt.Errorf("unsupported information field type %s", cond.InfoFieldType)
		}
		cc.Key = name
		if path, err := ParsePath(name); err == nil {
			cc.Path = path
		} else if errors.Is(err, types.ErrPathTooDeep) || errors.Is(err, types.ErrTooManyWildcards) {
			return CompiledCondition{}, err
		}
	} else {
		if cond.InfoFieldName != "" {
			return CompiledCondition{}, fmt.Errorf("field %q does not take an information field name", desc.Name)
		}
		cc.Key = desc.DynamicKey
	}

	cc.ValueType = schema.EffectiveType(desc, cond.InfoFieldType)
	if err := schema.ValidateOperator(cc.ValueType, cond.Operator); err != nil {
		return CompiledCondition{}, err
	}

	switch cond.Operator {
	case types.OpIn, types.OpNotIn:
		values, err := compileValueSet(cond.Value, cc.ValueType, desc.EnumValues)
		if err != nil {
			return CompiledCondition{}, err
		}
		cc.Values = values
	case types.OpContains:
		if cond.Value == "" {
			return CompiledCondition{}, errors.New("contains requires a non-empty value")
		}
		cc.Value = cond.Value
	default:
		v, err := compileLiteral(cond.Value, cc.ValueType, desc.EnumValues)
		if err != nil {
			return CompiledCondition{}, err
		}
		cc.Value = v
	}

	return cc, nil
}

// compileValueSet parses a comma-separated literal set.
// Blank items are dropped; at least one item is required.
func compileValueSet(raw string, vt types.ValueType, enumValues []string) ([]any, error) {
	var values []any
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := compileLiteral(item, vt, enumValues)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, errors.New("in / not in requires at least one value")
	}
	if len(values) > types.MaxInOperatorValues {
		return nil, types.ErrTooManyInValues
	}
	return values, nil
}

// compileLiteral coerces a literal and checks enum membership.
func compileLiteral(raw string, vt types.ValueType, enumValues []string) (any, error) {
	coerced, err := Coerce(strings.TrimSpace(raw), vt)
	if err != nil || coerced.IsNull {
		return nil, fmt.Errorf("value %q is not a valid %s", raw, vt)
	}
	if vt == types.ValueTypeEnum && len(enumValues) > 0 {
		s := coerced.Value.(string)
		for _, allowed := range enumValues {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("value %q is not one of %s", raw, strings.Join(enumValues, ", "))
	}
	return coerced.Value, nil
}

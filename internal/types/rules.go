// internal/types/rules.go
package types

/*
 * Domain types for condition sequences.
 *
 * Provides Condition, Operator, Joiner, ValueType and PathSegment used by
 * internal/schema for validation and internal/rules for compilation and
 * evaluation. These types are wire-format agnostic: enums marshal as the
 * strings the rule builder shows ("is not", "greater than", "AND") so JSON
 * and YAML snapshots stay human-editable.
 *
 * Key types:
 *   - Condition: one (joiner, field, operator, value) clause
 *   - Operator: the seven rule-builder operators
 *   - Joiner: AND/OR, absent on the first clause
 *   - ValueType: declared semantic type of a field or information sub-field
 *   - PathSegment: one component of a dynamic attribute path
 */

import (
	"fmt"
	"strings"
)

// ValueType is the semantic type of an order field.
type ValueType int

const (
	ValueTypeUnspecified ValueType = iota
	ValueTypeString
	ValueTypeNumber
	ValueTypeBoolean
	ValueTypeDate
	ValueTypeEnum
)

var valueTypeNames = map[ValueType]string{
	ValueTypeString:  "string",
	ValueTypeNumber:  "number",
	ValueTypeBoolean: "boolean",
	ValueTypeDate:    "date",
	ValueTypeEnum:    "enum",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return "unspecified"
}

// ParseValueType accepts the lowercase type names used by the rule builder.
func ParseValueType(s string) (ValueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ValueTypeUnspecified, nil
	}
	for t, name := range valueTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ValueTypeUnspecified, fmt.Errorf("unknown value type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t ValueType) MarshalText() ([]byte, error) {
	if t == ValueTypeUnspecified {
		return []byte(""), nil
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ValueType) UnmarshalText(b []byte) error {
	parsed, err := ParseValueType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Operator is a clause comparison operator.
type Operator int

const (
	OpUnspecified Operator = iota
	OpIs
	OpIsNot
	OpContains
	OpIn
	OpNotIn
	OpGreaterThan
	OpLessThan
)

var operatorNames = map[Operator]string{
	OpIs:          "is",
	OpIsNot:       "is not",
	OpContains:    "contains",
	OpIn:          "in",
	OpNotIn:       "not in",
	OpGreaterThan: "greater than",
	OpLessThan:    "less than",
}

func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return "unspecified"
}

// ParseOperator accepts rule-builder spellings ("is not") as well as
// kebab/snake case ("is-not", "not_in").
func ParseOperator(s string) (Operator, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")
	for op, name := range operatorNames {
		if name == norm {
			return op, nil
		}
	}
	return OpUnspecified, fmt.Errorf("%w: %q", ErrInvalidOperator, s)
}

// MarshalText implements encoding.TextMarshaler.
func (op Operator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Operator) UnmarshalText(b []byte) error {
	parsed, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Joiner combines a clause with the running result of the clauses before it.
type Joiner int

const (
	JoinerNone Joiner = iota
	JoinerAnd
	JoinerOr
)

func (j Joiner) String() string {
	switch j {
	case JoinerAnd:
		return "AND"
	case JoinerOr:
		return "OR"
	default:
		return ""
	}
}

// ParseJoiner accepts AND/OR in any case; empty means no joiner.
func ParseJoiner(s string) (Joiner, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return JoinerNone, nil
	case "AND":
		return JoinerAnd, nil
	case "OR":
		return JoinerOr, nil
	default:
		return JoinerNone, fmt.Errorf("unknown joiner %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (j Joiner) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *Joiner) UnmarshalText(b []byte) error {
	parsed, err := ParseJoiner(string(b))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Condition is a single clause of a condition sequence.
// The first clause carries no joiner; every later clause carries exactly one.
// InfoFieldName/InfoFieldType are set only for information fields.
type Condition struct {
	ID            string    `json:"id" yaml:"id"`
	Field         string    `json:"field" yaml:"field"`
	Operator      Operator  `json:"operator" yaml:"operator"`
	Value         string    `json:"value" yaml:"value"`
	Joiner        Joiner    `json:"joiner,omitempty" yaml:"joiner,omitempty"`
	InfoFieldName string    `json:"info_field_name,omitempty" yaml:"info_field_name,omitempty"`
	InfoFieldType ValueType `json:"info_field_type,omitempty" yaml:"info_field_type,omitempty"`
}

// PathSegment represents one component of a dynamic attribute path.
// Key for object keys, Index for list positions, Wildcard for [*].
type PathSegment struct {
	Key      string // object key (mutually exclusive with Index/Wildcard)
	Index    int    // list index (mutually exclusive with Key/Wildcard)
	IsIndex  bool   // disambiguates Index=0 from unset
	Wildcard bool   // true = wildcard segment
}

// Package schema describes the order fields a condition can reference.
//
// The registry is the single place that knows a field's semantic type and
// where its value lives on an order: a direct attribute (client, quantity,
// ...) or a key in the order's dynamic attributes. Information fields
// ("Customer information", ...) take a caller-supplied sub-key and sub-type.
package schema

import (
	"fmt"
	"sort"

	"github.com/solatis/waveplanner/internal/types"
)

// Attribute names the direct order attribute a field reads.
// AttributeDynamic means the value lives in Order.DynamicAttributes.
type Attribute string

const (
	AttributeClient   Attribute = "client"
	AttributePriority Attribute = "priority"
	AttributeSKU      Attribute = "sku"
	AttributeQuantity Attribute = "quantity"
	AttributeDate     Attribute = "date"
	AttributeChannel  Attribute = "channel"
	AttributeStatus   Attribute = "status"
	AttributeLines    Attribute = "lines"
	AttributeVolume   Attribute = "volume"
	AttributeDynamic  Attribute = "dynamic"
)

// FieldDescriptor describes one selectable field.
type FieldDescriptor struct {
	Name                string          `json:"name"`
	ValueType           types.ValueType `json:"value_type"`
	AllowsDynamicSubKey bool            `json:"allows_dynamic_sub_key"`
	Attribute           Attribute       `json:"attribute"`
	// DynamicKey is the dynamic attribute key for AttributeDynamic fields
	// without a sub-key. Information fields leave it empty.
	DynamicKey string   `json:"dynamic_key,omitempty"`
	EnumValues []string `json:"enum_values,omitempty"`
}

// Registry is an immutable set of field descriptors keyed by name.
type Registry struct {
	fields map[string]FieldDescriptor
}

// NewRegistry builds a registry, rejecting empty and duplicate names.
func NewRegistry(descs ...FieldDescriptor) (*Registry, error) {
	r := &Registry{fields: make(map[string]FieldDescriptor, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("field descriptor with empty name")
		}
		if _, exists := r.fields[d.Name]; exists {
			return nil, fmt.Errorf("duplicate field descriptor %q", d.Name)
		}
		if d.AllowsDynamicSubKey && d.Attribute != AttributeDynamic {
			return nil, fmt.Errorf("field %q: information fields must read dynamic attributes", d.Name)
		}
		if d.Attribute == AttributeDynamic && !d.AllowsDynamicSubKey && d.DynamicKey == "" {
			return nil, fmt.Errorf("field %q: dynamic field needs a dynamic key", d.Name)
		}
		r.fields[d.Name] = d
	}
	return r, nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (FieldDescriptor, bool) {
	d, ok := r.fields[name]
	return d, ok
}

// Fields returns every descriptor sorted by name.
func (r *Registry) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(r.fields))
	for _, d := range r.fields {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EffectiveType returns the type values of d are compared as. Information
// fields use the declared sub-type, defaulting to string.
func EffectiveType(d FieldDescriptor, infoType types.ValueType) types.ValueType {
	if !d.AllowsDynamicSubKey {
		return d.ValueType
	}
	if infoType == types.ValueTypeUnspecified {
		return types.ValueTypeString
	}
	return infoType
}

// ValidateOperator checks op is applicable to values of type vt.
//
//	is / is not:                  every type
//	contains / in / not in:       string, enum
//	greater than / less than:     number, date
func ValidateOperator(vt types.ValueType, op types.Operator) error {
	switch op {
	case types.OpIs, types.OpIsNot:
		if vt == types.ValueTypeUnspecified {
			break
		}
		return nil
	case types.OpContains, types.OpIn, types.OpNotIn:
		if vt == types.ValueTypeString || vt == types.ValueTypeEnum {
			return nil
		}
	case types.OpGreaterThan, types.OpLessThan:
		if vt == types.ValueTypeNumber || vt == types.ValueTypeDate {
			return nil
		}
	}
	return fmt.Errorf("%w: %q on %s field", types.ErrInvalidOperator, op, vt)
}

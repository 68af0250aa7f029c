// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/waveplanner/internal/schema"
	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Field resolution for orders.
 *
 * Direct attributes (client, quantity, ...) are read from the Order struct.
 * Dynamic fields read Order.DynamicAttributes: first by exact key, then by
 * interpreting the key as a path ("address.city", "lines[0].sku",
 * "tags[*]") through nested maps and lists. Wildcards use ANY semantics:
 * the first element that resolves wins, and map keys are visited in sorted
 * order so resolution is deterministic.
 *
 * Limits: MaxPathDepth (16) segments and MaxNestedWildcards (2) wildcards,
 * enforced when the path is parsed at compile time.
 */

// ResolveResult contains the resolved value and the actual path taken.
type ResolveResult struct {
	Value        any                 // resolved value (nil if not found)
	ResolvedPath []types.PathSegment // path with wildcards replaced by actual indices
	Found        bool                // true if path resolved to a value
}

// ParsePath splits a dynamic attribute key into path segments.
// Grammar: segment ('.' segment)*, segment = key ('[' (index | '*') ']')*,
// and a bare '*' key is a wildcard.
func ParsePath(s string) ([]types.PathSegment, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty path")
	}

	var path []types.PathSegment
	for _, part := range strings.Split(s, ".") {
		key := part
		var brackets string
		if i := strings.IndexByte(part, '['); i >= 0 {
			key, brackets = part[:i], part[i:]
		}
		switch {
		case key == "*":
			path = append(path, types.PathSegment{Wildcard: true})
		case key != "":
			path = append(path, types.PathSegment{Key: key})
		case brackets == "":
			return nil, fmt.Errorf("empty segment in path %q", s)
		}

		for brackets != "" {
			end := strings.IndexByte(brackets, ']')
			if brackets[0] != '[' || end < 0 {
				return nil, fmt.Errorf("malformed index in path %q", s)
			}
			inner := brackets[1:end]
			brackets = brackets[end+1:]
			if inner == "*" {
				path = append(path, types.PathSegment{Wildcard: true})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid index %q in path %q", inner, s)
			}
			path = append(path, types.PathSegment{Index: idx, IsIndex: true})
		}
	}

	if err := checkPathLimits(path); err != nil {
		return nil, err
	}
	return path, nil
}

func checkPathLimits(path []types.PathSegment) error {
	if len(path) > types.MaxPathDepth {
		return types.ErrPathTooDeep
	}
	wildcardCount := 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcardCount++
		}
	}
	if wildcardCount > types.MaxNestedWildcards {
		return types.ErrTooManyWildcards
	}
	return nil
}

// Resolve traverses data following path segments.
// Returns ErrFieldNotFound if path does not exist in data.
func Resolve(path []types.PathSegment, data any) (ResolveResult, error) {
	if err := checkPathLimits(path); err != nil {
		return ResolveResult{}, err
	}
	return resolveRecursive(path, data, nil)
}

// resolveField reads the raw value a compiled condition refers to.
func resolveField(cond *CompiledCondition, order *types.Order) (any, error) {
	switch cond.Field.Attribute {
	case schema.AttributeClient:
		return order.Client, nil
	case schema.AttributePriority:
		return string(order.Priority), nil
	case schema.AttributeSKU:
		return order.SKU, nil
	case schema.AttributeQuantity:
		return order.Quantity, nil
	case schema.AttributeDate:
		return order.Date, nil
	case schema.AttributeChannel:
		return order.Channel, nil
	case schema.AttributeStatus:
		return order.Status, nil
	case schema.AttributeLines:
		return order.LineCount(), nil
	case schema.AttributeVolume:
		return order.Volume, nil
	case schema.AttributeDynamic:
		if v, ok := order.DynamicAttributes[cond.Key]; ok {
			return v, nil
		}
		if len(cond.Path) == 0 {
			return nil, types.ErrFieldNotFound
		}
		result, err := resolveRecursive(cond.Path, order.DynamicAttributes, nil)
		if err != nil {
			return nil, err
		}
		return result.Value, nil
	default:
		return nil, types.ErrFieldNotFound
	}
}

// resolveRecursive traverses nested maps and lists following path segments.
// Returns first match for wildcards (ANY semantics). Accumulates resolved path
// with actual indices/keys replacing wildcards.
func resolveRecursive(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{
			Value:        current,
			ResolvedPath: resolvedSoFar,
			Found:        true,
		}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				resolved := append(resolvedSoFar, types.PathSegment{Key: key})
				result, err := resolveRecursive(remaining, v[key], resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if seg.IsIndex {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		val, ok := v[seg.Key]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val, append(resolvedSoFar, seg))

	case map[string]string:
		generic := make(map[string]any, len(v))
		for k, s := range v {
			generic[k] = s
		}
		return resolveRecursive(path, generic, resolvedSoFar)

	case []string:
		generic := make([]any, len(v))
		for i, s := range v {
			generic[i] = s
		}
		return resolveRecursive(path, generic, resolvedSoFar)

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				resolved := append(resolvedSoFar, types.PathSegment{Index: i, IsIndex: true})
				result, err := resolveRecursive(remaining, elem, resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if !seg.IsIndex {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if seg.Index < 0 || seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index], append(resolvedSoFar, seg))

	default:
		// nil or scalar with path remaining
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

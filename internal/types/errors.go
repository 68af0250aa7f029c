package types

import "errors"

// Sentinel errors for waveplanner operations.
var (
	// ErrInvalidCondition indicates a malformed or ill-typed clause.
	// Batch-fatal: surfaced before evaluation starts.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrTypeMismatch indicates an order value could not be coerced to the
	// clause's declared type. Recovered per order as a non-match.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrFieldNotFound indicates a field path could not be resolved on an order.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates a dynamic attribute path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyWildcards indicates a dynamic attribute path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("field path has too many wildcards")

	// ErrTooManyInValues indicates an in / not in list exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("in operator has too many values")

	// ErrInvalidOperator indicates an unknown operator or one not applicable to the field type.
	ErrInvalidOperator = errors.New("invalid operator for field type")

	// ErrUnknownField indicates the field is not in the schema registry.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidConfig indicates a wave configuration that violates its bounds.
	ErrInvalidConfig = errors.New("invalid wave configuration")

	// ErrDuplicateOrder indicates the same order id appears twice in a planning input.
	ErrDuplicateOrder = errors.New("duplicate order id")

	// ErrCancelled indicates a planning run was cancelled; partial results are discarded.
	ErrCancelled = errors.New("planning run cancelled")

	// ErrStrategyNotFound indicates the strategy id is unknown to the store.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrEmptyName indicates an attempt to give a strategy an empty name.
	ErrEmptyName = errors.New("strategy name must not be empty")

	// ErrVersionConflict indicates a concurrent edit won the optimistic version check.
	ErrVersionConflict = errors.New("strategy version conflict")
)

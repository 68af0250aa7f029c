package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waveplanner/internal/allocation"
	"github.com/solatis/waveplanner/internal/compare"
	"github.com/solatis/waveplanner/internal/schema"
	"github.com/solatis/waveplanner/internal/store"
	"github.com/solatis/waveplanner/internal/types"
)

// ListFieldsResponse lists the selectable condition fields.
type ListFieldsResponse struct {
	Fields []schema.FieldDescriptor `json:"fields"`
}

// FilterOrdersRequest filters a pool with an ad-hoc rule sequence or the
// rules of a stored strategy.
type FilterOrdersRequest struct {
	StrategyID types.StrategyID  `json:"strategy_id,omitempty"`
	Rules      []types.Condition `json:"rules,omitempty"`
	Orders     []types.Order     `json:"orders"`
}

// FilterOrdersResponse carries matched order ids in input order.
type FilterOrdersResponse struct {
	Matched        []types.OrderID `json:"matched"`
	MatchedCount   int             `json:"matched_count"`
	TypeMismatches int             `json:"type_mismatches"`
	MissingFields  int             `json:"missing_fields"`
}

// AllocateRequest runs filter and allocation for one strategy. With a
// StrategyID the stored rules, config and model are used and the run is
// recorded in the strategy's history; otherwise Rules, Config and Model
// describe an unsaved run. A nil Config means the default wave config.
type AllocateRequest struct {
	StrategyID types.StrategyID     `json:"strategy_id,omitempty"`
	Rules      []types.Condition    `json:"rules,omitempty"`
	Config     *types.WaveConfig    `json:"config,omitempty"`
	Model      *types.DecisionModel `json:"model,omitempty"`
	Orders     []types.Order        `json:"orders"`
}

// AllocateResponse is the plan and its summary metrics.
type AllocateResponse struct {
	Plan     *allocation.WavePlan `json:"plan"`
	Metrics  types.RunMetrics     `json:"metrics"`
	Strategy *types.Strategy      `json:"strategy,omitempty"`
}

// DraftEntry is the unsaved strategy column of a comparison.
type DraftEntry struct {
	Name   string               `json:"name"`
	Rules  []types.Condition    `json:"rules"`
	Config *types.WaveConfig    `json:"config,omitempty"`
	Model  *types.DecisionModel `json:"model,omitempty"`
}

// CompareRequest compares stored strategies and optionally a draft.
type CompareRequest struct {
	StrategyIDs []types.StrategyID `json:"strategy_ids"`
	Draft       *DraftEntry        `json:"draft,omitempty"`
	Orders      []types.Order      `json:"orders"`
}

// CompareResponse wraps the comparison table. Unrecorded lists stored
// strategies whose run metrics could not be appended to their history.
type CompareResponse struct {
	Table      *compare.Table     `json:"table"`
	Unrecorded []types.StrategyID `json:"unrecorded,omitempty"`
}

// CreateStrategyRequest is store.CreateParams on the wire.
type CreateStrategyRequest = store.CreateParams

// StrategyRequest names one stored strategy.
type StrategyRequest struct {
	ID types.StrategyID `json:"id"`
}

// RenameStrategyRequest renames a strategy. ExpectedVersion 0 skips the
// version check.
type RenameStrategyRequest struct {
	ID              types.StrategyID `json:"id"`
	Name            string           `json:"name"`
	ExpectedVersion int64            `json:"expected_version"`
}

// UpdateStrategyRulesRequest replaces a strategy's rule sequence.
type UpdateStrategyRulesRequest struct {
	ID              types.StrategyID  `json:"id"`
	Rules           []types.Condition `json:"rules"`
	ExpectedVersion int64             `json:"expected_version"`
}

// StrategyResponse carries one strategy.
type StrategyResponse struct {
	Strategy *types.Strategy `json:"strategy"`
}

// ListStrategiesResponse carries every strategy in creation order.
type ListStrategiesResponse struct {
	Strategies []*types.Strategy `json:"strategies"`
}

// ToStruct converts v to a Struct through its JSON encoding. v must encode
// as a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// FromStruct decodes s into v through its JSON encoding. Unknown fields
// are rejected.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

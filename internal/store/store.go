// Package store persists named strategies.
//
// Only a strategy's name and rule sequence are editable. Edits are
// serialised per strategy with an optimistic version: every successful edit
// increments Version, and an edit whose expected version is stale fails
// with ErrVersionConflict. An expected version of 0 means "whatever is
// current". Run metrics are appended to the history and never rewritten;
// they do not change Version.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/waveplanner/internal/types"
)

// Store is implemented by MemoryStore and SQLStore.
type Store interface {
	Create(ctx context.Context, params CreateParams) (*types.Strategy, error)
	Get(ctx context.Context, id types.StrategyID) (*types.Strategy, error)
	// List returns every strategy in creation order.
	List(ctx context.Context) ([]*types.Strategy, error)
	Rename(ctx context.Context, id types.StrategyID, name string, expectedVersion int64) (*types.Strategy, error)
	UpdateRules(ctx context.Context, id types.StrategyID, seq []types.Condition, expectedVersion int64) (*types.Strategy, error)
	RecordMetrics(ctx context.Context, id types.StrategyID, metrics types.RunMetrics) (*types.Strategy, error)
}

// CreateParams describes a new strategy. Nil Config and Model take the
// defaults of the "new strategy" action; an empty Status is Draft.
type CreateParams struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      types.StrategyStatus `json:"status"`
	Rules       []types.Condition    `json:"rules"`
	Config      *types.WaveConfig    `json:"config"`
	Model       *types.DecisionModel `json:"model"`
	Schedule    json.RawMessage      `json:"schedule"`
}

// newStrategy validates params and builds the initial record.
func newStrategy(params CreateParams, now time.Time) (*types.Strategy, error) {
	name, err := validName(params.Name)
	if err != nil {
		return nil, err
	}

	s := &types.Strategy{
		ID:          types.NewStrategyID(),
		Name:        name,
		Description: params.Description,
		Status:      params.Status,
		Rules:       params.Rules,
		Config:      types.DefaultWaveConfig(),
		Model:       types.DecisionModel{Weights: types.DefaultWeights()},
		Schedule:    params.Schedule,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.Status == "" {
		s.Status = types.StatusDraft
	}
	switch s.Status {
	case types.StatusDraft, types.StatusActive, types.StatusScheduled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrInvalidConfig, s.Status)
	}
	if s.Rules == nil {
		s.Rules = []types.Condition{}
	}
	if params.Config != nil {
		s.Config = *params.Config
	}
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	if params.Model != nil {
		s.Model = *params.Model
	}
	if bytes.Equal(bytes.TrimSpace(s.Schedule), []byte("null")) {
		s.Schedule = nil
	}
	if len(s.Schedule) > 0 && !json.Valid(s.Schedule) {
		return nil, fmt.Errorf("%w: schedule is not valid JSON", types.ErrInvalidConfig)
	}
	return s, nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", types.ErrEmptyName
	}
	return name, nil
}

// checkVersion applies the optimistic version rule.
func checkVersion(id types.StrategyID, current, expected int64) error {
	if expected != 0 && expected != current {
		return fmt.Errorf("%w: strategy %s is at version %d, expected %d", types.ErrVersionConflict, id, current, expected)
	}
	return nil
}

func notFound(id types.StrategyID) error {
	return fmt.Errorf("%w: %s", types.ErrStrategyNotFound, id)
}

// clone returns a deep copy so callers cannot alias stored state.
func clone(s *types.Strategy) *types.Strategy {
	c := *s
	c.Rules = append([]types.Condition{}, s.Rules...)
	c.Config.StockPoints = append([]types.StockPointID(nil), s.Config.StockPoints...)
	c.Model.Regions = append([]string(nil), s.Model.Regions...)
	c.Model.Capabilities = append([]string(nil), s.Model.Capabilities...)
	c.Schedule = append(json.RawMessage(nil), s.Schedule...)
	c.History = append([]types.RunMetrics(nil), s.History...)
	if s.LastMetrics != nil {
		m := *s.LastMetrics
		c.LastMetrics = &m
	}
	return &c
}

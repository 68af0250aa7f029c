// Package api provides the gRPC service implementation for the wave planner.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/waveplanner/internal/allocation"
	"github.com/solatis/waveplanner/internal/compare"
	"github.com/solatis/waveplanner/internal/core/config"
	"github.com/solatis/waveplanner/internal/core/logging"
	"github.com/solatis/waveplanner/internal/core/metrics"
	"github.com/solatis/waveplanner/internal/rules"
	"github.com/solatis/waveplanner/internal/store"
	"github.com/solatis/waveplanner/internal/types"
)

// PlannerService implements PlannerServer.
// Thin orchestration layer delegating to the rules, allocation, compare and
// store packages.
type PlannerService struct {
	rules      *rules.Engine
	alloc      *allocation.Engine
	comparator *compare.Comparator
	store      store.Store
	cfg        *config.PlannerConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

var _ PlannerServer = (*PlannerService)(nil)

// Option configures a PlannerService.
type Option func(*PlannerService)

// WithMetrics records planning metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PlannerService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *PlannerService) { s.logger = l }
}

// NewPlannerService creates service instance with dependencies.
func NewPlannerService(cfg *config.PlannerConfig, rulesEngine *rules.Engine, allocEngine *allocation.Engine, st store.Store, opts ...Option) (*PlannerService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if rulesEngine == nil {
		return nil, fmt.Errorf("rulesEngine cannot be nil")
	}
	if allocEngine == nil {
		return nil, fmt.Errorf("allocEngine cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	s := &PlannerService{
		rules:      rulesEngine,
		alloc:      allocEngine,
		comparator: compare.New(rulesEngine, allocEngine, compare.WithParallelism(cfg.CompareParallelism)),
		store:      st,
		cfg:        cfg,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// checkBatch rejects pools above the configured batch limit.
// Prevents memory exhaustion on a single request.
func (s *PlannerService) checkBatch(orders []types.Order) error {
	if len(orders) > s.cfg.MaxOrders {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("batch size exceeds maximum of %d orders", s.cfg.MaxOrders))
	}
	return nil
}

// validateStrategy checks a rule sequence and model before they are stored.
func (s *PlannerService) validateStrategy(seq []types.Condition, model *types.DecisionModel) error {
	if _, err := s.rules.Compile(seq); err != nil {
		return err
	}
	if model != nil && model.Weights != (types.Weights{}) {
		if err := model.Weights.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ListFields returns the field registry in display order.
func (s *PlannerService) ListFields(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return ToStruct(ListFieldsResponse{Fields: s.rules.Registry().Fields()})
}

// FilterOrders evaluates a rule sequence over a pool.
func (s *PlannerService) FilterOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in FilterOrdersRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.checkBatch(in.Orders); err != nil {
		return nil, err
	}

	seq := in.Rules
	if in.StrategyID != "" {
		st, err := s.store.Get(ctx, in.StrategyID)
		if err != nil {
			return nil, toStatus(err)
		}
		seq = st.Rules
	}

	result, err := s.rules.Filter(seq, in.Orders)
	if err != nil {
		return nil, toStatus(err)
	}
	if s.metrics != nil {
		s.metrics.RecordFilter(len(in.Orders), len(result.Matched))
	}

	ids := make([]types.OrderID, len(result.Matched))
	for i, o := range result.Matched {
		ids[i] = o.ID
	}
	return ToStruct(FilterOrdersResponse{
		Matched:        ids,
		MatchedCount:   len(ids),
		TypeMismatches: result.TypeMismatches,
		MissingFields:  result.MissingFields,
	})
}

// Allocate filters a pool and allocates the matched orders.
func (s *PlannerService) Allocate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in AllocateRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.checkBatch(in.Orders); err != nil {
		return nil, err
	}

	var stored *types.Strategy
	seq := in.Rules
	cfg := types.DefaultWaveConfig()
	var model types.DecisionModel
	if in.StrategyID != "" {
		st, err := s.store.Get(ctx, in.StrategyID)
		if err != nil {
			return nil, toStatus(err)
		}
		stored = st
		seq, cfg, model = st.Rules, st.Config, st.Model
	} else {
		if in.Config != nil {
			cfg = *in.Config
		}
		if in.Model != nil {
			model = *in.Model
		}
	}

	result, err := s.rules.Filter(seq, in.Orders)
	if err != nil {
		return nil, toStatus(err)
	}
	plan, err := s.alloc.Allocate(ctx, result.Matched, cfg, model)
	if err != nil {
		return nil, toStatus(err)
	}

	summary := allocation.Summarize(plan, result.Matched)
	summary.OrderCount = len(in.Orders)
	if s.metrics != nil {
		s.metrics.RecordFilter(len(in.Orders), len(result.Matched))
		s.metrics.RecordPlan(plan)
	}

	resp := AllocateResponse{Plan: plan, Metrics: summary}
	if stored != nil {
		updated, err := s.store.RecordMetrics(ctx, stored.ID, summary)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Strategy = updated
	}

	s.logger.InfoContext(ctx, "allocation run",
		"strategy_id", in.StrategyID,
		"mode", plan.Mode,
		"orders", len(in.Orders),
		"matched", len(result.Matched),
		"assigned", len(plan.Assignments),
		"unassigned", len(plan.Unassigned),
		"sub_waves", len(plan.SubWaves),
	)
	return ToStruct(resp)
}

// Compare runs stored strategies and an optional draft side by side.
// Metrics of stored strategies are appended to their history; a failed
// append is logged and listed in the response rather than failing the call.
func (s *PlannerService) Compare(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CompareRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.checkBatch(in.Orders); err != nil {
		return nil, err
	}
	if len(in.StrategyIDs) == 0 && in.Draft == nil {
		return nil, status.Error(codes.InvalidArgument, "comparison needs at least one strategy")
	}

	entries := make([]compare.Entry, 0, len(in.StrategyIDs)+1)
	seen := make(map[types.StrategyID]bool, len(in.StrategyIDs))
	for _, id := range in.StrategyIDs {
		if seen[id] {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("strategy %s listed twice", id))
		}
		seen[id] = true
		st, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, toStatus(err)
		}
		entries = append(entries, compare.FromStrategy(st))
	}
	if in.Draft != nil {
		cfg := types.DefaultWaveConfig()
		if in.Draft.Config != nil {
			cfg = *in.Draft.Config
		}
		var model types.DecisionModel
		if in.Draft.Model != nil {
			model = *in.Draft.Model
		}
		entries = append(entries, compare.Draft(in.Draft.Name, in.Draft.Rules, cfg, model))
	}

	table, err := s.comparator.Compare(ctx, entries, in.Orders)
	if err != nil {
		return nil, toStatus(err)
	}
	if s.metrics != nil {
		s.metrics.RecordComparison(len(entries))
		for _, sum := range table.Strategies {
			s.metrics.RecordPlan(sum.Plan)
		}
	}

	resp := CompareResponse{Table: table}
	for _, sum := range table.Strategies {
		if sum.ID == compare.DraftID {
			continue
		}
		if _, err := s.store.RecordMetrics(ctx, sum.ID, sum.Metrics); err != nil {
			s.logger.WarnContext(ctx, "failed to record comparison metrics",
				"strategy_id", sum.ID,
				"error", err,
			)
			resp.Unrecorded = append(resp.Unrecorded, sum.ID)
		}
	}

	s.logger.InfoContext(ctx, "comparison run",
		"strategies", len(entries),
		"orders", len(in.Orders),
		"unrecorded", len(resp.Unrecorded),
	)
	return ToStruct(resp)
}

// CreateStrategy stores a new strategy after validating its rules.
func (s *PlannerService) CreateStrategy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CreateStrategyRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.validateStrategy(in.Rules, in.Model); err != nil {
		return nil, toStatus(err)
	}

	st, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.InfoContext(ctx, "strategy created", "strategy_id", st.ID, "name", st.Name)
	return ToStruct(StrategyResponse{Strategy: st})
}

// GetStrategy returns one strategy with its run history.
func (s *PlannerService) GetStrategy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in StrategyRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	st, err := s.store.Get(ctx, in.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(StrategyResponse{Strategy: st})
}

// ListStrategies returns every strategy in creation order.
func (s *PlannerService) ListStrategies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(ListStrategiesResponse{Strategies: all})
}

// RenameStrategy renames a strategy under the optimistic version check.
func (s *PlannerService) RenameStrategy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in RenameStrategyRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	st, err := s.store.Rename(ctx, in.ID, in.Name, in.ExpectedVersion)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(StrategyResponse{Strategy: st})
}

// UpdateStrategyRules replaces a strategy's rules under the optimistic
// version check. The new sequence must compile.
func (s *PlannerService) UpdateStrategyRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in UpdateStrategyRulesRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.validateStrategy(in.Rules, nil); err != nil {
		return nil, toStatus(err)
	}
	st, err := s.store.UpdateRules(ctx, in.ID, in.Rules, in.ExpectedVersion)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(StrategyResponse{Strategy: st})
}

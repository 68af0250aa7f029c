package allocation

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the weighted scorer for every strategy-mode run.
// Decision model weights are ignored when a scorer is set.
func WithScorer(s Scorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

// WithDefaultWeights sets the weights used when a decision model carries
// none (all zero).
func WithDefaultWeights(w types.Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// Engine allocates matched orders over a fixed stock-point registry.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	stockPoints []types.StockPoint // sorted by ID
	byID        map[types.StockPointID]types.StockPoint
	scorer      Scorer
	weights     types.Weights
}

// NewEngine creates an engine over the registered stock points.
func NewEngine(stockPoints []types.StockPoint, opts ...Option) (*Engine, error) {
	e := &Engine{
		stockPoints: make([]types.StockPoint, 0, len(stockPoints)),
		byID:        make(map[types.StockPointID]types.StockPoint, len(stockPoints)),
		weights:     types.DefaultWeights(),
	}
	for _, sp := range stockPoints {
		if sp.ID == "" {
			return nil, fmt.Errorf("%w: stock point with empty id", types.ErrInvalidConfig)
		}
		if _, dup := e.byID[sp.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stock point %q", types.ErrInvalidConfig, sp.ID)
		}
		e.byID[sp.ID] = sp
		e.stockPoints = append(e.stockPoints, sp)
	}
	sort.Slice(e.stockPoints, func(i, j int) bool { return e.stockPoints[i].ID < e.stockPoints[j].ID })

	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// StockPoints returns the registered stock points sorted by id.
func (e *Engine) StockPoints() []types.StockPoint {
	out := make([]types.StockPoint, len(e.stockPoints))
	copy(out, e.stockPoints)
	return out
}

// Allocate builds a wave plan for matched. Configuration errors and
// duplicate order ids fail the whole run; per-order problems are reported
// in the plan's Unassigned list. A cancelled ctx discards the plan and
// returns ErrCancelled.
func (e *Engine) Allocate(ctx context.Context, matched []types.Order, cfg types.WaveConfig, model types.DecisionModel) (*WavePlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkUnique(matched); err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	run, err := e.newRun(cfg, model)
	if err != nil {
		return nil, err
	}

	plan := &WavePlan{
		Mode:        cfg.Mode,
		Assignments: []Assignment{},
		Unassigned:  []Unassigned{},
		SubWaves:    []SubWave{},
	}

	if len(run.pool) == 0 {
		for _, o := range matched {
			plan.Unassigned = append(plan.Unassigned, Unassigned{
				OrderID: o.ID,
				Reason:  ReasonNoEligibleDestination,
				Detail:  "no stock point is eligible",
			})
		}
		return plan, nil
	}

	groups, err := run.pack(ctx, matched, plan)
	if err != nil {
		return nil, err
	}

	for i, group := range groups {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		for _, o := range group {
			a := run.assign(o)
			a.SubWave = i
			plan.Assignments = append(plan.Assignments, a)
		}
	}
	return plan, nil
}

// run is the per-call allocation state.
type run struct {
	mode   types.Mode
	env    envelope
	pool   []types.StockPoint
	scorer Scorer
	load   map[types.StockPointID]int
	next   int // round-robin cursor
}

func (e *Engine) newRun(cfg types.WaveConfig, model types.DecisionModel) (*run, error) {
	r := &run{
		mode: cfg.Mode,
		env:  envelope{cfg: cfg},
		load: make(map[types.StockPointID]int),
	}

	if cfg.Mode == types.ModeManual {
		seen := make(map[types.StockPointID]bool, len(cfg.StockPoints))
		for _, id := range cfg.StockPoints {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			sp, ok := e.byID[id]
			if !ok {
				sp = types.StockPoint{ID: id}
			}
			r.pool = append(r.pool, sp)
		}
		return r, nil
	}

	for _, sp := range e.stockPoints {
		if model.Eligible(sp) {
			r.pool = append(r.pool, sp)
		}
	}

	switch {
	case e.scorer != nil:
		r.scorer = e.scorer
	case model.Weights == (types.Weights{}):
		r.scorer = WeightedScorer{Weights: e.weights}
	default:
		if err := model.Weights.Validate(); err != nil {
			return nil, err
		}
		r.scorer = WeightedScorer{Weights: model.Weights}
	}
	return r, nil
}

// pack partitions orders into envelope-compliant groups, recording orders
// that cannot be placed in plan.Unassigned and closed groups in
// plan.SubWaves.
func (r *run) pack(ctx context.Context, orders []types.Order, plan *WavePlan) ([][]*types.Order, error) {
	var groups [][]*types.Order
	var current []*types.Order
	var agg aggregate

	closeGroup := func() error {
		if len(current) == 0 {
			return nil
		}
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		if bound, below := r.env.belowMin(agg); below {
			for _, o := range current {
				plan.Unassigned = append(plan.Unassigned, Unassigned{
					OrderID: o.ID,
					Reason:  ReasonEnvelopeUnsatisfiable,
					Detail:  "sub-wave below " + bound,
				})
			}
		} else {
			sw := SubWave{
				Index:    len(groups),
				OrderIDs: make([]types.OrderID, len(current)),
				Orders:   agg.orders,
				Lines:    agg.lines,
				Quantity: agg.quantity,
				Volume:   agg.volume,
			}
			for i, o := range current {
				sw.OrderIDs[i] = o.ID
			}
			plan.SubWaves = append(plan.SubWaves, sw)
			groups = append(groups, current)
		}
		current = nil
		agg = aggregate{volume: decimal.Zero}
		return nil
	}

	agg = aggregate{volume: decimal.Zero}
	for i := range orders {
		o := &orders[i]
		if bound, over := r.env.exceedsMax(aggregate{volume: decimal.Zero}.add(o)); over {
			plan.Unassigned = append(plan.Unassigned, Unassigned{
				OrderID: o.ID,
				Reason:  ReasonEnvelopeUnsatisfiable,
				Detail:  "order alone exceeds " + bound,
			})
			continue
		}
		if _, over := r.env.exceedsMax(agg.add(o)); over {
			if err := closeGroup(); err != nil {
				return nil, err
			}
		}
		current = append(current, o)
		agg = agg.add(o)
	}
	if err := closeGroup(); err != nil {
		return nil, err
	}
	return groups, nil
}

// assign picks the stock point for o.
func (r *run) assign(o *types.Order) Assignment {
	if r.mode == types.ModeManual {
		sp := r.pool[r.next%len(r.pool)]
		r.next++
		r.load[sp.ID]++
		return Assignment{OrderID: o.ID, StockPointID: sp.ID, Confidence: 1}
	}

	candidates := make([]Candidate, len(r.pool))
	for i, sp := range r.pool {
		candidates[i] = Candidate{StockPoint: sp, Load: r.load[sp.ID]}
	}
	scores := r.scorer.Score(o, candidates)

	// pool is sorted by id, so a strict > keeps the lowest id on ties
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	sp := r.pool[best]
	r.load[sp.ID]++
	return Assignment{OrderID: o.ID, StockPointID: sp.ID, Confidence: clamp01(scores[best])}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func checkUnique(orders []types.Order) error {
	seen := make(map[types.OrderID]bool, len(orders))
	for _, o := range orders {
		if seen[o.ID] {
			return fmt.Errorf("%w: %q", types.ErrDuplicateOrder, o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrCancelled, err)
	}
	return nil
}

// Package compare runs several strategies over the same order pool and
// aligns their results per order.
package compare

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/waveplanner/internal/allocation"
	"github.com/solatis/waveplanner/internal/rules"
	"github.com/solatis/waveplanner/internal/types"
)

// DraftID identifies the in-progress, unsaved strategy in a comparison.
const DraftID types.StrategyID = "draft"

// DefaultParallelism bounds concurrent strategy branches.
const DefaultParallelism = 4

// Entry is one strategy column: a stored strategy or the draft.
type Entry struct {
	ID     types.StrategyID    `json:"id"`
	Name   string              `json:"name"`
	Rules  []types.Condition   `json:"rules"`
	Config types.WaveConfig    `json:"config"`
	Model  types.DecisionModel `json:"model"`
}

// FromStrategy builds an entry from a stored strategy.
func FromStrategy(s *types.Strategy) Entry {
	return Entry{ID: s.ID, Name: s.Name, Rules: s.Rules, Config: s.Config, Model: s.Model}
}

// Draft builds the entry for the strategy being edited.
func Draft(name string, seq []types.Condition, cfg types.WaveConfig, model types.DecisionModel) Entry {
	return Entry{ID: DraftID, Name: name, Rules: seq, Config: cfg, Model: model}
}

// Cell is one strategy's outcome for one order.
type Cell struct {
	Matched bool `json:"matched"`
	// ProposedStockPoint is nil when the order did not match or was left
	// unassigned by the plan.
	ProposedStockPoint *types.StockPointID   `json:"proposed_stock_point"`
	Confidence         float64               `json:"confidence"`
	Reason             allocation.ReasonCode `json:"reason,omitempty"`
}

// Row aligns every strategy's outcome for one order. Cells are in the
// order of Table.Strategies.
type Row struct {
	OrderID    types.OrderID `json:"order_id"`
	Cells      []Cell        `json:"cells"`
	MatchCount int           `json:"match_count"`
}

// StrategySummary is the per-strategy column header.
type StrategySummary struct {
	ID      types.StrategyID     `json:"id"`
	Name    string               `json:"name"`
	Metrics types.RunMetrics     `json:"metrics"`
	Plan    *allocation.WavePlan `json:"plan"`
}

// Table is the comparison result. Rows are sorted by MatchCount descending,
// ties in dataset order.
type Table struct {
	Strategies []StrategySummary `json:"strategies"`
	Rows       []Row             `json:"rows"`
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithParallelism bounds the number of strategies evaluated at once.
// Values below one mean DefaultParallelism.
func WithParallelism(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// Comparator fans strategies out over shared read-only inputs.
type Comparator struct {
	rules       *rules.Engine
	alloc       *allocation.Engine
	parallelism int
}

// New creates a comparator over a rules engine and an allocation engine.
func New(rulesEngine *rules.Engine, allocEngine *allocation.Engine, opts ...Option) *Comparator {
	c := &Comparator{rules: rulesEngine, alloc: allocEngine, parallelism: DefaultParallelism}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// branch is the result of one strategy.
type branch struct {
	matched map[types.OrderID]bool
	plan    *allocation.WavePlan
	metrics types.RunMetrics
}

// Compare evaluates every entry against orders. Any validation error in any
// entry fails the whole comparison; no partial table is returned.
func (c *Comparator) Compare(ctx context.Context, entries []Entry, orders []types.Order) (*Table, error) {
	if err := checkUnique(orders); err != nil {
		return nil, err
	}

	// Validate every rule sequence before any allocation work starts.
	compiled := make([]*rules.CompiledSequence, len(entries))
	for i, e := range entries {
		seq, err := c.rules.Compile(e.Rules)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", e.Name, err)
		}
		if err := e.Config.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %q: %w", e.Name, err)
		}
		compiled[i] = seq
	}

	branches := make([]branch, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i := range entries {
		g.Go(func() error {
			matched := rules.Filter(compiled[i], orders)
			plan, err := c.alloc.Allocate(gctx, matched, entries[i].Config, entries[i].Model)
			if err != nil {
				return fmt.Errorf("strategy %q: %w", entries[i].Name, err)
			}
			metrics := allocation.Summarize(plan, matched)
			metrics.OrderCount = len(orders)

			set := make(map[types.OrderID]bool, len(matched))
			for _, o := range matched {
				set[o.ID] = true
			}
			branches[i] = branch{matched: set, plan: plan, metrics: metrics}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildTable(entries, branches, orders), nil
}

func buildTable(entries []Entry, branches []branch, orders []types.Order) *Table {
	table := &Table{
		Strategies: make([]StrategySummary, len(entries)),
		Rows:       make([]Row, len(orders)),
	}

	assigned := make([]map[types.OrderID]allocation.Assignment, len(branches))
	reasons := make([]map[types.OrderID]allocation.ReasonCode, len(branches))
	for i, b := range branches {
		table.Strategies[i] = StrategySummary{
			ID:      entries[i].ID,
			Name:    entries[i].Name,
			Metrics: b.metrics,
			Plan:    b.plan,
		}
		assigned[i] = b.plan.Index()
		reasons[i] = make(map[types.OrderID]allocation.ReasonCode, len(b.plan.Unassigned))
		for _, u := range b.plan.Unassigned {
			reasons[i][u.OrderID] = u.Reason
		}
	}

	for r, o := range orders {
		row := Row{OrderID: o.ID, Cells: make([]Cell, len(branches))}
		for i, b := range branches {
			if !b.matched[o.ID] {
				continue
			}
			cell := Cell{Matched: true}
			if a, ok := assigned[i][o.ID]; ok {
				sp := a.StockPointID
				cell.ProposedStockPoint = &sp
				cell.Confidence = a.Confidence
			} else {
				cell.Reason = reasons[i][o.ID]
			}
			row.Cells[i] = cell
			row.MatchCount++
		}
		table.Rows[r] = row
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].MatchCount > table.Rows[j].MatchCount
	})
	return table
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

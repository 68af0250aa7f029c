package allocation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

func newEngine(t *testing.T, sps []types.StockPoint, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(sps, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v, want nil", err)
	}
	return e
}

func qtyOrders(quantities ...int) []types.Order {
	orders := make([]types.Order, len(quantities))
	for i, q := range quantities {
		orders[i] = types.Order{ID: types.OrderID(fmt.Sprintf("O%d", i+1)), Quantity: q}
	}
	return orders
}

func manual(ids ...types.StockPointID) types.WaveConfig {
	return types.WaveConfig{Mode: types.ModeManual, StockPoints: ids}
}

func TestAllocate_GreedySplit(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})
	cfg := manual("SP1")
	cfg.MaxQty = 10

	plan, err := e.Allocate(context.Background(), qtyOrders(5, 6), cfg, types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v, want nil", err)
	}

	// 5 + 6 = 11 > 10: O1 closes the first sub-wave, O2 starts the second
	if len(plan.SubWaves) != 2 {
		t.Fatalf("SubWaves = %d, want 2", len(plan.SubWaves))
	}
	if got := plan.SubWaves[0].OrderIDs; len(got) != 1 || got[0] != "O1" || plan.SubWaves[0].Quantity != 5 {
		t.Errorf("SubWaves[0] = %+v, want [O1] qty 5", plan.SubWaves[0])
	}
	if got := plan.SubWaves[1].OrderIDs; len(got) != 1 || got[0] != "O2" || plan.SubWaves[1].Quantity != 6 {
		t.Errorf("SubWaves[1] = %+v, want [O2] qty 6", plan.SubWaves[1])
	}
	if len(plan.Unassigned) != 0 {
		t.Errorf("Unassigned = %v, want none", plan.Unassigned)
	}

	want := []Assignment{
		{OrderID: "O1", StockPointID: "SP1", Confidence: 1, SubWave: 0},
		{OrderID: "O2", StockPointID: "SP1", Confidence: 1, SubWave: 1},
	}
	if !reflect.DeepEqual(plan.Assignments, want) {
		t.Errorf("Assignments = %+v, want %+v", plan.Assignments, want)
	}
}

func TestAllocate_ManualEmptyPool(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})
	orders := qtyOrders(1, 2, 3)

	plan, err := e.Allocate(context.Background(), orders, manual(), types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v, want nil", err)
	}
	if len(plan.Assignments) != 0 || len(plan.SubWaves) != 0 {
		t.Errorf("plan = %+v, want no assignments or sub-waves", plan)
	}
	if len(plan.Unassigned) != len(orders) {
		t.Fatalf("Unassigned = %d, want %d", len(plan.Unassigned), len(orders))
	}
	for i, u := range plan.Unassigned {
		if u.OrderID != orders[i].ID || u.Reason != ReasonNoEligibleDestination {
			t.Errorf("Unassigned[%d] = %+v, want %s NoEligibleDestination", i, u, orders[i].ID)
		}
	}
}

func TestAllocate_ManualRoundRobin(t *testing.T) {
	e := newEngine(t, nil)

	// pinned pool is deduplicated and used in declaration order
	plan, err := e.Allocate(context.Background(), qtyOrders(1, 1, 1, 1, 1), manual("SP-B", "SP-A", "SP-B"), types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v, want nil", err)
	}

	want := []types.StockPointID{"SP-B", "SP-A", "SP-B", "SP-A", "SP-B"}
	if len(plan.Assignments) != len(want) {
		t.Fatalf("Assignments = %d, want %d", len(plan.Assignments), len(want))
	}
	for i, a := range plan.Assignments {
		if a.StockPointID != want[i] {
			t.Errorf("Assignments[%d].StockPointID = %s, want %s", i, a.StockPointID, want[i])
		}
		if a.Confidence != 1 {
			t.Errorf("Assignments[%d].Confidence = %v, want 1", i, a.Confidence)
		}
	}
}

func TestAllocate_Envelopes(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})

	tests := []struct {
		name           string
		orders         []types.Order
		cfg            func(*types.WaveConfig)
		wantSubWaves   [][]types.OrderID
		wantUnassigned map[types.OrderID]ReasonCode
	}{
		{
			name:           "order alone exceeds max qty",
			orders:         qtyOrders(4, 20, 3),
			cfg:            func(c *types.WaveConfig) { c.MaxQty = 10 },
			wantSubWaves:   [][]types.OrderID{{"O1", "O3"}},
			wantUnassigned: map[types.OrderID]ReasonCode{"O2": ReasonEnvelopeUnsatisfiable},
		},
		{
			name:           "closed sub-wave below min qty",
			orders:         qtyOrders(8, 3),
			cfg:            func(c *types.WaveConfig) { c.MinQty = 5; c.MaxQty = 10 },
			wantSubWaves:   [][]types.OrderID{{"O1"}},
			wantUnassigned: map[types.OrderID]ReasonCode{"O2": ReasonEnvelopeUnsatisfiable},
		},
		{
			name:         "max orders",
			orders:       qtyOrders(1, 1, 1, 1, 1),
			cfg:          func(c *types.WaveConfig) { c.MaxOrders = 2 },
			wantSubWaves: [][]types.OrderID{{"O1", "O2"}, {"O3", "O4"}, {"O5"}},
		},
		{
			name: "max lines, zero lines count as one",
			orders: []types.Order{
				{ID: "O1", Lines: 3}, {ID: "O2"}, {ID: "O3", Lines: 2},
			},
			cfg:          func(c *types.WaveConfig) { c.MaxLines = 4 },
			wantSubWaves: [][]types.OrderID{{"O1", "O2"}, {"O3"}},
		},
		{
			name: "max volume",
			orders: []types.Order{
				{ID: "O1", Volume: decimal.RequireFromString("0.4")},
				{ID: "O2", Volume: decimal.RequireFromString("0.4")},
				{ID: "O3", Volume: decimal.RequireFromString("0.4")},
			},
			cfg:          func(c *types.WaveConfig) { c.MaxVolume = decimal.RequireFromString("1.0") },
			wantSubWaves: [][]types.OrderID{{"O1", "O2"}, {"O3"}},
		},
		{
			name: "min volume",
			orders: []types.Order{
				{ID: "O1", Volume: decimal.RequireFromString("0.05")},
			},
			cfg:            func(c *types.WaveConfig) { c.MinVolume = decimal.RequireFromString("0.1") },
			wantSubWaves:   [][]types.OrderID{},
			wantUnassigned: map[types.OrderID]ReasonCode{"O1": ReasonEnvelopeUnsatisfiable},
		},
		{
			name:         "zero max disables the bound",
			orders:       qtyOrders(400, 400, 400),
			cfg:          func(c *types.WaveConfig) {},
			wantSubWaves: [][]types.OrderID{{"O1", "O2", "O3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := manual("SP1")
			tt.cfg(&cfg)

			plan, err := e.Allocate(context.Background(), tt.orders, cfg, types.DecisionModel{})
			if err != nil {
				t.Fatalf("Allocate() error = %v, want nil", err)
			}

			got := make([][]types.OrderID, len(plan.SubWaves))
			for i, sw := range plan.SubWaves {
				got[i] = sw.OrderIDs
			}
			if !reflect.DeepEqual(got, tt.wantSubWaves) {
				t.Errorf("sub-waves = %v, want %v", got, tt.wantSubWaves)
			}

			if len(plan.Unassigned) != len(tt.wantUnassigned) {
				t.Fatalf("Unassigned = %+v, want %v", plan.Unassigned, tt.wantUnassigned)
			}
			for _, u := range plan.Unassigned {
				if tt.wantUnassigned[u.OrderID] != u.Reason {
					t.Errorf("Unassigned %s reason = %s, want %s", u.OrderID, u.Reason, tt.wantUnassigned[u.OrderID])
				}
			}
		})
	}
}

func TestAllocate_StrategyScoring(t *testing.T) {
	amsterdam := types.GeoPoint{Latitude: 52.3676, Longitude: 4.9041}
	berlin := types.GeoPoint{Latitude: 52.52, Longitude: 13.405}
	potsdam := types.GeoPoint{Latitude: 52.3906, Longitude: 13.0645}

	sps := []types.StockPoint{
		{ID: "SP-AMS", Region: "EU", Location: &amsterdam, FixedCost: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(1)},
		{ID: "SP-BER", Region: "EU", Location: &berlin, FixedCost: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(3)},
		{ID: "SP-NYC", Region: "US", Capabilities: []string{"cold"}},
	}
	e := newEngine(t, sps)
	strategy := types.WaveConfig{Mode: types.ModeStrategy}

	t.Run("proximity picks the nearest", func(t *testing.T) {
		orders := []types.Order{{ID: "O1", Quantity: 1, Destination: &potsdam}}
		model := types.DecisionModel{Weights: types.Weights{Proximity: 1}, Regions: []string{"eu"}}

		plan, err := e.Allocate(context.Background(), orders, strategy, model)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		a, ok := plan.Assignment("O1")
		if !ok || a.StockPointID != "SP-BER" || a.Confidence != 1 {
			t.Errorf("Assignment = %+v, want SP-BER with confidence 1", a)
		}
	})

	t.Run("cost picks the cheapest", func(t *testing.T) {
		orders := []types.Order{{ID: "O1", Quantity: 5, Destination: &potsdam}}
		model := types.DecisionModel{Weights: types.Weights{Cost: 1}, Regions: []string{"EU"}}

		plan, err := e.Allocate(context.Background(), orders, strategy, model)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if a, _ := plan.Assignment("O1"); a.StockPointID != "SP-AMS" {
			t.Errorf("Assignment = %+v, want SP-AMS", a)
		}
	})

	t.Run("capability filter", func(t *testing.T) {
		orders := qtyOrders(1)
		model := types.DecisionModel{Capabilities: []string{"cold"}}

		plan, err := e.Allocate(context.Background(), orders, strategy, model)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if a, _ := plan.Assignment("O1"); a.StockPointID != "SP-NYC" {
			t.Errorf("Assignment = %+v, want SP-NYC", a)
		}
	})

	t.Run("no eligible stock point", func(t *testing.T) {
		model := types.DecisionModel{Regions: []string{"APAC"}}
		plan, err := e.Allocate(context.Background(), qtyOrders(1, 2), strategy, model)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if len(plan.Unassigned) != 2 {
			t.Fatalf("Unassigned = %+v, want both orders", plan.Unassigned)
		}
		for _, u := range plan.Unassigned {
			if u.Reason != ReasonNoEligibleDestination {
				t.Errorf("order %s reason = %s, want %s", u.OrderID, u.Reason, ReasonNoEligibleDestination)
			}
		}
		if len(plan.Assignments) != 0 {
			t.Errorf("Assignments = %+v, want none", plan.Assignments)
		}
	})

	t.Run("candidate set is shared by every order", func(t *testing.T) {
		far := types.GeoPoint{Latitude: 40.71, Longitude: -74.0}
		orders := []types.Order{
			{ID: "O1", Quantity: 1, Destination: &potsdam},
			{ID: "O2", Quantity: 1, Destination: &far},
		}
		model := types.DecisionModel{Weights: types.Weights{Proximity: 1}, Regions: []string{"EU"}}

		plan, err := e.Allocate(context.Background(), orders, strategy, model)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if len(plan.Unassigned) != 0 {
			t.Fatalf("Unassigned = %+v, want none", plan.Unassigned)
		}
		for _, id := range []types.OrderID{"O1", "O2"} {
			a, ok := plan.Assignment(id)
			if !ok || (a.StockPointID != "SP-AMS" && a.StockPointID != "SP-BER") {
				t.Errorf("Assignment(%s) = %+v, want an EU stock point", id, a)
			}
		}
	})
}

func TestAllocate_LoadBalancingAndTies(t *testing.T) {
	// identical stock points: ties go to the lowest id, then load spreads
	e := newEngine(t, []types.StockPoint{{ID: "SP-B"}, {ID: "SP-A"}})

	plan, err := e.Allocate(context.Background(), qtyOrders(1, 1, 1, 1), types.WaveConfig{Mode: types.ModeStrategy}, types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	want := []types.StockPointID{"SP-A", "SP-B", "SP-A", "SP-B"}
	for i, a := range plan.Assignments {
		if a.StockPointID != want[i] {
			t.Errorf("Assignments[%d] = %s, want %s", i, a.StockPointID, want[i])
		}
		if a.Confidence < 0 || a.Confidence > 1 {
			t.Errorf("Assignments[%d].Confidence = %v, want within [0,1]", i, a.Confidence)
		}
	}
	if plan.Assignments[0].Confidence != 1 {
		t.Errorf("first confidence = %v, want 1 (all terms tie)", plan.Assignments[0].Confidence)
	}
}

type lastCandidate struct{}

func (lastCandidate) Score(_ *types.Order, candidates []Candidate) []float64 {
	scores := make([]float64, len(candidates))
	scores[len(scores)-1] = 0.25
	return scores
}

func TestAllocate_CustomScorer(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP-A"}, {ID: "SP-Z"}}, WithScorer(lastCandidate{}))

	plan, err := e.Allocate(context.Background(), qtyOrders(1), types.WaveConfig{Mode: types.ModeStrategy}, types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if a, _ := plan.Assignment("O1"); a.StockPointID != "SP-Z" || a.Confidence != 0.25 {
		t.Errorf("Assignment = %+v, want SP-Z with confidence 0.25", a)
	}
}

func TestAllocate_Errors(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		orders  []types.Order
		cfg     types.WaveConfig
		model   types.DecisionModel
		wantErr error
	}{
		{
			name:    "min above max",
			ctx:     context.Background(),
			orders:  qtyOrders(1),
			cfg:     types.WaveConfig{Mode: types.ModeManual, MinQty: 5, MaxQty: 2},
			wantErr: types.ErrInvalidConfig,
		},
		{
			name:    "negative bound",
			ctx:     context.Background(),
			orders:  qtyOrders(1),
			cfg:     types.WaveConfig{Mode: types.ModeManual, MinOrders: -1},
			wantErr: types.ErrInvalidConfig,
		},
		{
			name:    "unknown mode",
			ctx:     context.Background(),
			orders:  qtyOrders(1),
			cfg:     types.WaveConfig{Mode: "auto"},
			wantErr: types.ErrInvalidConfig,
		},
		{
			name:    "negative weight",
			ctx:     context.Background(),
			orders:  qtyOrders(1),
			cfg:     types.WaveConfig{Mode: types.ModeStrategy},
			model:   types.DecisionModel{Weights: types.Weights{Proximity: -1, Cost: 2}},
			wantErr: types.ErrInvalidConfig,
		},
		{
			name:    "duplicate order",
			ctx:     context.Background(),
			orders:  []types.Order{{ID: "O1"}, {ID: "O1"}},
			cfg:     manual("SP1"),
			wantErr: types.ErrDuplicateOrder,
		},
		{
			name:    "cancelled",
			ctx:     cancelled,
			orders:  qtyOrders(1, 2),
			cfg:     manual("SP1"),
			wantErr: types.ErrCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := e.Allocate(tt.ctx, tt.orders, tt.cfg, tt.model)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Allocate() error = %v, want %v", err, tt.wantErr)
			}
			if plan != nil {
				t.Errorf("Allocate() plan = %+v, want nil on error", plan)
			}
		})
	}
}

func TestNewEngine_Errors(t *testing.T) {
	if _, err := NewEngine([]types.StockPoint{{ID: "SP1"}, {ID: "SP1"}}); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("NewEngine(duplicate) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewEngine([]types.StockPoint{{}}); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("NewEngine(empty id) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewEngine(nil, WithDefaultWeights(types.Weights{})); !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("NewEngine(zero weights) error = %v, want ErrInvalidConfig", err)
	}
}

func TestSummarize(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})
	orders := []types.Order{
		{ID: "O1", Quantity: 4, Lines: 2, Volume: decimal.RequireFromString("0.5")},
		{ID: "O2", Quantity: 20, Volume: decimal.RequireFromString("2")},
		{ID: "O3", Quantity: 3, Volume: decimal.RequireFromString("0.25")},
	}
	cfg := manual("SP1")
	cfg.MaxQty = 10

	plan, err := e.Allocate(context.Background(), orders, cfg, types.DecisionModel{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	m := Summarize(plan, orders)

	if m.MatchedCount != 3 || m.AssignedCount != 2 || m.UnassignedCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", m.MatchedCount, m.AssignedCount, m.UnassignedCount)
	}
	if m.ItemCount != 27 {
		t.Errorf("ItemCount = %d, want 27", m.ItemCount)
	}
	if m.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", m.TotalLines)
	}
	if !m.TotalVolume.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("TotalVolume = %s, want 0.75", m.TotalVolume)
	}
	if m.FulfillmentRate != 2.0/3.0 {
		t.Errorf("FulfillmentRate = %v, want 2/3", m.FulfillmentRate)
	}
	if m.MeanConfidence != 1 || m.SubWaveCount != 1 {
		t.Errorf("MeanConfidence/SubWaveCount = %v/%d, want 1/1", m.MeanConfidence, m.SubWaveCount)
	}
}

// genOrders builds orders with unique ids from generated quantities.
func genOrders(quantities []int) []types.Order {
	orders := make([]types.Order, len(quantities))
	for i, q := range quantities {
		orders[i] = types.Order{
			ID:       types.OrderID(fmt.Sprintf("O%d", i)),
			Quantity: q,
			Lines:    q % 4,
			Volume:   decimal.New(int64(q), -1),
		}
	}
	return orders
}

var propertyConfig = types.WaveConfig{
	Mode:      types.ModeStrategy,
	MinOrders: 1,
	MaxOrders: 4,
	MinLines:  1,
	MaxLines:  8,
	MinQty:    3,
	MaxQty:    20,
	MinVolume: decimal.Zero,
	MaxVolume: decimal.RequireFromString("1.5"),
}

// Property-based test: no order is lost or duplicated.
func TestAllocate_PropertyPartition(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}, {ID: "SP2"}, {ID: "SP3"}})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every order appears exactly once", prop.ForAll(
		func(quantities []int) bool {
			orders := genOrders(quantities)
			plan, err := e.Allocate(context.Background(), orders, propertyConfig, types.DecisionModel{})
			if err != nil {
				return false
			}
			seen := make(map[types.OrderID]int, len(orders))
			for _, a := range plan.Assignments {
				seen[a.OrderID]++
			}
			for _, u := range plan.Unassigned {
				seen[u.OrderID]++
			}
			if len(seen) != len(orders) {
				return false
			}
			for _, o := range orders {
				if seen[o.ID] != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 25)),
	))

	properties.TestingRun(t)
}

// Property-based test: every sub-wave respects every bound.
func TestAllocate_PropertyEnvelopeCompliance(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP1"}})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sub-waves stay within [min, max]", prop.ForAll(
		func(quantities []int) bool {
			orders := genOrders(quantities)
			plan, err := e.Allocate(context.Background(), orders, propertyConfig, types.DecisionModel{})
			if err != nil {
				return false
			}
			byID := make(map[types.OrderID]types.Order, len(orders))
			for _, o := range orders {
				byID[o.ID] = o
			}
			c := propertyConfig
			for _, sw := range plan.SubWaves {
				var agg aggregate
				for _, id := range sw.OrderIDs {
					o := byID[id]
					agg = agg.add(&o)
				}
				if agg.orders != sw.Orders || agg.lines != sw.Lines || agg.quantity != sw.Quantity || !agg.volume.Equal(sw.Volume) {
					return false
				}
				if sw.Orders < c.MinOrders || sw.Orders > c.MaxOrders ||
					sw.Lines < c.MinLines || sw.Lines > c.MaxLines ||
					sw.Quantity < c.MinQty || sw.Quantity > c.MaxQty ||
					sw.Volume.LessThan(c.MinVolume) || sw.Volume.GreaterThan(c.MaxVolume) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 25)),
	))

	properties.TestingRun(t)
}

// Property-based test: identical inputs give identical plans.
func TestAllocate_PropertyIdempotent(t *testing.T) {
	e := newEngine(t, []types.StockPoint{{ID: "SP2"}, {ID: "SP1"}, {ID: "SP3"}})

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("allocate is idempotent", prop.ForAll(
		func(quantities []int, useManual bool) bool {
			orders := genOrders(quantities)
			cfg := propertyConfig
			if useManual {
				cfg.Mode = types.ModeManual
				cfg.StockPoints = []types.StockPointID{"SP3", "SP1"}
			}
			first, err1 := e.Allocate(context.Background(), orders, cfg, types.DecisionModel{})
			second, err2 := e.Allocate(context.Background(), orders, cfg, types.DecisionModel{})
			if err1 != nil || err2 != nil {
				return false
			}
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOf(gen.IntRange(0, 25)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

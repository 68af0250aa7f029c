package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/schema"
	"github.com/solatis/waveplanner/internal/types"
)

func mustCompile(t *testing.T, seq ...types.Condition) *CompiledSequence {
	t.Helper()
	compiled, err := Compile(seq, schema.Default())
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return compiled
}

func sampleOrders() []types.Order {
	return []types.Order{
		{
			ID: "O1", Client: "Acme", Priority: types.PriorityP1, SKU: "SKU-1", Quantity: 5,
			Date: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), Channel: "web", Status: "open",
			Volume:            decimal.RequireFromString("1.5"),
			DynamicAttributes: map[string]any{"destination_country": "NL", "order_price": 120.0},
		},
		{
			ID: "O2", Client: "Globex", Priority: types.PriorityP2, SKU: "SKU-2", Quantity: 1,
			Date: time.Date(2025, 3, 15, 22, 0, 0, 0, time.UTC), Channel: "store", Status: "open",
			DynamicAttributes: map[string]any{"destination_country": "DE", "order_price": "oops"},
		},
		{
			ID: "O3", Client: "Acme", Priority: types.PriorityP3, SKU: "SKU-3", Quantity: 12,
			Channel: "web", Status: "hold",
		},
	}
}

func TestEvaluate_SimpleMatch(t *testing.T) {
	seq := mustCompile(t, cond("c1", "Client", types.OpIs, "Acme", types.JoinerNone))
	orders := sampleOrders()

	want := []bool{true, false, true}
	for i := range orders {
		if got := Evaluate(seq, &orders[i]); got != want[i] {
			t.Errorf("Evaluate(%s) = %v, want %v", orders[i].ID, got, want[i])
		}
	}
}

// "A OR B AND C" folds as ((A OR B) AND C). Standard precedence would read it
// as A OR (B AND C) and match O1.
func TestEvaluate_LeftFoldNoPrecedence(t *testing.T) {
	seq := mustCompile(t,
		cond("a", "Client", types.OpIs, "Acme", types.JoinerNone),
		cond("b", "Priority", types.OpIs, "P2", types.JoinerOr),
		cond("c", "Order status", types.OpIs, "hold", types.JoinerAnd),
	)
	o1 := sampleOrders()[0] // A true, B false, C false

	if Evaluate(seq, &o1) {
		t.Errorf("Evaluate() = true, want false: ((true OR false) AND false)")
	}

	// Reference evaluation with standard precedence differs.
	a, b, c := true, false, false
	if standard := a || (b && c); standard == Evaluate(seq, &o1) {
		t.Fatalf("fixture does not distinguish left fold from precedence")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	orders := sampleOrders()

	tests := []struct {
		name string
		seq  []types.Condition
		want []bool // O1, O2, O3
	}{
		{
			name: "is not",
			seq:  []types.Condition{cond("c", "Client", types.OpIsNot, "Acme", types.JoinerNone)},
			want: []bool{false, true, false},
		},
		{
			name: "contains case sensitive",
			seq:  []types.Condition{cond("c", "SKU", types.OpContains, "KU-", types.JoinerNone)},
			want: []bool{true, true, true},
		},
		{
			name: "contains lower case misses",
			seq:  []types.Condition{cond("c", "SKU", types.OpContains, "sku", types.JoinerNone)},
			want: []bool{false, false, false},
		},
		{
			name: "in",
			seq:  []types.Condition{cond("c", "Priority", types.OpIn, "P1,P3", types.JoinerNone)},
			want: []bool{true, false, true},
		},
		{
			name: "not in",
			seq:  []types.Condition{cond("c", "Order sales channel", types.OpNotIn, "web", types.JoinerNone)},
			want: []bool{false, true, false},
		},
		{
			name: "greater than quantity",
			seq:  []types.Condition{cond("c", "Item quantity", types.OpGreaterThan, "4", types.JoinerNone)},
			want: []bool{true, false, true},
		},
		{
			name: "less than quantity",
			seq:  []types.Condition{cond("c", "Item quantity", types.OpLessThan, "5", types.JoinerNone)},
			want: []bool{false, true, false},
		},
		{
			name: "date is same calendar day",
			seq:  []types.Condition{cond("c", "Order date", types.OpIs, "2025-03-14", types.JoinerNone)},
			want: []bool{true, false, false},
		},
		{
			name: "date greater than, missing date fails closed",
			seq:  []types.Condition{cond("c", "Order date", types.OpGreaterThan, "2025-03-14", types.JoinerNone)},
			want: []bool{false, true, false},
		},
		{
			name: "volume greater than",
			seq:  []types.Condition{cond("c", "Order volume", types.OpGreaterThan, "1", types.JoinerNone)},
			want: []bool{true, false, false},
		},
		{
			name: "missing attribute fails closed for is not",
			seq:  []types.Condition{cond("c", "Destination country", types.OpIsNot, "NL", types.JoinerNone)},
			want: []bool{false, true, false},
		},
		{
			name: "attribute type mismatch is a non-match",
			seq:  []types.Condition{cond("c", "Order price", types.OpGreaterThan, "100", types.JoinerNone)},
			want: []bool{true, false, false},
		},
		{
			name: "and chain",
			seq: []types.Condition{
				cond("c1", "Client", types.OpIs, "Acme", types.JoinerNone),
				cond("c2", "Order status", types.OpIs, "open", types.JoinerAnd),
			},
			want: []bool{true, false, false},
		},
		{
			name: "or chain",
			seq: []types.Condition{
				cond("c1", "Client", types.OpIs, "Globex", types.JoinerNone),
				cond("c2", "Order status", types.OpIs, "hold", types.JoinerOr),
			},
			want: []bool{false, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := mustCompile(t, tt.seq...)
			for i := range orders {
				if got := Evaluate(seq, &orders[i]); got != tt.want[i] {
					t.Errorf("Evaluate(%s) = %v, want %v", orders[i].ID, got, tt.want[i])
				}
			}
		})
	}
}

func TestEvaluate_InformationFields(t *testing.T) {
	order := types.Order{
		ID: "O1",
		DynamicAttributes: map[string]any{
			"segment":  "gold",
			"vip":      true,
			"weight":   "12.5",
			"promised": "2025-04-01T10:00:00Z",
			"labels":   []any{"fragile", "cold"},
		},
	}

	tests := []struct {
		name string
		c    types.Condition
		want bool
	}{
		{"default string sub-type", infoCond("c", "Customer information", "segment", types.ValueTypeUnspecified, types.OpIs, "gold", types.JoinerNone), true},
		{"boolean sub-type", infoCond("c", "Customer information", "vip", types.ValueTypeBoolean, types.OpIs, "true", types.JoinerNone), true},
		{"number sub-type from string", infoCond("c", "Item information", "weight", types.ValueTypeNumber, types.OpGreaterThan, "10", types.JoinerNone), true},
		{"date sub-type", infoCond("c", "Order information", "promised", types.ValueTypeDate, types.OpIs, "2025-04-01", types.JoinerNone), true},
		{"contains on list value", infoCond("c", "Item information", "labels", types.ValueTypeString, types.OpContains, "cold", types.JoinerNone), true},
		{"contains on list is membership", infoCond("c", "Item information", "labels", types.ValueTypeString, types.OpContains, "col", types.JoinerNone), false},
		{"is on list value is a mismatch", infoCond("c", "Item information", "labels", types.ValueTypeString, types.OpIs, "cold", types.JoinerNone), false},
		{"number sub-type mismatch", infoCond("c", "Customer information", "segment", types.ValueTypeNumber, types.OpIs, "1", types.JoinerNone), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := mustCompile(t, tt.c)
			if got := Evaluate(seq, &order); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDetailed(t *testing.T) {
	seq := mustCompile(t,
		cond("price", "Order price", types.OpGreaterThan, "100", types.JoinerNone),
		cond("country", "Destination country", types.OpIs, "NL", types.JoinerAnd),
		cond("client", "Client", types.OpIs, "Globex", types.JoinerOr),
	)
	orders := sampleOrders()

	t.Run("type mismatch recorded and short circuit skipped", func(t *testing.T) {
		r := EvaluateDetailed(seq, &orders[1])
		if !r.Matched {
			t.Fatalf("Matched = false, want true via trailing OR")
		}
		if r.Clauses[0].Err != types.ErrTypeMismatch {
			t.Errorf("Clauses[0].Err = %v, want ErrTypeMismatch", r.Clauses[0].Err)
		}
		if !r.Clauses[1].Skipped {
			t.Errorf("Clauses[1].Skipped = false, want true (AND after false)")
		}
		if r.Clauses[2].Skipped || !r.Clauses[2].Matched {
			t.Errorf("Clauses[2] = %+v, want evaluated and matched", r.Clauses[2])
		}
	})

	t.Run("or skipped after true", func(t *testing.T) {
		r := EvaluateDetailed(seq, &orders[0])
		if !r.Matched {
			t.Fatalf("Matched = false, want true")
		}
		if !r.Clauses[2].Skipped {
			t.Errorf("Clauses[2].Skipped = false, want true (OR after true)")
		}
	})

	t.Run("missing field recorded", func(t *testing.T) {
		r := EvaluateDetailed(seq, &orders[2])
		if r.Matched {
			t.Errorf("Matched = true, want false")
		}
		if r.Clauses[0].Err != types.ErrFieldNotFound {
			t.Errorf("Clauses[0].Err = %v, want ErrFieldNotFound", r.Clauses[0].Err)
		}
	})

	t.Run("detailed agrees with evaluate", func(t *testing.T) {
		for i := range orders {
			if EvaluateDetailed(seq, &orders[i]).Matched != Evaluate(seq, &orders[i]) {
				t.Errorf("EvaluateDetailed and Evaluate disagree on %s", orders[i].ID)
			}
		}
	})
}

func TestFilter(t *testing.T) {
	orders := sampleOrders()

	t.Run("preserves input order", func(t *testing.T) {
		seq := mustCompile(t, cond("c", "Client", types.OpIs, "Acme", types.JoinerNone))
		got := Filter(seq, orders)
		if len(got) != 2 || got[0].ID != "O1" || got[1].ID != "O3" {
			t.Errorf("Filter() = %v, want [O1 O3]", ids(got))
		}
	})

	t.Run("nil sequence", func(t *testing.T) {
		if got := Filter(nil, orders); len(got) != len(orders) {
			t.Errorf("Filter(nil) len = %d, want %d", len(got), len(orders))
		}
	})

	t.Run("detailed counts", func(t *testing.T) {
		seq := mustCompile(t, cond("c", "Order price", types.OpGreaterThan, "0", types.JoinerNone))
		got := FilterDetailed(seq, orders)
		if len(got.Matched) != 1 || got.Matched[0].ID != "O1" {
			t.Errorf("Matched = %v, want [O1]", ids(got.Matched))
		}
		if got.TypeMismatches != 1 {
			t.Errorf("TypeMismatches = %d, want 1", got.TypeMismatches)
		}
		if got.MissingFields != 1 {
			t.Errorf("MissingFields = %d, want 1", got.MissingFields)
		}
	})

	t.Run("engine compiles and filters", func(t *testing.T) {
		e := NewEngine(nil)
		got, err := e.Filter([]types.Condition{cond("c", "Order status", types.OpIs, "open", types.JoinerNone)}, orders)
		if err != nil {
			t.Fatalf("Engine.Filter() error = %v", err)
		}
		if len(got.Matched) != 2 {
			t.Errorf("Engine.Filter() matched %d, want 2", len(got.Matched))
		}
		if _, err := e.Filter([]types.Condition{cond("c", "Colour", types.OpIs, "red", types.JoinerNone)}, orders); err == nil {
			t.Errorf("Engine.Filter() with unknown field error = nil, want error")
		}
	})
}

func ids(orders []types.Order) []types.OrderID {
	out := make([]types.OrderID, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

// Property-based test: the empty sequence is the identity filter.
func TestFilter_PropertyEmptyIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	empty := mustCompile(t)

	properties.Property("empty sequence returns the input unchanged", prop.ForAll(
		func(clients []string, quantities []int) bool {
			orders := make([]types.Order, len(clients))
			for i, c := range clients {
				orders[i] = types.Order{ID: types.OrderID(c), Client: c}
				if i < len(quantities) {
					orders[i].Quantity = quantities[i]
				}
			}
			got := Filter(empty, orders)
			if len(got) != len(orders) {
				return false
			}
			for i := range got {
				if got[i].ID != orders[i].ID || got[i].Quantity != orders[i].Quantity {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

// Property-based test: filtered output is an order-preserving subsequence.
func TestFilter_PropertySubsequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	seq := mustCompile(t,
		cond("qty", "Item quantity", types.OpGreaterThan, "50", types.JoinerNone),
		cond("lines", "Order lines", types.OpLessThan, "3", types.JoinerOr),
	)

	properties.Property("matches are a subsequence of the input", prop.ForAll(
		func(quantities []int) bool {
			orders := make([]types.Order, len(quantities))
			for i, q := range quantities {
				orders[i] = types.Order{ID: types.OrderID(rune('a' + i%26)), Quantity: q, Lines: q % 5}
			}
			got := Filter(seq, orders)
			j := 0
			for i := range orders {
				if j < len(got) && got[j].Quantity == orders[i].Quantity && got[j].Lines == orders[i].Lines {
					j++
				}
			}
			return j == len(got)
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

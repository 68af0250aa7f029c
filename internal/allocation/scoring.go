package allocation

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

/*
 * Strategy-mode scoring.
 *
 * Each term is min-max normalised across the order's candidates so the
 * best candidate scores 1 and the worst 0 on that term. When every
 * candidate ties on a term (including the single-candidate case) the term
 * is 1 for all of them.
 *
 *   proximity: haversine distance from the order destination, lower is better.
 *              No destination on the order: 1 for every candidate. A candidate
 *              without a location gets 0.5.
 *   cost:      FixedCost + UnitCost * quantity, lower is better.
 *   load:      orders already assigned to the candidate in this plan, lower
 *              is better.
 *
 * score = (wP*proximity + wC*cost + wL*load) / (wP + wC + wL), in [0, 1].
 */

const earthRadiusKm = 6371.0

// unknownProximity is the proximity term of a candidate without a location.
const unknownProximity = 0.5

// Candidate is a stock point under consideration for one order.
type Candidate struct {
	StockPoint types.StockPoint
	// Load is the number of orders already assigned to the stock point in
	// the plan being built.
	Load int
}

// Scorer rates candidates for an order. Score returns one value in [0, 1]
// per candidate, in candidate order. Higher is better.
type Scorer interface {
	Score(order *types.Order, candidates []Candidate) []float64
}

// WeightedScorer is the default proximity/cost/load scorer.
type WeightedScorer struct {
	Weights types.Weights
}

// Score implements Scorer.
func (s WeightedScorer) Score(order *types.Order, candidates []Candidate) []float64 {
	n := len(candidates)
	proximity := make([]float64, n)
	cost := make([]float64, n)
	load := make([]float64, n)

	var distances []float64
	var located []int
	for i, c := range candidates {
		cost[i] = c.StockPoint.FixedCost.
			Add(c.StockPoint.UnitCost.Mul(decimal.NewFromInt(int64(order.Quantity)))).
			InexactFloat64()
		load[i] = float64(c.Load)
		if order.Destination != nil && c.StockPoint.Location != nil {
			distances = append(distances, Haversine(*order.Destination, *c.StockPoint.Location))
			located = append(located, i)
		}
	}

	switch {
	case order.Destination == nil:
		fill(proximity, 1)
	default:
		fill(proximity, unknownProximity)
		norm := normaliseLowerBetter(distances)
		for j, i := range located {
			proximity[i] = norm[j]
		}
	}
	cost = normaliseLowerBetter(cost)
	load = normaliseLowerBetter(load)

	w := s.Weights
	total := w.Total()
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = (w.Proximity*proximity[i] + w.Cost*cost[i] + w.Load*load[i]) / total
	}
	return scores
}

// normaliseLowerBetter maps values onto [0, 1] with the minimum at 1.
func normaliseLowerBetter(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		fill(out, 1)
		return out
	}
	for i, v := range values {
		out[i] = (hi - v) / (hi - lo)
	}
	return out
}

func fill(values []float64, v float64) {
	for i := range values {
		values[i] = v
	}
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b types.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

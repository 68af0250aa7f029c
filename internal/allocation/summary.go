package allocation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

// Summarize derives run metrics from a plan and the matched orders it was
// built from. OrderCount is set to len(matched); callers that filtered a
// larger pool overwrite it with the pool size.
func Summarize(plan *WavePlan, matched []types.Order) types.RunMetrics {
	m := types.RunMetrics{
		RunAt:           time.Now().UTC(),
		OrderCount:      len(matched),
		MatchedCount:    len(matched),
		AssignedCount:   len(plan.Assignments),
		UnassignedCount: len(plan.Unassigned),
		SubWaveCount:    len(plan.SubWaves),
		TotalVolume:     decimal.Zero,
	}

	assigned := plan.Index()
	var confidence float64
	for _, o := range matched {
		m.ItemCount += o.Quantity
		if a, ok := assigned[o.ID]; ok {
			m.TotalLines += o.LineCount()
			m.TotalVolume = m.TotalVolume.Add(o.Volume)
			confidence += a.Confidence
		}
	}

	if m.MatchedCount > 0 {
		m.FulfillmentRate = float64(m.AssignedCount) / float64(m.MatchedCount)
	}
	if m.AssignedCount > 0 {
		m.MeanConfidence = confidence / float64(m.AssignedCount)
	}
	return m
}

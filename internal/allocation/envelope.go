package allocation

import (
	"github.com/shopspring/decimal"
	"github.com/solatis/waveplanner/internal/types"
)

// aggregate is the running total of an open sub-wave.
type aggregate struct {
	orders   int
	lines    int
	quantity int
	volume   decimal.Decimal
}

func (a aggregate) add(o *types.Order) aggregate {
	return aggregate{
		orders:   a.orders + 1,
		lines:    a.lines + o.LineCount(),
		quantity: a.quantity + o.Quantity,
		volume:   a.volume.Add(o.Volume),
	}
}

// envelope checks aggregates against a wave configuration's bounds.
type envelope struct {
	cfg types.WaveConfig
}

// exceedsMax reports whether a breaches any enabled max bound, naming it.
func (e envelope) exceedsMax(a aggregate) (string, bool) {
	switch {
	case e.cfg.MaxOrders > 0 && a.orders > e.cfg.MaxOrders:
		return "max_orders", true
	case e.cfg.MaxLines > 0 && a.lines > e.cfg.MaxLines:
		return "max_lines", true
	case e.cfg.MaxQty > 0 && a.quantity > e.cfg.MaxQty:
		return "max_qty", true
	case e.cfg.MaxVolume.IsPositive() && a.volume.GreaterThan(e.cfg.MaxVolume):
		return "max_volume", true
	}
	return "", false
}

// belowMin reports whether a misses any min bound, naming it.
func (e envelope) belowMin(a aggregate) (string, bool) {
	switch {
	case a.orders < e.cfg.MinOrders:
		return "min_orders", true
	case a.lines < e.cfg.MinLines:
		return "min_lines", true
	case a.quantity < e.cfg.MinQty:
		return "min_qty", true
	case a.volume.LessThan(e.cfg.MinVolume):
		return "min_volume", true
	}
	return "", false
}

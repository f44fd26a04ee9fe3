package state

import (
	"sort"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

// View is an immutable copy of the store as of one step. The runner builds
// one view per tick; the strategy can hold or mutate it freely without
// touching the live store.
type View struct {
	step      uint64
	history   map[schema.Symbol][]HistoryEntry
	bars      map[schema.Symbol]schema.Bar
	portfolio map[string]schema.Position
	orders    []schema.Order
	byOrderID map[uint64]int
	trades    []schema.Trade
}

// View copies the current state, stamped with the given step.
func (s *Store) View(step uint64) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		step:      step,
		history:   make(map[schema.Symbol][]HistoryEntry, len(s.history)),
		bars:      make(map[schema.Symbol]schema.Bar, len(s.bars)),
		portfolio: make(map[string]schema.Position, len(s.portfolio)),
		orders:    make([]schema.Order, 0, len(s.orders)),
		byOrderID: make(map[uint64]int, len(s.byOrderID)),
		trades:    append([]schema.Trade(nil), s.trades...),
	}
	for sym, buf := range s.history {
		v.history[sym] = buf.Snapshot()
	}
	for sym, bar := range s.bars {
		v.bars[sym] = bar
	}
	for ticker, pos := range s.portfolio {
		v.portfolio[ticker] = pos
	}
	for _, o := range s.orders {
		v.orders = append(v.orders, *o)
	}
	sort.Slice(v.orders, func(i, j int) bool {
		if v.orders[i].OrderID != v.orders[j].OrderID {
			return v.orders[i].OrderID < v.orders[j].OrderID
		}
		return v.orders[i].CorrelationID < v.orders[j].CorrelationID
	})
	for i, o := range v.orders {
		if o.OrderID != 0 {
			v.byOrderID[o.OrderID] = i
		}
	}
	return v
}

// Step returns the step this view was built for. Step values are unique per
// tick snapshot: a view built for an auxiliary event, such as a bar, carries
// the step of the most recent tick.
func (v View) Step() uint64 {
	return v.step
}

// History returns the buffered entries for a symbol, oldest first.
func (v View) History(exchange, ticker string) []HistoryEntry {
	return v.history[schema.Symbol{Exchange: exchange, Ticker: ticker}]
}

// LastTick returns the newest real tick for a symbol, skipping gap markers.
func (v View) LastTick(exchange, ticker string) (schema.Tick, bool) {
	entries := v.History(exchange, ticker)
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Gap {
			return entries[i].Tick, true
		}
	}
	return schema.Tick{}, false
}

// LastBar returns the most recent bar for a symbol.
func (v View) LastBar(exchange, ticker string) (schema.Bar, bool) {
	bar, ok := v.bars[schema.Symbol{Exchange: exchange, Ticker: ticker}]
	return bar, ok
}

// Position returns the portfolio entry for a ticker.
func (v View) Position(ticker string) (schema.Position, bool) {
	pos, ok := v.portfolio[ticker]
	return pos, ok
}

// Portfolio returns all portfolio entries.
func (v View) Portfolio() map[string]schema.Position {
	return v.portfolio
}

// Orders returns every known order, venue-assigned ids first.
func (v View) Orders() []schema.Order {
	return v.orders
}

// Order looks up an order by its venue id.
func (v View) Order(orderID uint64) (schema.Order, bool) {
	if i, ok := v.byOrderID[orderID]; ok {
		return v.orders[i], true
	}
	return schema.Order{}, false
}

// OpenOrders returns the orders currently open at the venue.
func (v View) OpenOrders() []schema.Order {
	var out []schema.Order
	for _, o := range v.orders {
		if o.Status == schema.OrderOpen {
			out = append(out, o)
		}
	}
	return out
}

// Trades returns the recent confirmed fills, oldest first.
func (v View) Trades() []schema.Trade {
	return v.trades
}

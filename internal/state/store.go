// Package state owns every mutable entity the strategy observes: per-symbol
// history buffers, the portfolio, the order table and the recent-trade log.
// The store is mutated only from the event-application path; strategies see
// read-only copies built per step.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidTrade      = errors.New("invalid trade volume")
)

// Observer receives resolved orders and recorded trades after they are
// applied. Calls happen outside the store lock.
type Observer interface {
	OrderResolved(order schema.Order)
	TradeRecorded(trade schema.Trade)
}

// Config bounds the store's retained history.
type Config struct {
	// HistoryCapacity is the per-symbol tick buffer size C.
	HistoryCapacity int
	// TradeCapacity bounds the recent-trade table.
	TradeCapacity int
}

func (c Config) withDefaults() Config {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = 1000
	}
	if c.TradeCapacity <= 0 {
		c.TradeCapacity = 256
	}
	return c
}

// Store applies decoded events atomically and serves read-only views.
type Store struct {
	cfg      Config
	observer Observer

	mu        sync.Mutex
	history   map[schema.Symbol]*Buffer
	bars      map[schema.Symbol]schema.Bar
	portfolio map[string]schema.Position
	orders    map[string]*schema.Order
	byOrderID map[uint64]string
	trades    []schema.Trade
}

// NewStore allocates an empty store.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:       cfg.withDefaults(),
		history:   make(map[schema.Symbol]*Buffer),
		bars:      make(map[schema.Symbol]schema.Bar),
		portfolio: make(map[string]schema.Position),
		orders:    make(map[string]*schema.Order),
		byOrderID: make(map[uint64]string),
	}
}

// SetObserver registers the resolution observer. Call before event flow starts.
func (s *Store) SetObserver(o Observer) {
	s.observer = o
}

// ApplyTick appends a tick to its symbol's history buffer.
func (s *Store) ApplyTick(tick schema.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer(tick.Symbol()).Append(HistoryEntry{Tick: tick})
}

// ApplyBar records the last bar for a symbol.
func (s *Store) ApplyBar(bar schema.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[bar.Symbol()] = bar
}

// AddPending registers a freshly issued order request.
func (s *Store) AddPending(order schema.Order) error {
	if order.Status != schema.OrderPending {
		return ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.CorrelationID]; ok {
		return ErrDuplicateOrder
	}
	o := order
	s.orders[order.CorrelationID] = &o
	return nil
}

// OpenOrder applies a venue acknowledgement: Pending -> Open with the
// venue-assigned order id.
func (s *Store) OpenOrder(corrID string, orderID uint64) error {
	s.mu.Lock()
	o, ok := s.orders[corrID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownOrder
	}
	if !o.Status.CanTransition(schema.OrderOpen) {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	o.Status = schema.OrderOpen
	o.OrderID = orderID
	s.byOrderID[orderID] = corrID
	resolved := *o
	s.mu.Unlock()

	s.notifyOrder(resolved)
	return nil
}

// RejectOrder applies a venue nack or an exhausted retry: Pending -> Rejected.
func (s *Store) RejectOrder(corrID, reason string) error {
	s.mu.Lock()
	o, ok := s.orders[corrID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownOrder
	}
	if !o.Status.CanTransition(schema.OrderRejected) {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	o.Status = schema.OrderRejected
	o.Reason = reason
	resolved := *o
	s.mu.Unlock()

	s.notifyOrder(resolved)
	return nil
}

// CloseOrder applies an acknowledged close request: Open -> Closed.
func (s *Store) CloseOrder(orderID uint64) error {
	s.mu.Lock()
	o, ok := s.orderByID(orderID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownOrder
	}
	if !o.Status.CanTransition(schema.OrderClosed) {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	o.Status = schema.OrderClosed
	o.Remaining = 0
	resolved := *o
	s.mu.Unlock()

	s.notifyOrder(resolved)
	return nil
}

// AnnotateOrder records a reason on an order without changing its status,
// used when a close request fails while the order stays open.
func (s *Store) AnnotateOrder(orderID uint64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orderByID(orderID); ok {
		o.Reason = reason
	}
}

// ApplyTrade records a confirmed fill: appends to the trade log, reduces the
// order's remaining volume (Open -> Closed at zero) and updates the portfolio.
func (s *Store) ApplyTrade(trade schema.Trade) error {
	if trade.Volume <= 0 {
		return ErrInvalidTrade
	}
	s.mu.Lock()
	o, ok := s.orderByID(trade.OrderID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownOrder
	}
	if o.Status != schema.OrderOpen {
		s.mu.Unlock()
		return ErrInvalidTransition
	}

	o.Remaining -= trade.Volume
	var resolved *schema.Order
	if o.Remaining <= 0 {
		o.Remaining = 0
		o.Status = schema.OrderClosed
		r := *o
		resolved = &r
	}
	s.applyFill(o.Ticker, o.Side, trade)
	s.appendTrade(trade)
	s.mu.Unlock()

	if resolved != nil {
		s.notifyOrder(*resolved)
	}
	s.notifyTrade(trade)
	return nil
}

// ApplySnapshot replaces the portfolio, order table and recent trades with
// the venue's authoritative view and marks a gap in every history buffer.
// History is never backfilled from a snapshot.
func (s *Store) ApplySnapshot(snap schema.Snapshot, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolio = make(map[string]schema.Position, len(snap.Positions))
	for ticker, pos := range snap.Positions {
		s.portfolio[ticker] = pos
	}

	s.orders = make(map[string]*schema.Order, len(snap.Orders))
	s.byOrderID = make(map[uint64]string, len(snap.Orders))
	for _, order := range snap.Orders {
		o := order
		s.orders[o.CorrelationID] = &o
		if o.OrderID != 0 {
			s.byOrderID[o.OrderID] = o.CorrelationID
		}
	}

	s.trades = append(s.trades[:0], snap.Trades...)
	s.trimTrades()

	for _, buf := range s.history {
		buf.MarkGap(at)
	}
}

// MarkGap inserts a gap marker into every history buffer.
func (s *Store) MarkGap(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, buf := range s.history {
		buf.MarkGap(at)
	}
}

// Order returns a copy of the order with the given venue id.
func (s *Store) Order(orderID uint64) (schema.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orderByID(orderID); ok {
		return *o, true
	}
	return schema.Order{}, false
}

func (s *Store) buffer(sym schema.Symbol) *Buffer {
	buf, ok := s.history[sym]
	if !ok {
		buf = NewBuffer(s.cfg.HistoryCapacity)
		s.history[sym] = buf
	}
	return buf
}

func (s *Store) orderByID(orderID uint64) (*schema.Order, bool) {
	corrID, ok := s.byOrderID[orderID]
	if !ok {
		return nil, false
	}
	o, ok := s.orders[corrID]
	return o, ok
}

// applyFill mutates the position for a ticker. Buys increase the position at
// a volume-weighted average cost; sells reduce it without moving the average;
// crossing through zero restarts the average at the fill price.
func (s *Store) applyFill(ticker string, side schema.OrderSide, trade schema.Trade) {
	pos := s.portfolio[ticker]
	signed := trade.Volume
	if side == schema.SideSell {
		signed = -trade.Volume
	}
	next := pos.Size + signed

	switch {
	case pos.Size == 0 || (pos.Size > 0) == (signed > 0):
		total := absFloat(pos.Size)*pos.AvgCost + trade.Volume*trade.Price
		pos.AvgCost = total / absFloat(next)
	case (pos.Size > 0) != (next > 0) && next != 0:
		pos.AvgCost = trade.Price
	case next == 0:
		pos.AvgCost = 0
	}
	pos.Size = next
	s.portfolio[ticker] = pos
}

func (s *Store) appendTrade(trade schema.Trade) {
	s.trades = append(s.trades, trade)
	s.trimTrades()
}

func (s *Store) trimTrades() {
	if excess := len(s.trades) - s.cfg.TradeCapacity; excess > 0 {
		s.trades = append(s.trades[:0], s.trades[excess:]...)
	}
}

func (s *Store) notifyOrder(order schema.Order) {
	if s.observer != nil {
		s.observer.OrderResolved(order)
	}
}

func (s *Store) notifyTrade(trade schema.Trade) {
	if s.observer != nil {
		s.observer.TradeRecorded(trade)
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

package schema

import "time"

// Symbol identifies an instrument on a venue.
type Symbol struct {
	Exchange string
	Ticker   string
}

func (s Symbol) String() string {
	return s.Exchange + ":" + s.Ticker
}

// Tick is a single top-of-book update. Immutable once produced.
type Tick struct {
	Time     time.Time
	Exchange string
	Ticker   string
	Bid      float64
	Ask      float64
}

// Symbol returns the tick's symbol key.
func (t Tick) Symbol() Symbol {
	return Symbol{Exchange: t.Exchange, Ticker: t.Ticker}
}

// Bar is an OHLC update delivered alongside ticks. Bars are auxiliary and
// do not advance the step counter.
type Bar struct {
	Time     time.Time
	Exchange string
	Ticker   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// Symbol returns the bar's symbol key.
func (b Bar) Symbol() Symbol {
	return Symbol{Exchange: b.Exchange, Ticker: b.Ticker}
}

// OrderSide describes order direction.
type OrderSide uint8

const (
	SideUnknown OrderSide = iota
	SideBuy
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// SideFromString parses a wire-format side string.
func SideFromString(s string) OrderSide {
	switch s {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return SideUnknown
	}
}

// OrderStatus tracks the lifecycle of an order. The only legal paths are
// Pending -> Open -> Closed and Pending -> Rejected.
type OrderStatus uint8

const (
	OrderUnknown OrderStatus = iota
	OrderPending
	OrderOpen
	OrderClosed
	OrderRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderOpen:
		return "open"
	case OrderClosed:
		return "closed"
	case OrderRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderClosed || s == OrderRejected
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderOpen || next == OrderRejected
	case OrderOpen:
		return next == OrderClosed
	default:
		return false
	}
}

// Order is the agent's view of one order request and its venue lifecycle.
// OrderID is venue-assigned and stays zero until the venue acknowledges;
// CorrelationID is client-generated and matches requests to acknowledgements.
type Order struct {
	OrderID       uint64
	CorrelationID string
	Exchange      string
	Ticker        string
	Side          OrderSide
	Volume        float64
	Remaining     float64
	Status        OrderStatus
	Reason        string
}

// Trade is a confirmed fill. Append-only, immutable once recorded.
type Trade struct {
	OrderID uint64
	Price   float64
	Volume  float64
	Time    time.Time
}

// Position is the portfolio entry for one ticker.
type Position struct {
	Size    float64
	AvgCost float64
}

// Session carries the connection identity and the monotone step counter.
// Step increases by exactly one per processed tick, including across a
// reconnect; ConnID increases by one per established connection.
type Session struct {
	ConnID uint64
	Step   uint64
}

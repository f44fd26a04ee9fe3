package schema

// EventType discriminates decoded inbound events.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventTick
	EventBar
	EventOrderAck
	EventOrderNack
	EventTrade
	EventSnapshot
	EventHeartbeat
	EventMalformed
)

func (t EventType) String() string {
	switch t {
	case EventTick:
		return "tick"
	case EventBar:
		return "bar"
	case EventOrderAck:
		return "order_ack"
	case EventOrderNack:
		return "order_nack"
	case EventTrade:
		return "trade"
	case EventSnapshot:
		return "snapshot"
	case EventHeartbeat:
		return "heartbeat"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// OrderAck is the venue's acceptance of a correlated request. For create
// requests it carries the venue-assigned order id.
type OrderAck struct {
	CorrelationID string
	OrderID       uint64
}

// OrderNack is the venue's rejection of a correlated request.
type OrderNack struct {
	CorrelationID string
	OrderID       uint64
	Reason        string
}

// Snapshot is the venue's authoritative state, used to reconcile after a
// reconnect. It replaces the local portfolio, order table and recent trades
// wholesale.
type Snapshot struct {
	Positions map[string]Position
	Orders    []Order
	Trades    []Trade
}

// Event is the decoded form of exactly one inbound frame. Exactly one
// payload field is meaningful, selected by Type.
type Event struct {
	Type     EventType
	Tick     Tick
	Bar      Bar
	Ack      OrderAck
	Nack     OrderNack
	Trade    Trade
	Snapshot Snapshot
	// Err carries the decode failure for EventMalformed.
	Err error
}

// ActionKind discriminates strategy order actions.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	ActionCreate
	ActionClose
)

// Action is one order instruction returned by a strategy decision.
type Action struct {
	Kind     ActionKind
	Exchange string
	Ticker   string
	Side     OrderSide
	Volume   float64
	// OrderID targets an existing order for ActionClose.
	OrderID uint64
}

// Create builds a create-order action.
func Create(exchange, ticker string, side OrderSide, volume float64) Action {
	return Action{
		Kind:     ActionCreate,
		Exchange: exchange,
		Ticker:   ticker,
		Side:     side,
		Volume:   volume,
	}
}

// Close builds a close-order action targeting a venue order id.
func Close(orderID uint64) Action {
	return Action{Kind: ActionClose, OrderID: orderID}
}

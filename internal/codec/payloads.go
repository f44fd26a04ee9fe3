package codec

import (
	"encoding/json"

	"github.com/yanun0323/decimal"
)

// frame is the outer envelope of every wire message. The venue discriminates
// payloads with the type field; correlated outbound requests carry the
// correlation id on the envelope so retries stay byte-identical.
type frame struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

const (
	typeTick            = "tick"
	typeBar             = "bar"
	typeOrderAck        = "order_ack"
	typeOrderNack       = "order_nack"
	typeTrade           = "trade"
	typeSnapshot        = "snapshot"
	typeHeartbeat       = "heartbeat"
	typeCreateOrder     = "create_order"
	typeCloseOrder      = "close_order"
	typeSubscribe       = "subscribe"
	typeSnapshotRequest = "snapshot_request"
)

type tickPayload struct {
	Time     int64           `json:"time"`
	Exchange string          `json:"exchange"`
	Ticker   string          `json:"ticker"`
	Bid      decimal.Decimal `json:"bid"`
	Ask      decimal.Decimal `json:"ask"`
}

type barPayload struct {
	Time     int64           `json:"time"`
	Exchange string          `json:"exchange"`
	Ticker   string          `json:"ticker"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
}

type orderAckPayload struct {
	CorrelationID string `json:"correlation_id"`
	OrderID       uint64 `json:"order_id"`
}

type orderNackPayload struct {
	CorrelationID string `json:"correlation_id"`
	OrderID       uint64 `json:"order_id"`
	Reason        string `json:"reason"`
}

type tradePayload struct {
	OrderID uint64          `json:"order_id"`
	Price   decimal.Decimal `json:"price"`
	Volume  decimal.Decimal `json:"volume"`
	Time    int64           `json:"time"`
}

type snapshotPositionPayload struct {
	Ticker  string          `json:"ticker"`
	Size    decimal.Decimal `json:"size"`
	AvgCost decimal.Decimal `json:"avg_cost"`
}

type snapshotOrderPayload struct {
	OrderID       uint64          `json:"order_id"`
	CorrelationID string          `json:"correlation_id"`
	Exchange      string          `json:"exchange"`
	Ticker        string          `json:"ticker"`
	Side          string          `json:"side"`
	Volume        decimal.Decimal `json:"volume"`
	Remaining     decimal.Decimal `json:"remaining"`
	Status        string          `json:"status"`
}

type snapshotPayload struct {
	Positions []snapshotPositionPayload `json:"positions"`
	Orders    []snapshotOrderPayload    `json:"orders"`
	Trades    []tradePayload            `json:"trades"`
}

type createOrderPayload struct {
	Exchange string  `json:"exchange"`
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"`
	Volume   float64 `json:"volume"`
}

type closeOrderPayload struct {
	OrderID uint64 `json:"order_id"`
}

type subscribePairPayload struct {
	Exchange string `json:"exchange"`
	Ticker   string `json:"ticker"`
}

type subscribePayload struct {
	Pairs []subscribePairPayload `json:"pairs"`
}

// Package codec converts raw wire frames into typed events and encodes
// outbound requests. Decoding is pure: one frame in, exactly one event out,
// no buffering and no reordering.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/yanun0323/decimal"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

// Decode maps one inbound frame to exactly one typed event. A frame that
// cannot be decoded yields an EventMalformed carrying the reason; the caller
// logs and drops it without advancing the stream state.
func Decode(raw []byte) schema.Event {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return malformed(fmt.Errorf("unmarshal frame: %w", err))
	}

	switch f.Type {
	case typeTick:
		return decodeTick(f.Data)
	case typeBar:
		return decodeBar(f.Data)
	case typeOrderAck:
		return decodeOrderAck(f.Data)
	case typeOrderNack:
		return decodeOrderNack(f.Data)
	case typeTrade:
		return decodeTrade(f.Data)
	case typeSnapshot:
		return decodeSnapshot(f.Data)
	case typeHeartbeat:
		return schema.Event{Type: schema.EventHeartbeat}
	default:
		return malformed(fmt.Errorf("unknown frame type %q", f.Type))
	}
}

func decodeTick(data json.RawMessage) schema.Event {
	var p tickPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal tick: %w", err))
	}
	if p.Exchange == "" || p.Ticker == "" {
		return malformed(fmt.Errorf("tick missing symbol"))
	}
	bid, ok := toFloat(p.Bid)
	if !ok {
		return malformed(fmt.Errorf("tick bid %q", p.Bid.String()))
	}
	ask, ok := toFloat(p.Ask)
	if !ok {
		return malformed(fmt.Errorf("tick ask %q", p.Ask.String()))
	}
	return schema.Event{
		Type: schema.EventTick,
		Tick: schema.Tick{
			Time:     fromUnixMilli(p.Time),
			Exchange: p.Exchange,
			Ticker:   p.Ticker,
			Bid:      bid,
			Ask:      ask,
		},
	}
}

func decodeBar(data json.RawMessage) schema.Event {
	var p barPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal bar: %w", err))
	}
	if p.Exchange == "" || p.Ticker == "" {
		return malformed(fmt.Errorf("bar missing symbol"))
	}
	values := [4]float64{}
	for i, d := range []decimal.Decimal{p.Open, p.High, p.Low, p.Close} {
		v, ok := toFloat(d)
		if !ok {
			return malformed(fmt.Errorf("bar price %q", d.String()))
		}
		values[i] = v
	}
	return schema.Event{
		Type: schema.EventBar,
		Bar: schema.Bar{
			Time:     fromUnixMilli(p.Time),
			Exchange: p.Exchange,
			Ticker:   p.Ticker,
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
		},
	}
}

func decodeOrderAck(data json.RawMessage) schema.Event {
	var p orderAckPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal order_ack: %w", err))
	}
	if p.CorrelationID == "" {
		return malformed(fmt.Errorf("order_ack missing correlation id"))
	}
	return schema.Event{
		Type: schema.EventOrderAck,
		Ack:  schema.OrderAck{CorrelationID: p.CorrelationID, OrderID: p.OrderID},
	}
}

func decodeOrderNack(data json.RawMessage) schema.Event {
	var p orderNackPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal order_nack: %w", err))
	}
	if p.CorrelationID == "" {
		return malformed(fmt.Errorf("order_nack missing correlation id"))
	}
	return schema.Event{
		Type: schema.EventOrderNack,
		Nack: schema.OrderNack{
			CorrelationID: p.CorrelationID,
			OrderID:       p.OrderID,
			Reason:        p.Reason,
		},
	}
}

func decodeTrade(data json.RawMessage) schema.Event {
	var p tradePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal trade: %w", err))
	}
	if p.OrderID == 0 {
		return malformed(fmt.Errorf("trade missing order id"))
	}
	trade, err := tradeFromPayload(p)
	if err != nil {
		return malformed(err)
	}
	return schema.Event{Type: schema.EventTrade, Trade: trade}
}

func decodeSnapshot(data json.RawMessage) schema.Event {
	var p snapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed(fmt.Errorf("unmarshal snapshot: %w", err))
	}

	snap := schema.Snapshot{
		Positions: make(map[string]schema.Position, len(p.Positions)),
		Orders:    make([]schema.Order, 0, len(p.Orders)),
		Trades:    make([]schema.Trade, 0, len(p.Trades)),
	}
	for _, pos := range p.Positions {
		size, ok := toFloat(pos.Size)
		if !ok {
			return malformed(fmt.Errorf("snapshot position size %q", pos.Size.String()))
		}
		cost, ok := toFloat(pos.AvgCost)
		if !ok {
			return malformed(fmt.Errorf("snapshot position cost %q", pos.AvgCost.String()))
		}
		snap.Positions[pos.Ticker] = schema.Position{Size: size, AvgCost: cost}
	}
	for _, o := range p.Orders {
		volume, ok := toFloat(o.Volume)
		if !ok {
			return malformed(fmt.Errorf("snapshot order volume %q", o.Volume.String()))
		}
		remaining, ok := toFloat(o.Remaining)
		if !ok {
			return malformed(fmt.Errorf("snapshot order remaining %q", o.Remaining.String()))
		}
		status := statusFromString(o.Status)
		if status == schema.OrderUnknown {
			return malformed(fmt.Errorf("snapshot order status %q", o.Status))
		}
		snap.Orders = append(snap.Orders, schema.Order{
			OrderID:       o.OrderID,
			CorrelationID: o.CorrelationID,
			Exchange:      o.Exchange,
			Ticker:        o.Ticker,
			Side:          schema.SideFromString(o.Side),
			Volume:        volume,
			Remaining:     remaining,
			Status:        status,
		})
	}
	for _, t := range p.Trades {
		trade, err := tradeFromPayload(t)
		if err != nil {
			return malformed(fmt.Errorf("snapshot trade: %w", err))
		}
		snap.Trades = append(snap.Trades, trade)
	}
	return schema.Event{Type: schema.EventSnapshot, Snapshot: snap}
}

func tradeFromPayload(p tradePayload) (schema.Trade, error) {
	price, ok := toFloat(p.Price)
	if !ok {
		return schema.Trade{}, fmt.Errorf("trade price %q", p.Price.String())
	}
	volume, ok := toFloat(p.Volume)
	if !ok {
		return schema.Trade{}, fmt.Errorf("trade volume %q", p.Volume.String())
	}
	return schema.Trade{
		OrderID: p.OrderID,
		Price:   price,
		Volume:  volume,
		Time:    fromUnixMilli(p.Time),
	}, nil
}

func statusFromString(s string) schema.OrderStatus {
	switch s {
	case "pending":
		return schema.OrderPending
	case "open":
		return schema.OrderOpen
	case "closed":
		return schema.OrderClosed
	case "rejected":
		return schema.OrderRejected
	default:
		return schema.OrderUnknown
	}
}

func malformed(err error) schema.Event {
	return schema.Event{Type: schema.EventMalformed, Err: err}
}

// toFloat converts a wire decimal into the engine's internal float price.
// A zero-value decimal decodes as zero.
func toFloat(d decimal.Decimal) (float64, bool) {
	s := d.String()
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

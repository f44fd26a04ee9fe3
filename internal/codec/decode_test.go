package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

func TestDecodeTick(t *testing.T) {
	raw := []byte(`{"type":"tick","data":{"time":1700000000123,"exchange":"SIM","ticker":"BTC-USD","bid":"100.5","ask":"100.7"}}`)

	event := Decode(raw)
	require.Equal(t, schema.EventTick, event.Type)
	assert.Equal(t, "SIM", event.Tick.Exchange)
	assert.Equal(t, "BTC-USD", event.Tick.Ticker)
	assert.Equal(t, 100.5, event.Tick.Bid)
	assert.Equal(t, 100.7, event.Tick.Ask)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), event.Tick.Time)
}

func TestDecodeBar(t *testing.T) {
	raw := []byte(`{"type":"bar","data":{"time":1700000000123,"exchange":"SIM","ticker":"BTC-USD","open":"1","high":"4","low":"0.5","close":"3"}}`)

	event := Decode(raw)
	require.Equal(t, schema.EventBar, event.Type)
	assert.Equal(t, 1.0, event.Bar.Open)
	assert.Equal(t, 4.0, event.Bar.High)
	assert.Equal(t, 0.5, event.Bar.Low)
	assert.Equal(t, 3.0, event.Bar.Close)
}

func TestDecodeOrderAckNack(t *testing.T) {
	ack := Decode([]byte(`{"type":"order_ack","data":{"correlation_id":"c-1","order_id":42}}`))
	require.Equal(t, schema.EventOrderAck, ack.Type)
	assert.Equal(t, "c-1", ack.Ack.CorrelationID)
	assert.Equal(t, uint64(42), ack.Ack.OrderID)

	nack := Decode([]byte(`{"type":"order_nack","data":{"correlation_id":"c-2","reason":"margin"}}`))
	require.Equal(t, schema.EventOrderNack, nack.Type)
	assert.Equal(t, "c-2", nack.Nack.CorrelationID)
	assert.Equal(t, "margin", nack.Nack.Reason)
}

func TestDecodeTrade(t *testing.T) {
	event := Decode([]byte(`{"type":"trade","data":{"order_id":42,"price":"99.5","volume":"0.25","time":1700000000123}}`))
	require.Equal(t, schema.EventTrade, event.Type)
	assert.Equal(t, uint64(42), event.Trade.OrderID)
	assert.Equal(t, 99.5, event.Trade.Price)
	assert.Equal(t, 0.25, event.Trade.Volume)
}

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{"type":"snapshot","data":{
		"positions":[{"ticker":"BTC-USD","size":"100","avg_cost":"42.5"}],
		"orders":[{"order_id":7,"correlation_id":"c-1","exchange":"SIM","ticker":"BTC-USD","side":"buy","volume":"2","remaining":"1.5","status":"open"}],
		"trades":[{"order_id":7,"price":"42","volume":"0.5","time":1700000000123}]
	}}`)

	event := Decode(raw)
	require.Equal(t, schema.EventSnapshot, event.Type)

	pos, ok := event.Snapshot.Positions["BTC-USD"]
	require.True(t, ok)
	assert.Equal(t, 100.0, pos.Size)
	assert.Equal(t, 42.5, pos.AvgCost)

	require.Len(t, event.Snapshot.Orders, 1)
	order := event.Snapshot.Orders[0]
	assert.Equal(t, uint64(7), order.OrderID)
	assert.Equal(t, schema.SideBuy, order.Side)
	assert.Equal(t, schema.OrderOpen, order.Status)
	assert.Equal(t, 1.5, order.Remaining)

	require.Len(t, event.Snapshot.Trades, 1)
}

func TestDecodeHeartbeat(t *testing.T) {
	event := Decode([]byte(`{"type":"heartbeat"}`))
	assert.Equal(t, schema.EventHeartbeat, event.Type)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		desc string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown type", `{"type":"nope"}`},
		{"tick missing symbol", `{"type":"tick","data":{"bid":"1","ask":"2"}}`},
		{"ack missing correlation id", `{"type":"order_ack","data":{"order_id":1}}`},
		{"trade missing order id", `{"type":"trade","data":{"price":"1","volume":"1"}}`},
		{"snapshot bad status", `{"type":"snapshot","data":{"orders":[{"order_id":1,"correlation_id":"c","status":"weird"}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			event := Decode([]byte(tc.raw))
			assert.Equal(t, schema.EventMalformed, event.Type)
			assert.Error(t, event.Err)
		})
	}
}

package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

func TestViewIsDetachedFromStore(t *testing.T) {
	s := NewStore(Config{})
	s.ApplyTick(tickAt(1))
	require.NoError(t, s.AddPending(pendingOrder("c-1", schema.SideBuy, 1)))

	view := s.View(7)
	assert.Equal(t, uint64(7), view.Step())

	// Mutations after the copy must not leak into the view.
	s.ApplyTick(tickAt(2))
	require.NoError(t, s.OpenOrder("c-1", 9))

	assert.Len(t, view.History("SIM", "BTC-USD"), 1)
	require.Len(t, view.Orders(), 1)
	assert.Equal(t, schema.OrderPending, view.Orders()[0].Status)
}

func TestViewLastTickSkipsGaps(t *testing.T) {
	s := NewStore(Config{})
	s.ApplyTick(tickAt(42))
	s.MarkGap(time.Now().UTC())

	view := s.View(1)
	tick, ok := view.LastTick("SIM", "BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 42.0, tick.Bid)

	_, ok = view.LastTick("SIM", "ETH-USD")
	assert.False(t, ok)
}

func TestViewOpenOrdersAndLookup(t *testing.T) {
	s := NewStore(Config{})
	require.NoError(t, s.AddPending(pendingOrder("c-1", schema.SideBuy, 1)))
	require.NoError(t, s.AddPending(pendingOrder("c-2", schema.SideSell, 1)))
	require.NoError(t, s.OpenOrder("c-1", 5))

	view := s.View(1)
	open := view.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, uint64(5), open[0].OrderID)

	order, ok := view.Order(5)
	require.True(t, ok)
	assert.Equal(t, "c-1", order.CorrelationID)
	_, ok = view.Order(6)
	assert.False(t, ok)
}

func TestViewBars(t *testing.T) {
	s := NewStore(Config{})
	s.ApplyBar(schema.Bar{Exchange: "SIM", Ticker: "BTC-USD", Open: 1, High: 4, Low: 1, Close: 3})

	view := s.View(1)
	bar, ok := view.LastBar("SIM", "BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 3.0, bar.Close)
	_, ok = view.LastBar("SIM", "ETH-USD")
	assert.False(t, ok)
}

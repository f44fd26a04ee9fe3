package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
)

func storeWithOrder(t *testing.T, side schema.OrderSide, status schema.OrderStatus) *state.Store {
	t.Helper()
	s := state.NewStore(state.Config{})
	require.NoError(t, s.AddPending(schema.Order{
		CorrelationID: "c-1",
		Exchange:      "SIM",
		Ticker:        "BTC-USD",
		Side:          side,
		Volume:        1,
		Remaining:     1,
		Status:        schema.OrderPending,
	}))
	if status == schema.OrderOpen {
		require.NoError(t, s.OpenOrder("c-1", 5))
	}
	return s
}

func TestBuyOnEmptyBook(t *testing.T) {
	view := state.NewStore(state.Config{}).View(1)
	actions := Buy(view, "SIM", "BTC-USD", 1, true, true)
	require.Len(t, actions, 1)
	assert.Equal(t, schema.ActionCreate, actions[0].Kind)
	assert.Equal(t, schema.SideBuy, actions[0].Side)
}

func TestBuySingleSkipsWhenSameSideWorking(t *testing.T) {
	for _, status := range []schema.OrderStatus{schema.OrderPending, schema.OrderOpen} {
		view := storeWithOrder(t, schema.SideBuy, status).View(1)
		actions := Buy(view, "SIM", "BTC-USD", 1, true, false)
		assert.Empty(t, actions, "status %v", status)
	}
}

func TestBuyWithoutSingleStacksOrders(t *testing.T) {
	view := storeWithOrder(t, schema.SideBuy, schema.OrderOpen).View(1)
	actions := Buy(view, "SIM", "BTC-USD", 1, false, false)
	require.Len(t, actions, 1)
	assert.Equal(t, schema.ActionCreate, actions[0].Kind)
}

func TestBuyReverseClosesOpenSells(t *testing.T) {
	view := storeWithOrder(t, schema.SideSell, schema.OrderOpen).View(1)
	actions := Buy(view, "SIM", "BTC-USD", 1, true, true)
	require.Len(t, actions, 2)
	assert.Equal(t, schema.ActionClose, actions[0].Kind)
	assert.Equal(t, uint64(5), actions[0].OrderID)
	assert.Equal(t, schema.ActionCreate, actions[1].Kind)
}

func TestSellIgnoresOtherSymbols(t *testing.T) {
	view := storeWithOrder(t, schema.SideSell, schema.OrderOpen).View(1)
	actions := Sell(view, "SIM", "ETH-USD", 1, true, true)
	require.Len(t, actions, 1)
	assert.Equal(t, schema.ActionCreate, actions[0].Kind)
}

func TestCloseAll(t *testing.T) {
	view := storeWithOrder(t, schema.SideBuy, schema.OrderOpen).View(1)
	actions := CloseAll(view)
	require.Len(t, actions, 1)
	assert.Equal(t, schema.Close(5), actions[0])

	assert.Empty(t, CloseAll(state.NewStore(state.Config{}).View(1)))
}

func TestNewStrategy(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, Idle{}, s)

	s, err = New(Config{Name: "momentum", Exchange: "SIM", Ticker: "BTC-USD"})
	require.NoError(t, err)
	assert.IsType(t, &Momentum{}, s)

	_, err = New(Config{Name: "momentum"})
	assert.Error(t, err)
	_, err = New(Config{Name: "unheard-of"})
	assert.Error(t, err)
}

func feedTicks(s *state.Store, bids ...float64) {
	for _, bid := range bids {
		s.ApplyTick(schema.Tick{
			Time:     time.Now().UTC(),
			Exchange: "SIM",
			Ticker:   "BTC-USD",
			Bid:      bid,
			Ask:      bid + 1,
		})
	}
}

func TestMomentumBuysOnUptickRun(t *testing.T) {
	strat, err := New(Config{Name: "momentum", Exchange: "SIM", Ticker: "BTC-USD", Volume: 1, Lookback: 3})
	require.NoError(t, err)

	s := state.NewStore(state.Config{})
	feedTicks(s, 100, 101, 102, 103)

	actions := strat.OnTick(s.View(4))
	require.Len(t, actions, 1)
	assert.Equal(t, schema.ActionCreate, actions[0].Kind)
	assert.Equal(t, schema.SideBuy, actions[0].Side)
}

func TestMomentumSellsOnDowntickRun(t *testing.T) {
	strat, err := New(Config{Name: "momentum", Exchange: "SIM", Ticker: "BTC-USD", Volume: 1, Lookback: 3})
	require.NoError(t, err)

	s := state.NewStore(state.Config{})
	feedTicks(s, 103, 102, 101, 100)

	actions := strat.OnTick(s.View(4))
	require.Len(t, actions, 1)
	assert.Equal(t, schema.SideSell, actions[0].Side)
}

func TestMomentumHoldsOnMixedRun(t *testing.T) {
	strat, err := New(Config{Name: "momentum", Exchange: "SIM", Ticker: "BTC-USD", Volume: 1, Lookback: 3})
	require.NoError(t, err)

	s := state.NewStore(state.Config{})
	feedTicks(s, 100, 101, 100, 101)
	assert.Empty(t, strat.OnTick(s.View(4)))
}

func TestMomentumNeverTradesAcrossGap(t *testing.T) {
	strat, err := New(Config{Name: "momentum", Exchange: "SIM", Ticker: "BTC-USD", Volume: 1, Lookback: 3})
	require.NoError(t, err)

	s := state.NewStore(state.Config{})
	feedTicks(s, 100, 101)
	s.MarkGap(time.Now().UTC())
	feedTicks(s, 102, 103)
	assert.Empty(t, strat.OnTick(s.View(5)))
}

func TestIdleNeverTrades(t *testing.T) {
	assert.Empty(t, Idle{}.OnTick(state.NewStore(state.Config{}).View(1)))
}

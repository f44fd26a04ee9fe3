// Package strategy provides order-action helpers mirroring the classic
// pedlar agent semantics and a couple of built-in strategies.
package strategy

import (
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
)

// Buy builds the actions for a buy order. With single set, nothing is issued
// while a buy is already open or pending for the symbol; with reverse set,
// open sell orders for the symbol are closed first.
func Buy(view state.View, exchange, ticker string, volume float64, single, reverse bool) []schema.Action {
	return place(view, exchange, ticker, schema.SideBuy, volume, single, reverse)
}

// Sell builds the actions for a sell order, with the same single/reverse
// semantics as Buy.
func Sell(view state.View, exchange, ticker string, volume float64, single, reverse bool) []schema.Action {
	return place(view, exchange, ticker, schema.SideSell, volume, single, reverse)
}

// CloseAll closes every open order.
func CloseAll(view state.View) []schema.Action {
	var actions []schema.Action
	for _, o := range view.OpenOrders() {
		actions = append(actions, schema.Close(o.OrderID))
	}
	return actions
}

func place(view state.View, exchange, ticker string, side schema.OrderSide, volume float64, single, reverse bool) []schema.Action {
	var actions []schema.Action
	opposite := schema.SideSell
	if side == schema.SideSell {
		opposite = schema.SideBuy
	}

	for _, o := range view.Orders() {
		if o.Exchange != exchange || o.Ticker != ticker {
			continue
		}
		switch {
		case reverse && o.Status == schema.OrderOpen && o.Side == opposite:
			actions = append(actions, schema.Close(o.OrderID))
		case single && o.Side == side &&
			(o.Status == schema.OrderOpen || o.Status == schema.OrderPending):
			// An order of the same side is already working; do nothing.
			return actions
		}
	}

	return append(actions, schema.Create(exchange, ticker, side, volume))
}

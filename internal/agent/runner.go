// Package agent drives the per-tick loop: apply the tick, advance the step,
// hand the strategy an immutable snapshot, forward its order actions. The
// runner is the engine's only strict serialization point; no second decision
// call begins before the current one returns.
package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"github.com/ThomasWongMingHei/pedlar/internal/bus"
	"github.com/ThomasWongMingHei/pedlar/internal/codec"
	"github.com/ThomasWongMingHei/pedlar/internal/gateway"
	"github.com/ThomasWongMingHei/pedlar/internal/obs"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
)

// Strategy is the user-supplied decision capability. OnTick is invoked
// exactly once per tick, synchronously, with a read-only snapshot; the
// returned actions are applied in order after the call returns.
type Strategy interface {
	OnTick(view state.View) []schema.Action
}

// BarStrategy is an optional extension for strategies that also react to
// OHLC bar updates. Bars do not advance the step counter; the view passed to
// OnBar carries the step of the most recent tick.
type BarStrategy interface {
	OnBar(bar schema.Bar, view state.View) []schema.Action
}

// Runner consumes decoded frames on a single goroutine. The step counter is
// touched only by that goroutine; the connection id is updated by the
// supervisor on reconnect.
type Runner struct {
	queue    *bus.Queue
	store    *state.Store
	gateway  *gateway.Gateway
	strategy Strategy
	metrics  *obs.Metrics

	step   uint64
	connID atomic.Uint64
}

// NewRunner builds the per-tick driver.
func NewRunner(queue *bus.Queue, store *state.Store, gw *gateway.Gateway, strategy Strategy, metrics *obs.Metrics) *Runner {
	return &Runner{
		queue:    queue,
		store:    store,
		gateway:  gw,
		strategy: strategy,
		metrics:  metrics,
	}
}

// SetConnID updates the session's connection identity. The step counter is
// never reset; it stays monotone across reconnects.
func (r *Runner) SetConnID(connID uint64) {
	r.connID.Store(connID)
}

// Session returns the current session value.
func (r *Runner) Session() schema.Session {
	return schema.Session{ConnID: r.connID.Load(), Step: r.step}
}

// Run consumes frames until the context is done or the queue closes.
func (r *Runner) Run(ctx context.Context) {
	r.queue.Run(ctx, r.handleFrame)
}

// handleFrame processes exactly one inbound frame. Only tick events advance
// the step; order resolutions fold into the store and become visible in a
// later snapshot.
func (r *Runner) handleFrame(frame []byte) {
	event := codec.Decode(frame)
	switch event.Type {
	case schema.EventTick:
		r.handleTick(event.Tick)
	case schema.EventBar:
		r.handleBar(event.Bar)
	case schema.EventOrderAck:
		r.gateway.HandleAck(event.Ack)
	case schema.EventOrderNack:
		r.gateway.HandleNack(event.Nack)
	case schema.EventTrade:
		if err := r.store.ApplyTrade(event.Trade); err != nil {
			logs.Errorf("apply trade for order %d: %+v", event.Trade.OrderID, err)
		}
	case schema.EventSnapshot:
		r.store.ApplySnapshot(event.Snapshot, time.Now().UTC())
		logs.Infof("state reconciled from venue snapshot (conn %d)", r.connID.Load())
	case schema.EventHeartbeat:
		// Liveness is tracked at the transport; nothing to apply.
	case schema.EventMalformed:
		r.metrics.IncMalformed()
		logs.Errorf("drop malformed frame: %+v", event.Err)
	default:
		r.metrics.IncMalformed()
		logs.Errorf("drop unhandled event type %v", event.Type)
	}
}

func (r *Runner) handleTick(tick schema.Tick) {
	r.store.ApplyTick(tick)
	r.step++
	r.metrics.IncTick()

	view := r.store.View(r.step)
	actions := r.decide(view)
	for _, action := range actions {
		r.dispatch(action)
	}
}

func (r *Runner) handleBar(bar schema.Bar) {
	r.store.ApplyBar(bar)
	barStrategy, ok := r.strategy.(BarStrategy)
	if !ok {
		return
	}
	view := r.store.View(r.step)
	actions := r.decideBar(barStrategy, bar, view)
	for _, action := range actions {
		r.dispatch(action)
	}
}

// decide invokes the strategy with panic isolation. A failing decision
// discards that step's actions entirely; the session continues, since
// halting a live session is worse than skipping one decision.
func (r *Runner) decide(view state.View) (actions []schema.Action) {
	defer func() {
		if rec := recover(); rec != nil {
			actions = nil
			r.metrics.IncDecisionError()
			logs.Errorf("strategy panic at step %d: %+v", view.Step(), rec)
		}
	}()
	started := time.Now()
	actions = r.strategy.OnTick(view)
	r.metrics.ObserveDecision(time.Since(started))
	return actions
}

func (r *Runner) decideBar(strategy BarStrategy, bar schema.Bar, view state.View) (actions []schema.Action) {
	defer func() {
		if rec := recover(); rec != nil {
			actions = nil
			r.metrics.IncDecisionError()
			logs.Errorf("strategy bar panic at step %d: %+v", view.Step(), rec)
		}
	}()
	return strategy.OnBar(bar, view)
}

func (r *Runner) dispatch(action schema.Action) {
	switch action.Kind {
	case schema.ActionCreate:
		corrID, err := r.gateway.Create(action.Exchange, action.Ticker, action.Side, action.Volume)
		if err != nil {
			logs.Errorf("create %s %s/%s: %+v", action.Side, action.Exchange, action.Ticker, err)
			return
		}
		logs.Infof("create %s %s/%s volume %v correlation %s",
			action.Side, action.Exchange, action.Ticker, action.Volume, corrID)
	case schema.ActionClose:
		corrID, err := r.gateway.Close(action.OrderID)
		if err != nil {
			logs.Errorf("close order %d rejected locally: %+v", action.OrderID, err)
			return
		}
		logs.Infof("close order %d correlation %s", action.OrderID, corrID)
	default:
		logs.Errorf("drop unknown action kind %v", action.Kind)
	}
}

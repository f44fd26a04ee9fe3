// Package supervisor owns the transport lifecycle: it establishes the venue
// connection, watches its liveness signal and reconnects with backoff. After
// every reconnect it requests an authoritative snapshot before subscribing,
// so the strategy never sees post-outage ticks against stale state.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/ThomasWongMingHei/pedlar/internal/codec"
	"github.com/ThomasWongMingHei/pedlar/internal/obs"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/transport"
)

// Config wires the supervised connection.
type Config struct {
	Transport transport.Config
	Backoff   Backoff
	// Symbols are the (exchange, ticker) pairs to subscribe on every
	// established connection.
	Symbols []schema.Symbol
}

// Supervisor reconnects the transport forever until the context is
// cancelled and routes outbound sends to the current connection. It also
// implements the gateway's Transport.
type Supervisor struct {
	cfg     Config
	sink    func(frame []byte)
	metrics *obs.Metrics

	current   atomic.Pointer[transport.Transport]
	connID    atomic.Uint64
	onConnect func(connID uint64)
}

// New builds a supervisor. sink receives every inbound frame of whichever
// connection is current.
func New(cfg Config, sink func(frame []byte), metrics *obs.Metrics) *Supervisor {
	return &Supervisor{cfg: cfg, sink: sink, metrics: metrics}
}

// OnConnect registers a hook invoked with the new connection id after every
// successful connect. Call before Run.
func (s *Supervisor) OnConnect(hook func(connID uint64)) {
	s.onConnect = hook
}

// ConnID returns the identity of the current connection.
func (s *Supervisor) ConnID() uint64 {
	return s.connID.Load()
}

// Send routes one frame to the current connection, failing fast when the
// connection is down.
func (s *Supervisor) Send(frame []byte) error {
	tr := s.current.Load()
	if tr == nil {
		return transport.ErrConnDead
	}
	return tr.Send(frame)
}

// Run connects and supervises until the context is cancelled. Reconnection
// uses exponential backoff with jitter, capped, with an unbounded attempt
// count. Tick consumption is naturally suspended while disconnected; missed
// ticks surface as a history gap marker when the post-reconnect snapshot is
// applied on the event path, after any frames queued before the outage. The
// gap is never backfilled.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tr, err := s.connect(ctx)
		if err != nil {
			attempt++
			wait := s.cfg.Backoff.Next(attempt)
			logs.Errorf("connect attempt %d failed, next in %s: %+v", attempt, wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0
		s.current.Store(tr)
		connID := s.connID.Add(1)
		if s.onConnect != nil {
			s.onConnect(connID)
		}
		logs.Infof("connected to %s (conn %d)", s.cfg.Transport.URL, connID)

		select {
		case <-ctx.Done():
			s.current.Store(nil)
			_ = tr.Close()
			return ctx.Err()
		case err := <-tr.Dead():
			s.current.Store(nil)
			_ = tr.Close()
			s.metrics.IncReconnect()
			logs.Errorf("connection %d lost: %+v", connID, err)
		}
	}
}

// connect dials, requests a snapshot and subscribes, in that order. The
// venue serves requests in order, so the snapshot reply reaches the decoder
// before the first post-reconnect tick.
func (s *Supervisor) connect(ctx context.Context) (*transport.Transport, error) {
	tr := transport.New(s.cfg.Transport, s.sink)
	if err := tr.Connect(ctx); err != nil {
		return nil, err
	}

	snapReq, err := codec.EncodeSnapshotRequest()
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	if err := tr.Send(snapReq); err != nil {
		_ = tr.Close()
		return nil, errors.Wrap(err, "request snapshot")
	}

	subReq, err := codec.EncodeSubscribe(s.cfg.Symbols)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	if err := tr.Send(subReq); err != nil {
		_ = tr.Close()
		return nil, errors.Wrap(err, "subscribe")
	}
	return tr, nil
}

// Package transport owns one persistent duplex connection to the venue. A
// dedicated reader goroutine delivers inbound frames in arrival order; a
// liveness watchdog declares the connection dead when no inbound traffic
// (data or pong) is seen within the configured window.
package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
)

var ErrConnDead = errors.New("transport: connection dead")

// Credentials authenticate the session during the handshake.
type Credentials struct {
	Username string
	Token    string
}

// Config describes one venue connection.
type Config struct {
	// URL is the venue websocket endpoint.
	URL         string
	Credentials Credentials
	// LivenessTimeout declares the connection dead when nothing arrives
	// within this window. Must exceed PingInterval.
	LivenessTimeout  time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = 30 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = c.LivenessTimeout * 9 / 10
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	return c
}

// Transport is one established connection. It is not reusable: after the
// connection dies the supervisor builds a fresh one.
type Transport struct {
	cfg  Config
	sink func(frame []byte)

	conn    *websocket.Conn
	writeMu sync.Mutex

	alive    atomic.Bool
	dead     chan error
	deadOnce sync.Once
	done     chan struct{}
	closed   sync.Once
}

// New builds an unconnected transport. Every inbound frame is handed to sink
// from the single reader goroutine, preserving arrival order.
func New(cfg Config, sink func(frame []byte)) *Transport {
	return &Transport{
		cfg:  cfg.withDefaults(),
		sink: sink,
		dead: make(chan error, 1),
		done: make(chan struct{}),
	}
}

// Connect dials the venue and starts the reader and heartbeat loops.
func (t *Transport) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	header := http.Header{}
	if t.cfg.Credentials.Username != "" {
		header.Set("X-Pedlar-User", t.cfg.Credentials.Username)
		header.Set("Authorization", "Bearer "+t.cfg.Credentials.Token)
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return errors.Wrap(err, "dial venue")
	}
	t.conn = conn
	t.alive.Store(true)

	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.LivenessTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.LivenessTimeout))
	})

	go t.readLoop()
	go t.pingLoop()
	return nil
}

// Send writes one frame. It fails fast with ErrConnDead once the connection
// has been declared dead instead of blocking.
func (t *Transport) Send(frame []byte) error {
	if !t.alive.Load() {
		return ErrConnDead
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.declareDead(err)
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// Dead delivers the error that killed the connection.
func (t *Transport) Dead() <-chan error {
	return t.dead
}

// Close shuts the connection down without signaling Dead.
func (t *Transport) Close() error {
	var err error
	t.closed.Do(func() {
		close(t.done)
		t.alive.Store(false)
		if t.conn != nil {
			t.writeMu.Lock()
			_ = t.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(t.cfg.WriteTimeout),
			)
			t.writeMu.Unlock()
			err = t.conn.Close()
		}
	})
	return err
}

// readLoop is the only reader. Any read error, including the liveness
// deadline expiring, kills the connection.
func (t *Transport) readLoop() {
	for {
		_, frame, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				t.declareDead(err)
			}
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.LivenessTimeout))
		t.sink(frame)
	}
}

// pingLoop sends periodic heartbeats so an idle but healthy connection keeps
// producing inbound pongs for the watchdog.
func (t *Transport) pingLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				t.declareDead(err)
				return
			}
		}
	}
}

func (t *Transport) declareDead(err error) {
	t.alive.Store(false)
	t.deadOnce.Do(func() {
		t.dead <- errors.Wrap(err, "connection dead")
	})
}

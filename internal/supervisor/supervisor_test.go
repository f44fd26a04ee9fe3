package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasWongMingHei/pedlar/internal/obs"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/transport"
)

var upgrader = websocket.Upgrader{}

func frameType(raw []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &envelope)
	return envelope.Type
}

func TestSendFailsFastWhileDisconnected(t *testing.T) {
	sup := New(Config{}, func([]byte) {}, obs.NewMetrics())
	assert.ErrorIs(t, sup.Send([]byte("x")), transport.ErrConnDead)
}

func TestReconnectRequestsSnapshotBeforeSubscribing(t *testing.T) {
	var connSeq int32
	frames := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&connSeq, 1)
		for i := 0; i < 2; i++ {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- fmt.Sprintf("%d:%s", n, frameType(raw))
		}
		if n == 1 {
			// Kill the first connection so the supervisor has to reconnect.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	metrics := obs.NewMetrics()

	connected := make(chan uint64, 4)
	sup := New(Config{
		Transport: transport.Config{
			URL:             "ws" + strings.TrimPrefix(srv.URL, "http"),
			LivenessTimeout: time.Second,
		},
		Backoff: Backoff{Min: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2},
		Symbols: []schema.Symbol{{Exchange: "SIM", Ticker: "BTC-USD"}},
	}, func([]byte) {}, metrics)
	sup.OnConnect(func(connID uint64) { connected <- connID })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sup.Run(ctx)
		close(done)
	}()

	var got []string
	for i := 0; i < 4; i++ {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d frames arrived: %v", len(got), got)
		}
	}
	assert.Equal(t, []string{
		"1:snapshot_request", "1:subscribe",
		"2:snapshot_request", "2:subscribe",
	}, got, "every connection requests a snapshot before subscribing")

	require.Eventually(t, func() bool { return sup.ConnID() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), metrics.Snapshot().Reconnects)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}

	select {
	case id := <-connected:
		assert.Equal(t, uint64(1), id)
	default:
		t.Fatal("connect hook never fired")
	}
}

// Package gateway turns strategy order actions into correlated outbound
// requests and resolves them against asynchronous venue acknowledgements.
//
// Every logical request gets one correlation id that is reused verbatim on
// each resend; the venue deduplicates retried requests sharing an id. That
// deduplication is an external contract, not enforced here.
package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"github.com/ThomasWongMingHei/pedlar/internal/codec"
	"github.com/ThomasWongMingHei/pedlar/internal/journal"
	"github.com/ThomasWongMingHei/pedlar/internal/obs"
	"github.com/ThomasWongMingHei/pedlar/internal/schema"
	"github.com/ThomasWongMingHei/pedlar/internal/state"
)

var (
	ErrUnknownOrder  = errors.New("order not found")
	ErrOrderClosed   = errors.New("order already closed")
	ErrOrderNotOpen  = errors.New("order not open")
	ErrInvalidVolume = errors.New("volume must be positive")
	ErrShuttingDown  = errors.New("gateway shutting down")
)

// Transport sends one outbound frame. A dead connection fails fast.
type Transport interface {
	Send(frame []byte) error
}

// Config sets the acknowledgement protocol parameters.
type Config struct {
	// AckTimeout is how long each attempt waits for an Ack/Nack.
	AckTimeout time.Duration
	// MaxRetries is how many times an unacknowledged request is resent
	// before it is locally resolved to Rejected.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

type request struct {
	corrID   string
	isClose  bool
	orderID  uint64
	payload  []byte
	resolved chan struct{}
}

// Gateway owns the pending-request table. Entries are retired into the
// state store's order table once resolved; the table is never exposed.
type Gateway struct {
	cfg       Config
	transport Transport
	store     *state.Store
	journal   *journal.Journal
	metrics   *obs.Metrics

	mu       sync.Mutex
	pending  map[string]*request
	draining bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a gateway. The journal and metrics are optional.
func New(cfg Config, transport Transport, store *state.Store, jnl *journal.Journal, metrics *obs.Metrics) *Gateway {
	return &Gateway{
		cfg:       cfg.withDefaults(),
		transport: transport,
		store:     store,
		journal:   jnl,
		metrics:   metrics,
		pending:   make(map[string]*request),
		done:      make(chan struct{}),
	}
}

// Create issues a create-order request and returns its correlation id. The
// request is journaled and recorded as Pending before the first send; its
// outcome surfaces in a later snapshot's orders view.
func (g *Gateway) Create(exchange, ticker string, side schema.OrderSide, volume float64) (string, error) {
	if volume <= 0 {
		return "", ErrInvalidVolume
	}
	corrID := uuid.NewString()
	payload, err := codec.EncodeCreateOrder(corrID, exchange, ticker, side, volume)
	if err != nil {
		return "", err
	}
	order := schema.Order{
		CorrelationID: corrID,
		Exchange:      exchange,
		Ticker:        ticker,
		Side:          side,
		Volume:        volume,
		Remaining:     volume,
		Status:        schema.OrderPending,
	}
	if err := g.store.AddPending(order); err != nil {
		return "", err
	}
	if err := g.launch(&request{corrID: corrID, payload: payload, resolved: make(chan struct{})}); err != nil {
		// The pending entry has no retry loop behind it; resolve it now so
		// the store never carries an order nothing can settle.
		if rejectErr := g.store.RejectOrder(corrID, "gateway shutting down"); rejectErr != nil {
			logs.Errorf("reject unsent order %s: %+v", corrID, rejectErr)
		}
		return "", err
	}
	return corrID, nil
}

// Close issues a close-order request for a venue order id. Requests against
// an unknown or non-open order are rejected locally without contacting the
// venue.
func (g *Gateway) Close(orderID uint64) (string, error) {
	order, ok := g.store.Order(orderID)
	if !ok {
		return "", ErrUnknownOrder
	}
	switch order.Status {
	case schema.OrderOpen:
	case schema.OrderClosed:
		return "", ErrOrderClosed
	default:
		return "", ErrOrderNotOpen
	}

	corrID := uuid.NewString()
	payload, err := codec.EncodeCloseOrder(corrID, orderID)
	if err != nil {
		return "", err
	}
	if err := g.launch(&request{corrID: corrID, isClose: true, orderID: orderID, payload: payload, resolved: make(chan struct{})}); err != nil {
		return "", err
	}
	return corrID, nil
}

// HandleAck resolves the pending request carrying the ack's correlation id:
// creates go Pending -> Open with the venue-assigned order id, closes go
// Open -> Closed. A late ack for an already-expired request is dropped.
func (g *Gateway) HandleAck(ack schema.OrderAck) {
	req, ok := g.retire(ack.CorrelationID)
	if !ok {
		logs.Infof("drop ack for unknown correlation id %s", ack.CorrelationID)
		return
	}
	if req.isClose {
		if err := g.store.CloseOrder(req.orderID); err != nil {
			logs.Errorf("close order %d: %+v", req.orderID, err)
		}
		return
	}
	if err := g.store.OpenOrder(req.corrID, ack.OrderID); err != nil {
		logs.Errorf("open order %s: %+v", req.corrID, err)
	}
}

// HandleNack resolves the pending request to a rejection. For close requests
// the order stays open and the refusal is recorded as its reason.
func (g *Gateway) HandleNack(nack schema.OrderNack) {
	req, ok := g.retire(nack.CorrelationID)
	if !ok {
		logs.Infof("drop nack for unknown correlation id %s", nack.CorrelationID)
		return
	}
	if req.isClose {
		g.store.AnnotateOrder(req.orderID, "close rejected: "+nack.Reason)
		return
	}
	if err := g.store.RejectOrder(req.corrID, nack.Reason); err != nil {
		logs.Errorf("reject order %s: %+v", req.corrID, err)
	}
}

// PendingCount returns the number of outstanding requests.
func (g *Gateway) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Drain waits up to grace for in-flight requests to resolve, then locally
// expires whatever is left. No retries happen beyond the grace window.
func (g *Gateway) Drain(grace time.Duration) {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()

	settled := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-time.After(grace):
	}

	g.mu.Lock()
	leftovers := make([]*request, 0, len(g.pending))
	for _, req := range g.pending {
		leftovers = append(leftovers, req)
	}
	g.mu.Unlock()
	for _, req := range leftovers {
		g.expire(req, "shutdown before acknowledgement")
	}

	close(g.done)
	g.wg.Wait()
}

func (g *Gateway) launch(req *request) error {
	g.mu.Lock()
	if g.draining {
		g.mu.Unlock()
		return ErrShuttingDown
	}
	g.pending[req.corrID] = req
	g.mu.Unlock()

	// Journal before the first send so a crash between the two leaves a
	// detectable in-flight record.
	if g.journal != nil {
		if err := g.journal.Append(req.corrID, req.payload); err != nil {
			logs.Errorf("journal append %s: %+v", req.corrID, err)
		}
	}

	g.wg.Add(1)
	go g.await(req)

	if err := g.transport.Send(req.payload); err != nil {
		logs.Errorf("send request %s: %+v", req.corrID, err)
	}
	return nil
}

// await drives the retry loop for one request: wait AckTimeout per attempt,
// resend with the same correlation id up to MaxRetries times, then resolve
// locally.
func (g *Gateway) await(req *request) {
	defer g.wg.Done()

	timer := time.NewTimer(g.cfg.AckTimeout)
	defer timer.Stop()

	for attempt := 0; ; attempt++ {
		select {
		case <-req.resolved:
			return
		case <-g.done:
			return
		case <-timer.C:
			if attempt >= g.cfg.MaxRetries {
				g.expire(req, "no acknowledgement after retries")
				return
			}
			g.metrics.IncOrderRetry()
			if err := g.transport.Send(req.payload); err != nil {
				logs.Errorf("resend request %s: %+v", req.corrID, err)
			}
			timer.Reset(g.cfg.AckTimeout)
		}
	}
}

// retire removes a pending entry and signals its retry loop.
func (g *Gateway) retire(corrID string) (*request, bool) {
	g.mu.Lock()
	req, ok := g.pending[corrID]
	if ok {
		delete(g.pending, corrID)
		close(req.resolved)
	}
	g.mu.Unlock()
	if ok && g.journal != nil {
		if err := g.journal.Retire(corrID); err != nil {
			logs.Errorf("journal retire %s: %+v", corrID, err)
		}
	}
	return req, ok
}

// expire locally resolves a request that never got acknowledged.
func (g *Gateway) expire(req *request, reason string) {
	if _, ok := g.retire(req.corrID); !ok {
		return
	}
	g.metrics.IncOrderTimeout()
	if req.isClose {
		g.store.AnnotateOrder(req.orderID, "close request expired: "+reason)
		return
	}
	if err := g.store.RejectOrder(req.corrID, reason); err != nil {
		logs.Errorf("reject expired order %s: %+v", req.corrID, err)
	}
}

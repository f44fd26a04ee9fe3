package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight engine counters and decision latency stats.
type Metrics struct {
	ticksProcessed  uint64
	malformedFrames uint64
	decisionErrors  uint64
	reconnects      uint64
	orderRetries    uint64
	orderTimeouts   uint64
	queueDrops      uint64
	queueClosed     uint64

	decisionLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// Observe folds one sample into the stats.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	ns := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, ns)
	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && ns >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, ns) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&l.max)
		if ns <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, ns) {
			break
		}
	}
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

func (l *LatencyStats) snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	out := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
	}
	if count > 0 {
		out.Avg = time.Duration(atomic.LoadUint64(&l.sum) / count)
	}
	return out
}

// Snapshot captures the current counter values.
type Snapshot struct {
	TicksProcessed  uint64
	MalformedFrames uint64
	DecisionErrors  uint64
	Reconnects      uint64
	OrderRetries    uint64
	OrderTimeouts   uint64
	QueueDrops      uint64
	QueueClosed     uint64
	DecisionLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTick counts one processed tick.
func (m *Metrics) IncTick() { m.inc(&m.ticksProcessed) }

// IncMalformed counts one dropped malformed frame.
func (m *Metrics) IncMalformed() { m.inc(&m.malformedFrames) }

// IncDecisionError counts one strategy decision failure.
func (m *Metrics) IncDecisionError() { m.inc(&m.decisionErrors) }

// IncReconnect counts one reconnection attempt cycle.
func (m *Metrics) IncReconnect() { m.inc(&m.reconnects) }

// IncOrderRetry counts one resend of an outstanding request.
func (m *Metrics) IncOrderRetry() { m.inc(&m.orderRetries) }

// IncOrderTimeout counts one request locally resolved after exhausted retries.
func (m *Metrics) IncOrderTimeout() { m.inc(&m.orderTimeouts) }

// IncQueueDrop counts one frame dropped on a full queue.
func (m *Metrics) IncQueueDrop() { m.inc(&m.queueDrops) }

// IncQueueClosed counts one publish against a closed queue.
func (m *Metrics) IncQueueClosed() { m.inc(&m.queueClosed) }

// ObserveDecision measures one strategy decision call.
func (m *Metrics) ObserveDecision(d time.Duration) {
	if m == nil {
		return
	}
	m.decisionLatency.Observe(d)
}

// DecisionErrors returns the current decision failure count.
func (m *Metrics) DecisionErrors() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.decisionErrors)
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		TicksProcessed:  atomic.LoadUint64(&m.ticksProcessed),
		MalformedFrames: atomic.LoadUint64(&m.malformedFrames),
		DecisionErrors:  atomic.LoadUint64(&m.decisionErrors),
		Reconnects:      atomic.LoadUint64(&m.reconnects),
		OrderRetries:    atomic.LoadUint64(&m.orderRetries),
		OrderTimeouts:   atomic.LoadUint64(&m.orderTimeouts),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		DecisionLatency: m.decisionLatency.snapshot(),
	}
}

func (m *Metrics) inc(counter *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(counter, 1)
}

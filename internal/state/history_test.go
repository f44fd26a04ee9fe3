package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

func tickAt(bid float64) schema.Tick {
	return schema.Tick{
		Time:     time.Now().UTC(),
		Exchange: "SIM",
		Ticker:   "BTC-USD",
		Bid:      bid,
		Ask:      bid + 1,
	}
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Append(HistoryEntry{Tick: tickAt(float64(i))})
	}

	assert.Equal(t, 3, buf.Len(), "len stays at capacity")
	entries := buf.Snapshot()
	for i, want := range []float64{2, 3, 4} {
		assert.Equal(t, want, entries[i].Tick.Bid, "entry %d", i)
	}
}

func TestBufferGapMarkerDedup(t *testing.T) {
	buf := NewBuffer(8)
	buf.Append(HistoryEntry{Tick: tickAt(1)})
	at := time.Now().UTC()
	buf.MarkGap(at)
	buf.MarkGap(at.Add(time.Second))
	buf.MarkGap(at.Add(2 * time.Second))

	assert.Equal(t, 2, buf.Len(), "consecutive gaps collapse to one marker")
	last, ok := buf.Last()
	require.True(t, ok)
	assert.True(t, last.Gap, "newest entry is the gap marker")
}

func TestBufferGapAfterTickIsKept(t *testing.T) {
	buf := NewBuffer(8)
	buf.MarkGap(time.Now().UTC())
	buf.Append(HistoryEntry{Tick: tickAt(1)})
	buf.MarkGap(time.Now().UTC())

	entries := buf.Snapshot()
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Gap)
	assert.False(t, entries[1].Gap)
	assert.True(t, entries[2].Gap)
}

func TestBufferSnapshotIsACopy(t *testing.T) {
	buf := NewBuffer(4)
	buf.Append(HistoryEntry{Tick: tickAt(1)})
	snap := buf.Snapshot()
	snap[0].Tick.Bid = 99

	fresh := buf.Snapshot()
	assert.Equal(t, 1.0, fresh[0].Tick.Bid, "mutating a snapshot must not touch the buffer")
}

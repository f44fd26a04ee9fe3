package state

import (
	"time"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

// HistoryEntry is one slot in a symbol's history buffer: either a real tick
// or an explicit gap marker for ticks missed during an outage. Gaps are never
// backfilled with fabricated ticks.
type HistoryEntry struct {
	Tick schema.Tick
	Gap  bool
}

// GapEntry builds a gap marker stamped with the moment the outage was detected.
func GapEntry(at time.Time) HistoryEntry {
	return HistoryEntry{Tick: schema.Tick{Time: at}, Gap: true}
}

// Buffer is a fixed-capacity FIFO ring of history entries. Insertion is
// append-only; when full, the oldest entry is evicted exactly once per insert.
type Buffer struct {
	entries []HistoryEntry
	start   int
	count   int
}

// NewBuffer allocates a buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{entries: make([]HistoryEntry, capacity)}
}

// Append inserts an entry, evicting the oldest when the buffer is full.
func (b *Buffer) Append(e HistoryEntry) {
	if b.count == len(b.entries) {
		b.entries[b.start] = e
		b.start = (b.start + 1) % len(b.entries)
		return
	}
	b.entries[(b.start+b.count)%len(b.entries)] = e
	b.count++
}

// MarkGap appends a gap marker unless the newest entry is already one, so an
// outage produces a single marker regardless of how it was detected.
func (b *Buffer) MarkGap(at time.Time) {
	if last, ok := b.Last(); ok && last.Gap {
		return
	}
	b.Append(GapEntry(at))
}

// Last returns the newest entry.
func (b *Buffer) Last() (HistoryEntry, bool) {
	if b.count == 0 {
		return HistoryEntry{}, false
	}
	return b.entries[(b.start+b.count-1)%len(b.entries)], true
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// Snapshot copies the entries in order, oldest first.
func (b *Buffer) Snapshot() []HistoryEntry {
	out := make([]HistoryEntry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

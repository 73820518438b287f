package server

import (
	"sort"
	"sync"
	"time"
)

// ActiveStream describes a parent stream being served.
type ActiveStream struct {
	ID      uint64
	Path    string
	Method  string
	Started time.Time
}

// StreamObserver is notified with the table size whenever a parent stream
// starts or finishes.
type StreamObserver interface {
	ObserveActiveStreams(n int)
}

// streamTable tracks parent streams for diagnostics. Nothing in the request
// path reads it.
type streamTable struct {
	mu      sync.RWMutex
	streams map[uint64]ActiveStream
	peak    int
}

func newStreamTable() *streamTable {
	return &streamTable{streams: make(map[uint64]ActiveStream)}
}

func (t *streamTable) add(s ActiveStream) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams[s.ID] = s
	if n := len(t.streams); n > t.peak {
		t.peak = n
	}
	return len(t.streams)
}

func (t *streamTable) remove(id uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, id)
	return len(t.streams)
}

func (t *streamTable) snapshot() []ActiveStream {
	t.mu.RLock()
	out := make([]ActiveStream, 0, len(t.streams))
	for _, s := range t.streams {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *streamTable) peakCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peak
}

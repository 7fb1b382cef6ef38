// Package analytics keeps a bounded in-memory log of completed requests
// and derives streaming statistics from it: rolling request rates, top
// endpoints, error rate, and active-client counts, pushed live over SSE.
//
// Nothing here survives a restart; the buffer is deliberately ephemeral.
package analytics

import (
	"sync"
	"time"
)

// Capacity is the default circular buffer size (~2 MB of records).
const Capacity = 10_000

// Record is the authoritative per-request log entry.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	StatusCode    int       `json:"statusCode"`
	ResponseTime  float64   `json:"responseTime"` // milliseconds
	ClientID      string    `json:"clientId"`
	IP            string    `json:"ip"`
	APIKey        string    `json:"apiKey,omitempty"`
	Authenticated bool      `json:"authenticated"`
}

// Buffer is a fixed-capacity circular log. Once full, each append
// overwrites the oldest record; count stays clamped at capacity.
type Buffer struct {
	mu       sync.Mutex
	records  []Record
	head     int
	count    int
	capacity int
}

// NewBuffer creates a buffer holding up to capacity records
// (Capacity when capacity <= 0).
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Buffer{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// Add appends a record in amortized O(1).
func (b *Buffer) Add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count < b.capacity {
		b.records[b.count] = r
		b.count++
		return
	}
	b.records[b.head] = r
	b.head = (b.head + 1) % b.capacity
}

// Len returns the number of live records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Ordered returns a chronological (oldest-first) copy of the buffer.
// Readers aggregate over the copy so the writer is never held up.
func (b *Buffer) Ordered() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orderedLocked()
}

func (b *Buffer) orderedLocked() []Record {
	out := make([]Record, 0, b.count)
	if b.count < b.capacity {
		return append(out, b.records[:b.count]...)
	}
	out = append(out, b.records[b.head:]...)
	return append(out, b.records[:b.head]...)
}

// Newest returns a newest-first copy, the view consumers page through.
func (b *Buffer) Newest() []Record {
	ordered := b.Ordered()
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}

package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmptyBuffer(t *testing.T) {
	b := NewBuffer(10)

	stats := b.Snapshot(0)
	assert.Equal(t, 0, stats.TotalRequests)
	assert.Zero(t, stats.ErrorRate)
	assert.Zero(t, stats.AvgResponseTime)
	require.NotNil(t, stats.TopEndpoints, "marshals as [] rather than null")
	assert.Empty(t, stats.TopEndpoints)
}

func TestSnapshotAggregates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer(10)

	for i := 0; i < 3; i++ {
		b.Add(Record{Timestamp: now, Method: "GET", Path: "/api/users", StatusCode: 200, ResponseTime: 100, IP: "203.0.113.7"})
	}
	b.Add(Record{Timestamp: now, Method: "GET", Path: "/api/orders", StatusCode: 500, ResponseTime: 200, IP: "203.0.113.7"})

	stats := b.snapshotAt(now, 3)
	assert.Equal(t, 4, stats.TotalRequests)
	assert.Equal(t, 25.0, stats.ErrorRate)
	assert.Equal(t, 125.0, stats.AvgResponseTime)
	assert.Equal(t, int64(3), stats.RateLimitHits)
	require.Len(t, stats.TopEndpoints, 2)
	assert.Equal(t, EndpointCount{Path: "/api/users", Count: 3}, stats.TopEndpoints[0])
	assert.Equal(t, EndpointCount{Path: "/api/orders", Count: 1}, stats.TopEndpoints[1])
}

func TestSnapshotRounding(t *testing.T) {
	now := time.Now()
	b := NewBuffer(10)
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 500, ResponseTime: 10})
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, ResponseTime: 10})
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, ResponseTime: 11})

	stats := b.snapshotAt(now, 0)
	assert.Equal(t, 33.33, stats.ErrorRate, "percentage rounds to two decimals")
	assert.Equal(t, 10.33, stats.AvgResponseTime)
}

func TestSnapshotTimeWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer(10)

	b.Add(Record{Timestamp: now.Add(-10 * time.Second), Path: "/a", StatusCode: 200, IP: "10.0.0.1"})
	b.Add(Record{Timestamp: now.Add(-2 * time.Minute), Path: "/a", StatusCode: 200, IP: "10.0.0.2"})
	b.Add(Record{Timestamp: now.Add(-10 * time.Minute), Path: "/a", StatusCode: 200, IP: "10.0.0.3"})

	stats := b.snapshotAt(now, 0)
	assert.Equal(t, 3, stats.TotalRequests, "totals span the whole buffer")
	assert.Equal(t, 1, stats.RequestsPerMinute, "only the 10s-old request is within a minute")
	assert.Equal(t, 2, stats.ActiveClients, "the 10m-old IP is no longer active")
}

func TestSnapshotActiveKeyUses(t *testing.T) {
	now := time.Now()
	b := NewBuffer(10)

	// Same key from two IPs, plus a repeat, plus an anonymous request.
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, IP: "10.0.0.1", APIKey: "gw_live_aa"})
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, IP: "10.0.0.1", APIKey: "gw_live_aa"})
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, IP: "10.0.0.2", APIKey: "gw_live_aa"})
	b.Add(Record{Timestamp: now, Path: "/a", StatusCode: 200, IP: "10.0.0.3"})

	stats := b.snapshotAt(now, 0)
	assert.Equal(t, 2, stats.ActiveKeyUses, "distinct (ip, key) pairs")
	assert.Equal(t, 3, stats.ActiveClients)
}

func TestSnapshotTopEndpointsCappedAndSorted(t *testing.T) {
	now := time.Now()
	b := NewBuffer(100)

	for i := 0; i < 8; i++ {
		path := fmt.Sprintf("/api/e%d", i)
		for j := 0; j <= i; j++ {
			b.Add(Record{Timestamp: now, Path: path, StatusCode: 200})
		}
	}
	// Tie with /api/e0 at one hit; /api/a0 sorts first alphabetically.
	b.Add(Record{Timestamp: now, Path: "/api/a0", StatusCode: 200})

	stats := b.snapshotAt(now, 0)
	require.Len(t, stats.TopEndpoints, 5)
	assert.Equal(t, "/api/e7", stats.TopEndpoints[0].Path)
	assert.Equal(t, 8, stats.TopEndpoints[0].Count)
	assert.Equal(t, "/api/e3", stats.TopEndpoints[4].Path)
}

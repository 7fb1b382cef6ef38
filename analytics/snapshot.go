package analytics

import (
	"math"
	"sort"
	"time"
)

const (
	perMinuteWindow = time.Minute
	activeWindow    = 5 * time.Minute
	topEndpointsMax = 5
)

// EndpointCount is one row of the top-endpoints table.
type EndpointCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Stats is the derived analytics view recomputed on demand.
//
// ErrorRate and AvgResponseTime cover the entire buffer (historical),
// not the last minute; dashboard consumers rely on that horizon.
type Stats struct {
	TotalRequests     int             `json:"totalRequests"`
	RequestsPerMinute int             `json:"requestsPerMinute"`
	TopEndpoints      []EndpointCount `json:"topEndpoints"`
	ErrorRate         float64         `json:"errorRate"`
	AvgResponseTime   float64         `json:"avgResponseTime"`
	ActiveClients     int             `json:"activeClients"`
	ActiveKeyUses     int             `json:"activeKeyUses"`
	RateLimitHits     int64           `json:"rateLimitHits"`
}

// Snapshot computes the current stats. rateLimitHits is maintained by the
// admission engine and passed through. All aggregations read one
// consistent copy of the buffer.
func (b *Buffer) Snapshot(rateLimitHits int64) Stats {
	return b.snapshotAt(time.Now(), rateLimitHits)
}

func (b *Buffer) snapshotAt(now time.Time, rateLimitHits int64) Stats {
	logs := b.Ordered()

	stats := Stats{
		TotalRequests: len(logs),
		TopEndpoints:  []EndpointCount{},
		RateLimitHits: rateLimitHits,
	}
	if len(logs) == 0 {
		return stats
	}

	byPath := make(map[string]int)
	clients := make(map[string]struct{})
	keyUses := make(map[string]struct{})
	errors := 0
	totalMs := 0.0

	for _, l := range logs {
		byPath[l.Path]++
		if l.StatusCode >= 400 {
			errors++
		}
		totalMs += l.ResponseTime

		if now.Sub(l.Timestamp) < perMinuteWindow {
			stats.RequestsPerMinute++
		}
		if now.Sub(l.Timestamp) < activeWindow {
			clients[l.IP] = struct{}{}
			if l.APIKey != "" {
				keyUses[l.IP+"|"+l.APIKey] = struct{}{}
			}
		}
	}

	for path, count := range byPath {
		stats.TopEndpoints = append(stats.TopEndpoints, EndpointCount{Path: path, Count: count})
	}
	sort.Slice(stats.TopEndpoints, func(i, j int) bool {
		if stats.TopEndpoints[i].Count != stats.TopEndpoints[j].Count {
			return stats.TopEndpoints[i].Count > stats.TopEndpoints[j].Count
		}
		return stats.TopEndpoints[i].Path < stats.TopEndpoints[j].Path
	})
	if len(stats.TopEndpoints) > topEndpointsMax {
		stats.TopEndpoints = stats.TopEndpoints[:topEndpointsMax]
	}

	stats.ErrorRate = round2(100 * float64(errors) / float64(len(logs)))
	stats.AvgResponseTime = round2(totalMs / float64(len(logs)))
	stats.ActiveClients = len(clients)
	stats.ActiveKeyUses = len(keyUses)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

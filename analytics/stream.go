package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// streamInterval is the cadence of live snapshot pushes.
const streamInterval = 5 * time.Second

// Streamer pushes analytics snapshots to SSE subscribers. Each subscriber
// gets the current snapshot immediately and a fresh one every 5 seconds
// until its connection closes; subscribers are independent.
type Streamer struct {
	buffer   *Buffer
	hits     func() int64
	interval time.Duration
}

// NewStreamer builds a streamer over buffer. hits supplies the live
// rate-limit hit counter for each snapshot.
func NewStreamer(buffer *Buffer, hits func() int64) *Streamer {
	return &Streamer{buffer: buffer, hits: hits, interval: streamInterval}
}

// Handler returns the SSE endpoint. Events are "data: <json>" frames with
// a blank-line terminator; buffering is disabled end to end so frames
// reach the client as they are produced.
func (s *Streamer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !s.emit(c, flusher) {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
				if !s.emit(c, flusher) {
					return
				}
			}
		}
	}
}

func (s *Streamer) emit(c *gin.Context, flusher http.Flusher) bool {
	payload, err := json.Marshal(s.buffer.Snapshot(s.hits()))
	if err != nil {
		log.Error().Err(err).Msg("Analytics snapshot marshal failed")
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

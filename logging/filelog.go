package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxLines is the per-file line cap before rotation.
const DefaultMaxLines = 10_000

// Request is one completed request to be written to the JSONL log.
type Request struct {
	Method        string
	Path          string
	StatusCode    int
	ResponseTime  float64 // milliseconds
	ClientID      string
	IP            string
	Authenticated bool
}

// fileRecord is the on-disk JSONL schema.
type fileRecord struct {
	Timestamp     string  `json:"timestamp"`
	Level         string  `json:"level"`
	Service       string  `json:"service"`
	Method        string  `json:"method"`
	Path          string  `json:"path"`
	StatusCode    int     `json:"statusCode"`
	ResponseTime  float64 `json:"responseTime"`
	RequestID     string  `json:"requestId"`
	ClientID      string  `json:"clientId"`
	IP            string  `json:"ip"`
	Authenticated bool    `json:"authenticated"`
}

// FileLogger appends request records to JSONL files named
// {service}_{YYYY-MM-DD}_{HHmmss}_{NNN}.log, rotating on date change or
// when the line cap is reached. Write failures are logged to stderr and
// never fail a request.
type FileLogger struct {
	mu       sync.Mutex
	dir      string
	service  string
	maxLines int
	now      func() time.Time

	file  *os.File
	lines int
	day   string
	index int
}

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithMaxLines overrides the per-file line cap.
func WithMaxLines(n int) FileOption {
	return func(l *FileLogger) { l.maxLines = n }
}

// WithFileClock overrides the time source for tests.
func WithFileClock(now func() time.Time) FileOption {
	return func(l *FileLogger) { l.now = now }
}

// NewFileLogger creates dir if needed and returns a logger for service.
func NewFileLogger(dir, service string, opts ...FileOption) (*FileLogger, error) {
	l := &FileLogger{
		dir:      dir,
		service:  service,
		maxLines: DefaultMaxLines,
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: creating log dir: %w", err)
	}
	return l, nil
}

// Log writes one record. The level derives from the status code:
// <400 info, <500 warn, 503 fatal, any other 5xx error.
func (l *FileLogger) Log(r Request) {
	now := l.now()
	rec := fileRecord{
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		Level:         levelFor(r.StatusCode),
		Service:       l.service,
		Method:        r.Method,
		Path:          r.Path,
		StatusCode:    r.StatusCode,
		ResponseTime:  r.ResponseTime,
		RequestID:     uuid.NewString(),
		ClientID:      r.ClientID,
		IP:            r.IP,
		Authenticated: r.Authenticated,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("Request log marshal failed")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.rotateIfNeeded(now); err != nil {
		log.Error().Err(err).Msg("Request log rotation failed")
		return
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		log.Error().Err(err).Msg("Request log write failed")
		return
	}
	l.lines++
}

func levelFor(status int) string {
	switch {
	case status < 400:
		return "info"
	case status < 500:
		return "warn"
	case status == 503:
		return "fatal"
	default:
		return "error"
	}
}

func (l *FileLogger) rotateIfNeeded(now time.Time) error {
	day := now.Format("2006-01-02")
	if l.file != nil && day == l.day && l.lines < l.maxLines {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if day != l.day {
		l.day = day
		l.index = 0
	}
	l.index++

	name := fmt.Sprintf("%s_%s_%s_%03d.log", l.service, l.day, now.Format("150405"), l.index)
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.lines = 0
	return nil
}

// Close flushes and closes the current file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

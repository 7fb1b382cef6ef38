package device

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// deviceFile is the on-disk schema: {"devices":[...]}, pretty-printed.
type deviceFile struct {
	Devices []Entry `json:"devices"`
}

// loadDevices reads the registry file, creating the parent directory so
// the first save succeeds. A missing file is an empty registry.
func loadDevices(path string) ([]Entry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var file deviceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Devices, nil
}

// saveDevices writes the registry atomically: marshal to a temp file in
// the same directory, then rename over the target. Failures are logged
// and swallowed — the in-memory map is authoritative and the next
// mutation retries.
func saveDevices(path string, entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RegisteredAt.Before(entries[j].RegisteredAt)
	})
	data, err := json.MarshalIndent(deviceFile{Devices: entries}, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Device registry marshal failed")
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".devices-*.json")
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Device registry save failed")
		return
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		log.Error().AnErr("write", werr).AnErr("close", cerr).Msg("Device registry save failed")
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		log.Error().Err(err).Str("path", path).Msg("Device registry save failed")
	}
}

// debouncer coalesces bursts of mutations into a single trailing-edge
// write: each schedule resets the timer, and fn runs once the quiet
// interval elapses. close cancels any pending timer and runs fn
// synchronously.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	fn     func()
	closed bool
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fn()
}

// Package device maintains the TOTP device registry: browser-generated
// UUIDs paired with server-issued shared secrets, persisted to a JSON
// file with debounced writes.
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/gatekeep/auth"
)

const (
	deviceTTL       = 7 * 24 * time.Hour
	attemptWindow   = time.Minute
	maxAttempts     = 10
	maxDevicesPerIP = 30
	sweepInterval   = time.Hour
	saveDelay       = 2 * time.Second
)

// Registration failure modes, mapped to HTTP statuses by the gateway.
var (
	ErrInvalidBrowserID = errors.New("browserId must be a UUIDv4")
	ErrTooManyAttempts  = errors.New("Too many registration attempts")
	ErrDeviceLimit      = errors.New("Device limit reached for this IP")
)

// Entry is one registered device. Revoked entries are tombstoned
// (Active=false) and removed by the hourly sweep rather than on revoke,
// so audit lookups stay valid in between.
type Entry struct {
	BrowserID    string    `json:"browserId"`
	SharedSecret string    `json:"sharedSecret"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	RegisteredAt time.Time `json:"registeredAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastSeen     time.Time `json:"lastSeen"`
	LastIP       string    `json:"lastIp"`
	Active       bool      `json:"active"`
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Registry is the in-memory device map plus its persistence machinery.
// The map is authoritative; file I/O failures are logged and swallowed.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Entry
	attempts map[string][]time.Time

	now   func() time.Time
	saver *debouncer
	stop  chan struct{}
	done  chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry loads any persisted devices from path (creating the parent
// directory if needed) and starts the hourly expiry sweep. Call Close to
// stop the sweep and flush pending writes.
func NewRegistry(path string, opts ...Option) (*Registry, error) {
	r := &Registry{
		devices:  make(map[string]*Entry),
		attempts: make(map[string][]time.Time),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}

	entries, err := loadDevices(path)
	if err != nil {
		return nil, fmt.Errorf("device: loading registry: %w", err)
	}
	for _, e := range entries {
		entry := e
		r.devices[entry.BrowserID] = &entry
	}
	log.Info().Int("devices", len(r.devices)).Str("path", path).Msg("Device registry loaded")

	r.saver = newDebouncer(saveDelay, func() { saveDevices(path, r.snapshot()) })
	go r.sweepLoop()
	return r, nil
}

// Register creates or refreshes the entry for browserID.
//
// The registration attempt is recorded before the velocity cap is
// evaluated, so rejected attempts still count against the next caller.
// Re-registering an active, unexpired device is idempotent: it returns
// the same shared secret and pushes the expiry out another 7 days.
func (r *Registry) Register(browserID, ip, userAgent string) (Entry, error) {
	id, err := uuid.Parse(browserID)
	if err != nil || id.Version() != 4 {
		return Entry{}, ErrInvalidBrowserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	attempts := pruneAttempts(r.attempts[ip], now)
	attempts = append(attempts, now)
	r.attempts[ip] = attempts
	if len(attempts) > maxAttempts {
		return Entry{}, ErrTooManyAttempts
	}

	active := 0
	for _, e := range r.devices {
		if e.IP == ip && e.Active && !e.expired(now) {
			active++
		}
	}
	if active >= maxDevicesPerIP {
		return Entry{}, ErrDeviceLimit
	}

	if e, ok := r.devices[browserID]; ok && e.Active && !e.expired(now) {
		e.ExpiresAt = now.Add(deviceTTL)
		e.LastSeen = now
		e.LastIP = ip
		r.saver.schedule()
		return *e, nil
	}

	entry := &Entry{
		BrowserID:    browserID,
		SharedSecret: auth.NewSecret(),
		IP:           ip,
		UserAgent:    userAgent,
		RegisteredAt: now,
		ExpiresAt:    now.Add(deviceTTL),
		LastSeen:     now,
		LastIP:       ip,
		Active:       true,
	}
	r.devices[browserID] = entry
	r.saver.schedule()
	return *entry, nil
}

// Get returns the entry for browserID if it is present, active, and
// unexpired. Expired entries are removed eagerly and the removal is
// persisted.
func (r *Registry) Get(browserID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[browserID]
	if !ok {
		return Entry{}, false
	}
	if e.expired(r.now()) {
		delete(r.devices, browserID)
		r.saver.schedule()
		return Entry{}, false
	}
	if !e.Active {
		return Entry{}, false
	}
	return *e, true
}

// Lookup implements auth.DeviceDirectory.
func (r *Registry) Lookup(browserID string) (string, bool) {
	e, ok := r.Get(browserID)
	if !ok {
		return "", false
	}
	return e.SharedSecret, true
}

// Touch implements auth.DeviceDirectory: records a successful TOTP use.
func (r *Registry) Touch(browserID, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[browserID]
	if !ok {
		return
	}
	e.LastSeen = r.now()
	if ip != "" {
		e.LastIP = ip
	}
	r.saver.schedule()
}

// Revoke tombstones the device; the sweep removes it once expired.
func (r *Registry) Revoke(browserID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[browserID]
	if !ok {
		return false
	}
	e.Active = false
	r.saver.schedule()
	return true
}

// Len returns the number of stored entries, including tombstones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Close stops the sweep loop, cancels any pending debounced write, and
// flushes the registry synchronously.
func (r *Registry) Close() error {
	close(r.stop)
	<-r.done
	r.saver.close()
	return nil
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

// sweep removes expired entries and persists if any were dropped.
func (r *Registry) sweep() {
	r.mu.Lock()
	removed := 0
	now := r.now()
	for id, e := range r.devices {
		if e.expired(now) {
			delete(r.devices, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Device expiry sweep")
		r.saver.schedule()
	}
}

// snapshot copies the entries so persistence never does I/O under the lock.
func (r *Registry) snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.devices))
	for _, e := range r.devices {
		out = append(out, *e)
	}
	return out
}

func pruneAttempts(ts []time.Time, now time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < attemptWindow {
			out = append(out, t)
		}
	}
	return out
}

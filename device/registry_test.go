package device

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *testClock, string) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "devices.json")
	r, err := NewRegistry(path, WithClock(clock.now))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, clock, path
}

func TestRegisterNewDevice(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	id := uuid.NewString()

	entry, err := r.Register(id, "203.0.113.7", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, id, entry.BrowserID)
	assert.Len(t, entry.SharedSecret, 64)
	assert.True(t, entry.Active)
	assert.Equal(t, clock.now().Add(7*24*time.Hour), entry.ExpiresAt)

	secret, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, entry.SharedSecret, secret)
}

func TestRegisterRejectsBadBrowserID(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	for _, id := range []string{"", "not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		_, err := r.Register(id, "203.0.113.7", "ua")
		assert.ErrorIs(t, err, ErrInvalidBrowserID, "id %q", id)
	}
}

func TestReRegistrationIsIdempotent(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	id := uuid.NewString()

	first, err := r.Register(id, "203.0.113.7", "ua")
	require.NoError(t, err)

	clock.advance(time.Hour)
	second, err := r.Register(id, "198.51.100.1", "ua")
	require.NoError(t, err)

	assert.Equal(t, first.SharedSecret, second.SharedSecret, "re-registration keeps the secret")
	assert.Equal(t, clock.now().Add(7*24*time.Hour), second.ExpiresAt, "expiry is refreshed")
	assert.Equal(t, "198.51.100.1", second.LastIP)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrationVelocityCap(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	for i := 0; i < maxAttempts; i++ {
		_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
		require.NoError(t, err, "attempt %d", i+1)
	}

	_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Another IP is unaffected.
	_, err = r.Register(uuid.NewString(), "198.51.100.1", "ua")
	assert.NoError(t, err)
}

func TestRegistrationVelocityWindowSlides(t *testing.T) {
	r, clock, _ := newTestRegistry(t)

	for i := 0; i < maxAttempts; i++ {
		_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
		require.NoError(t, err)
	}
	_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
	require.ErrorIs(t, err, ErrTooManyAttempts)

	clock.advance(attemptWindow + time.Second)
	_, err = r.Register(uuid.NewString(), "203.0.113.7", "ua")
	assert.NoError(t, err, "attempts outside the window are pruned")
}

func TestPerIPDeviceCap(t *testing.T) {
	r, clock, _ := newTestRegistry(t)

	// Spread registrations out so the velocity cap never trips.
	for i := 0; i < maxDevicesPerIP; i++ {
		_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
		require.NoError(t, err, "device %d", i+1)
		clock.advance(7 * time.Second)
	}

	_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
	assert.ErrorIs(t, err, ErrDeviceLimit)

	_, err = r.Register(uuid.NewString(), "198.51.100.1", "ua")
	assert.NoError(t, err, "cap is per IP")
}

func TestExpiredDeviceRemovedOnLookup(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	id := uuid.NewString()

	_, err := r.Register(id, "203.0.113.7", "ua")
	require.NoError(t, err)

	clock.advance(7*24*time.Hour + time.Second)
	_, ok := r.Get(id)
	assert.False(t, ok, "expired device looks absent")
	assert.Equal(t, 0, r.Len(), "expired entry is removed eagerly")
}

func TestRevokedDeviceLooksAbsent(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	id := uuid.NewString()

	_, err := r.Register(id, "203.0.113.7", "ua")
	require.NoError(t, err)

	require.True(t, r.Revoke(id))
	_, ok := r.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len(), "tombstone is retained until the sweep")
	assert.False(t, r.Revoke(uuid.NewString()), "unknown id")
}

func TestSweepRemovesExpired(t *testing.T) {
	r, clock, _ := newTestRegistry(t)

	_, err := r.Register(uuid.NewString(), "203.0.113.7", "ua")
	require.NoError(t, err)
	clock.advance(7*24*time.Hour + time.Second)

	r.sweep()
	assert.Equal(t, 0, r.Len())
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "nested", "devices.json")

	r, err := NewRegistry(path, WithClock(clock.now))
	require.NoError(t, err)

	id := uuid.NewString()
	entry, err := r.Register(id, "203.0.113.7", "ua")
	require.NoError(t, err)
	require.NoError(t, r.Close(), "close flushes synchronously")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"devices\""), "file is pretty-printed")

	var file struct {
		Devices []Entry `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Devices, 1)
	assert.Equal(t, entry.SharedSecret, file.Devices[0].SharedSecret)

	reloaded, err := NewRegistry(path, WithClock(clock.now))
	require.NoError(t, err)
	defer reloaded.Close()

	secret, ok := reloaded.Lookup(id)
	require.True(t, ok, "reloaded registry resolves the device")
	assert.Equal(t, entry.SharedSecret, secret)
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	r, clock, _ := newTestRegistry(t)
	id := uuid.NewString()

	_, err := r.Register(id, "203.0.113.7", "ua")
	require.NoError(t, err)

	clock.advance(time.Minute)
	r.Touch(id, "198.51.100.1")

	e, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, clock.now(), e.LastSeen)
	assert.Equal(t, "198.51.100.1", e.LastIP)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewRegistry(path)
	assert.Error(t, err)
}

func TestDebouncerCoalesces(t *testing.T) {
	fired := make(chan struct{}, 10)
	d := newDebouncer(50*time.Millisecond, func() { fired <- struct{}{} })

	for i := 0; i < 5; i++ {
		d.schedule()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced fn never fired")
	}
	select {
	case <-fired:
		t.Fatal("burst of schedules fired more than once")
	case <-time.After(150 * time.Millisecond):
	}

	d.close()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("close must flush")
	}
}

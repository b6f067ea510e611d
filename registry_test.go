package reservedport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/reserved-port/internal/ledger"
	"github.com/mmr-tortoise/reserved-port/internal/model"
	"github.com/mmr-tortoise/reserved-port/internal/port"
)

// sequenceFinder returns the queued ports in order, then nothing.
type sequenceFinder struct {
	mu    sync.Mutex
	ports []uint16
}

func (f *sequenceFinder) FindPort() (uint16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ports) == 0 {
		return 0, false
	}
	p := f.ports[0]
	f.ports = f.ports[1:]
	return p, true
}

// newTestRegistry builds a registry with the real finder chain and no
// exported metrics.
func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultConfig(), opts...)
	require.NoError(t, err)
	return r
}

// poison panics inside the registry lock, as a buggy holder would.
func poison(t *testing.T, r *Registry) {
	t.Helper()
	assert.Panics(t, func() {
		_ = r.withLedger(func(*ledger.Ledger) { panic("boom") })
	})
}

// TestNewRegistry_InvalidConfig verifies that a bad configuration is
// rejected up front.
func TestNewRegistry_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Range = Range{Min: 9000, Max: 8000}

	_, err := NewRegistry(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port range")
}

// TestReserve_Port verifies that an explicit reservation succeeds.
func TestReserve_Port(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Reserve(1230))

	reserved, err := r.IsReserved(1230)
	require.NoError(t, err)
	assert.True(t, reserved)
}

// TestReserve_SamePortTwice verifies that reserving the same port twice in a
// row succeeds both times and leaves a single entry in the in-use set.
func TestReserve_SamePortTwice(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Reserve(1230))
	require.NoError(t, r.Reserve(1230))

	ports, err := r.Reserved()
	require.NoError(t, err)
	assert.Equal(t, []uint16{1230}, ports)
}

// TestReserve_RandomPortByHand verifies that a port obtained from Random can
// also be reserved explicitly.
func TestReserve_RandomPortByHand(t *testing.T) {
	r := newTestRegistry(t)

	rp, err := r.Random()
	require.NoError(t, err)
	defer rp.Release()

	assert.NoError(t, r.Reserve(rp.Port()))
}

// TestReserve_AfterRelease verifies that once a handle is released its port
// is no longer reserved and can be reserved again.
func TestReserve_AfterRelease(t *testing.T) {
	r := newTestRegistry(t)

	rp, err := r.Random()
	require.NoError(t, err)
	p := rp.Port()
	rp.Release()

	reserved, err := r.IsReserved(p)
	require.NoError(t, err)
	assert.False(t, reserved, "released port should leave the in-use set")

	assert.NoError(t, r.Reserve(p))
}

// TestRandom_Succeeds verifies that a random reservation yields a port that
// is recorded as reserved and was free on the host.
func TestRandom_Succeeds(t *testing.T) {
	r := newTestRegistry(t)

	rp, err := r.Random()
	require.NoError(t, err)
	defer rp.Release()

	assert.NotZero(t, rp.Port())
	assert.True(t, port.NewScanner().IsPortAvailable(rp.Port()),
		"nothing has bound port %d yet, so it should still be free", rp.Port())

	reserved, err := r.IsReserved(rp.Port())
	require.NoError(t, err)
	assert.True(t, reserved)
}

// TestRandom_DistinctPorts verifies that two reservations held at the same
// time never share a port, and that both are in the in-use set.
func TestRandom_DistinctPorts(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Random()
	require.NoError(t, err)
	defer first.Release()
	second, err := r.Random()
	require.NoError(t, err)
	defer second.Release()

	assert.NotEqual(t, first.Port(), second.Port())

	ports, err := r.Reserved()
	require.NoError(t, err)
	assert.Contains(t, ports, first.Port())
	assert.Contains(t, ports, second.Port())
}

// TestRandom_ReusesReleasedPort verifies with a deterministic finder that a
// released port is handed out again rather than skipped.
func TestRandom_ReusesReleasedPort(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{ports: []uint16{8000, 8000}}))

	rp, err := r.Random()
	require.NoError(t, err)
	rp.Release()

	again, err := r.Random()
	require.NoError(t, err)
	defer again.Release()
	assert.Equal(t, uint16(8000), again.Port())
}

// TestRandom_Concurrent hammers one registry from many goroutines and checks
// that no port is handed out twice while the handles are alive.
func TestRandom_Concurrent(t *testing.T) {
	r := newTestRegistry(t)

	const workers = 16
	handles := make([]*ReservedPort, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			rp, err := r.Random()
			if err != nil {
				return err
			}
			handles[i] = rp
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[uint16]bool, workers)
	for _, rp := range handles {
		assert.False(t, seen[rp.Port()], "port %d was handed out twice", rp.Port())
		seen[rp.Port()] = true
	}

	for _, rp := range handles {
		rp.Release()
	}
	ports, err := r.Reserved()
	require.NoError(t, err)
	assert.Empty(t, ports)
}

// TestRandom_Exhausted verifies that running out of ports is reported as
// ErrPortsExhausted and produces no handle.
func TestRandom_Exhausted(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{}))

	rp, err := r.Random()
	assert.Nil(t, rp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortsExhausted)
	assert.NotErrorIs(t, err, ErrLockUnavailable)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, model.KindPortsExhausted, typed.Kind)
}

// TestRandom_RangeFullyHeld verifies that Random still returns once every
// port of a small range is held. The scanner keeps wrapping over ports that
// are free on the OS but reserved here; the registry must move on to the OS
// query instead of spinning with the lock held.
func TestRandom_RangeFullyHeld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Range = Range{Min: 41000, Max: 41004}
	cfg.WrapThreshold = 2
	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	held := make(map[uint16]bool)
	for i := 0; i < cfg.Range.Size(); i++ {
		rp, err := r.Random()
		require.NoError(t, err)
		defer rp.Release()
		held[rp.Port()] = true
	}

	type result struct {
		rp  *ReservedPort
		err error
	}
	done := make(chan result, 1)
	go func() {
		rp, err := r.Random()
		done <- result{rp, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			assert.ErrorIs(t, res.err, ErrPortsExhausted)
			return
		}
		defer res.rp.Release()
		assert.False(t, held[res.rp.Port()], "port %d is already held", res.rp.Port())
	case <-time.After(5 * time.Second):
		t.Fatal("Random did not return with the whole range held")
	}

	// The lock must be free again for everyone else.
	_, err = r.Reserved()
	assert.NoError(t, err)
}

// TestReserve_HeldPortFreedByRelease pins down that explicit and handle
// reservations share one set: releasing a handle frees its port even if it
// was also reserved explicitly in the meantime.
func TestReserve_HeldPortFreedByRelease(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{ports: []uint16{8000}}))

	rp, err := r.Random()
	require.NoError(t, err)
	require.NoError(t, r.Reserve(rp.Port()))

	rp.Release()
	reserved, err := r.IsReserved(8000)
	require.NoError(t, err)
	assert.False(t, reserved)

	require.NoError(t, r.Reserve(8000))
	reserved, err = r.IsReserved(8000)
	require.NoError(t, err)
	assert.True(t, reserved)
}

// TestRegistry_Poisoned verifies that a panic while the lock is held makes
// every later operation fail with ErrLockUnavailable instead of silently
// working on a possibly inconsistent ledger.
func TestRegistry_Poisoned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newTestRegistry(t, WithLogger(zap.New(core)))

	poison(t, r)

	_, err := r.Random()
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.Contains(t, err.Error(), "boom")

	assert.ErrorIs(t, r.Reserve(1230), ErrLockUnavailable)

	_, err = r.Reserved()
	assert.ErrorIs(t, err, ErrLockUnavailable)

	assert.Equal(t, 1, logs.FilterMessage("registry lock poisoned").Len())
}

// TestRelease_PoisonedIsFatal verifies that releasing into a poisoned
// registry panics rather than leaking the reservation quietly.
func TestRelease_PoisonedIsFatal(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{ports: []uint16{8000}}))

	rp, err := r.Random()
	require.NoError(t, err)

	poison(t, r)

	assert.PanicsWithError(t,
		"reservedport: cannot release port 8000: reservedport: registry lock poisoned: panic while holding registry lock: boom",
		rp.Release)
}

// TestRelease_Idempotent verifies that a second Release is a no-op and does
// not free a port that has since been reserved by someone else.
func TestRelease_Idempotent(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{ports: []uint16{8000}}))

	rp, err := r.Random()
	require.NoError(t, err)
	rp.Release()

	require.NoError(t, r.Reserve(8000))
	rp.Release()

	reserved, err := r.IsReserved(8000)
	require.NoError(t, err)
	assert.True(t, reserved, "a stale handle must not free a port it no longer owns")
}

// TestReservedPort_Accessors verifies the formatting helpers.
func TestReservedPort_Accessors(t *testing.T) {
	r := newTestRegistry(t, withFinder(&sequenceFinder{ports: []uint16{8123}}))

	rp, err := r.Random()
	require.NoError(t, err)
	defer rp.Release()

	assert.Equal(t, uint16(8123), rp.Port())
	assert.Equal(t, ":8123", rp.Addr())
	assert.Equal(t, "8123", rp.String())
}

// TestRegistry_Metrics verifies that WithRegisterer exports the ledger's
// collectors.
func TestRegistry_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRegistry(t, WithRegisterer(reg), withFinder(&sequenceFinder{ports: []uint16{8000}}))

	rp, err := r.Random()
	require.NoError(t, err)
	rp.Release()

	count, err := testutil.GatherAndCount(reg,
		"reservedport_reservations_total", "reservedport_releases_total", "reservedport_in_use")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// TestNewRegistry_SharedRegisterer verifies that a second registry cannot
// register its metrics under names the first already exports. Without the
// error its collectors would be silently missing from scrapes.
func TestNewRegistry_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = newTestRegistry(t, WithRegisterer(reg))

	r, err := NewRegistry(DefaultConfig(), WithRegisterer(reg))
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register ledger metrics")

	// A prefixed registerer keeps the names apart.
	wrapped := prometheus.WrapRegistererWithPrefix("second_", reg)
	_, err = NewRegistry(DefaultConfig(), WithRegisterer(wrapped))
	assert.NoError(t, err)
}

package reservedport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/reserved-port/internal/ledger"
	"github.com/mmr-tortoise/reserved-port/internal/model"
	"github.com/mmr-tortoise/reserved-port/internal/port"
)

// Registry is a ledger of reserved ports behind a single mutex.
//
// Every operation holds the lock for its whole duration, including the
// socket probing a random reservation performs. A slow scan therefore
// delays other callers; no finer locking is attempted.
//
// Go mutexes do not record that a holder panicked. Registry does: a panic
// raised while the lock is held poisons the registry, and every later
// operation fails with ErrLockUnavailable.
type Registry struct {
	mu sync.Mutex
	// poisoned is set, under mu, to the cause of the first panic raised
	// while mu was held.
	poisoned error

	ledger *ledger.Ledger
	cfg    Config
	log    *zap.Logger
}

type registryOptions struct {
	log    *zap.Logger
	reg    prometheus.Registerer
	finder port.Finder
}

// Option configures a Registry.
type Option func(*registryOptions)

// WithLogger sets the logger. The default is zap.L() at construction time.
func WithLogger(log *zap.Logger) Option {
	return func(o *registryOptions) {
		o.log = log
	}
}

// WithRegisterer exports the registry's metrics through reg. Each registry
// needs its own registerer, or one wrapped with
// prometheus.WrapRegistererWithPrefix; NewRegistry fails if the metric names
// are already taken.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *registryOptions) {
		o.reg = reg
	}
}

// withFinder replaces the scanning/OS-query chain. Used by tests.
func withFinder(f port.Finder) Option {
	return func(o *registryOptions) {
		o.finder = f
	}
}

// NewRegistry creates a Registry from cfg.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reservedport: %w", err)
	}

	o := registryOptions{log: zap.L()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	finder := o.finder
	if finder == nil {
		finder = port.NewScanningWithFallback(port.NewScanner(),
			cfg.Range, cfg.OSQueryAttempts, cfg.WrapThreshold, o.log)
	}

	// One full pass over the range of reserved candidates is enough to know
	// the scanner has nothing new; after that the ledger moves on to the OS
	// query.
	l := ledger.New(finder,
		ledger.WithLogger(o.log),
		ledger.WithSkipLimit(cfg.Range.Size()),
	)
	if err := l.Register(o.reg); err != nil {
		return nil, fmt.Errorf("reservedport: %w", err)
	}

	return &Registry{
		ledger: l,
		cfg:    cfg,
		log:    o.log,
	}, nil
}

// Random reserves a port that is free on the host and not held by any other
// ReservedPort from this registry. The caller must Release it.
func (r *Registry) Random() (*ReservedPort, error) {
	var (
		p  uint16
		ok bool
	)
	if err := r.withLedger(func(l *ledger.Ledger) {
		p, ok = l.ReserveRandomPort()
	}); err != nil {
		return nil, err
	}

	if !ok {
		return nil, model.NewError(model.KindPortsExhausted,
			fmt.Sprintf("reservedport: no free port in %s and none from the OS", r.cfg.Range))
	}

	r.log.Debug("reserved port",
		zap.Uint16("port", p),
		zap.Bool("inRange", r.cfg.Range.Contains(p)),
	)
	return newReservedPort(r, p), nil
}

// Reserve permanently marks p as taken, so Random never returns it. This is
// for ports the caller bound by other means. Reserving a port twice is
// harmless. The only possible error is ErrLockUnavailable.
//
// Explicit and handle reservations share one set. If p is currently held by
// a ReservedPort, releasing that handle frees p as well, permanent or not;
// call Reserve again after the release to keep it out of circulation.
func (r *Registry) Reserve(p uint16) error {
	return r.withLedger(func(l *ledger.Ledger) {
		l.ReservePort(p)
	})
}

// IsReserved reports whether p is currently reserved.
func (r *Registry) IsReserved(p uint16) (bool, error) {
	var reserved bool
	err := r.withLedger(func(l *ledger.Ledger) {
		reserved = l.IsReserved(p)
	})
	return reserved, err
}

// Reserved returns the currently reserved ports in ascending order.
func (r *Registry) Reserved() ([]uint16, error) {
	var ports []uint16
	err := r.withLedger(func(l *ledger.Ledger) {
		ports = l.Ports()
	})
	return ports, err
}

// Config returns the configuration the registry was built from.
func (r *Registry) Config() Config {
	return r.cfg
}

// release frees p. Failing to take the lock here would leave p reserved
// forever with nothing to report the error to, so it panics instead.
func (r *Registry) release(p uint16) {
	err := r.withLedger(func(l *ledger.Ledger) {
		l.FreePort(p)
	})
	if err != nil {
		panic(fmt.Errorf("reservedport: cannot release port %d: %w", p, err))
	}
	r.log.Debug("released port", zap.Uint16("port", p))
}

// withLedger runs fn with the lock held. A panic in fn poisons the registry
// before the lock is released and is then re-raised.
func (r *Registry) withLedger(fn func(l *ledger.Ledger)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned != nil {
		return model.WrapError(model.KindLockUnavailable,
			"reservedport: registry lock poisoned", r.poisoned)
	}

	defer func() {
		if v := recover(); v != nil {
			r.poisoned = fmt.Errorf("panic while holding registry lock: %v", v)
			r.log.Warn("registry lock poisoned", zap.Any("panic", v))
			panic(v)
		}
	}()

	fn(r.ledger)
	return nil
}

// defaultRegistry backs the package-level functions.
var defaultRegistry atomic.Pointer[Registry]

func init() {
	r, err := NewRegistry(DefaultConfig())
	if err != nil {
		panic(fmt.Errorf("reservedport: default config: %w", err))
	}
	defaultRegistry.Store(r)
}

// Default returns the process-wide registry used by Random and Reserve.
func Default() *Registry {
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry, e.g. with one built from a
// config file or with a logger attached. Handles obtained earlier keep
// releasing into the registry they came from.
func SetDefault(r *Registry) {
	if r == nil {
		panic("reservedport: SetDefault called with nil registry")
	}
	defaultRegistry.Store(r)
}

// Random reserves a port from the process-wide registry.
func Random() (*ReservedPort, error) {
	return Default().Random()
}

// Reserve permanently reserves p in the process-wide registry.
func Reserve(p uint16) error {
	return Default().Reserve(p)
}

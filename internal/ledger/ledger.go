package ledger

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/reserved-port/internal/model"
	"github.com/mmr-tortoise/reserved-port/internal/port"
)

// Ledger hands out ports from a Finder and refuses to hand out a port that
// is already in its in-use set.
type Ledger struct {
	// finder produces candidate ports. It is consulted repeatedly until a
	// candidate outside the in-use set appears or it runs dry.
	finder port.Finder

	// inUse holds every port currently reserved through this ledger: ports
	// owned by a live handle and ports reserved explicitly.
	inUse map[uint16]struct{}

	// skipLimit is how many reserved candidates in a row one finder may
	// offer before the ledger stops asking it. Reserved ports are not bound,
	// so a wrapping scanner can keep finding them forever.
	skipLimit int

	log     *zap.Logger
	metrics *metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithSkipLimit sets how many reserved candidates in a row a finder may
// offer before the ledger gives up on it. Callers normally pass the size of
// the scanned range, so one full pass of skips is allowed. Values below 1
// are ignored.
func WithSkipLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.skipLimit = n
		}
	}
}

// New creates a Ledger that draws candidates from finder.
func New(finder port.Finder, opts ...Option) *Ledger {
	l := &Ledger{
		finder:    finder,
		inUse:     make(map[uint16]struct{}),
		skipLimit: model.DefaultRange().Size(),
		log:       zap.NewNop(),
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register exports the ledger's collectors through reg. It fails if reg
// already holds collectors with the same names, typically those of another
// ledger; nothing is left registered in that case.
func (l *Ledger) Register(reg prometheus.Registerer) error {
	return l.metrics.register(reg)
}

// ReserveRandomPort returns a port that is free on the OS and not already
// reserved, and marks it reserved. ok is false when the finder runs dry.
//
// Candidates that are already reserved are discarded and the finder is asked
// again. After skipLimit discards in a row the ledger stops asking that
// finder: if it is a port.Chain the search continues on its secondary,
// otherwise the call reports exhaustion.
func (l *Ledger) ReserveRandomPort() (uint16, bool) {
	candidate, ok := l.reserveFrom(l.finder)
	if !ok {
		l.metrics.exhausted.Inc()
		l.log.Debug("no unreserved port available", zap.Int("inUse", l.Len()))
		return 0, false
	}

	l.insert(candidate)
	l.metrics.reservations.WithLabelValues(kindRandom).Inc()
	return candidate, true
}

// reserveFrom asks f for candidates until one is not reserved.
func (l *Ledger) reserveFrom(f port.Finder) (uint16, bool) {
	skipped := 0
	for {
		candidate, ok := f.FindPort()
		if !ok {
			return 0, false
		}

		if !l.IsReserved(candidate) {
			return candidate, true
		}

		l.log.Debug("skipping reserved port", zap.Uint16("port", candidate))
		skipped++
		if skipped < l.skipLimit {
			continue
		}

		// The finder keeps offering ports we hold. Asking again would only
		// repeat them, so move on to the next strategy if there is one.
		chain, isChain := f.(port.Chain)
		if !isChain {
			l.log.Debug("finder only offers reserved ports", zap.Int("skipped", skipped))
			return 0, false
		}
		l.log.Debug("finder only offers reserved ports, using secondary", zap.Int("skipped", skipped))
		return l.reserveFrom(chain.Secondary())
	}
}

// ReservePort marks p as reserved. Reserving a port that is already
// reserved is a no-op.
func (l *Ledger) ReservePort(p uint16) {
	l.insert(p)
	l.metrics.reservations.WithLabelValues(kindExplicit).Inc()
}

// FreePort removes p from the in-use set. Freeing a port that is not
// reserved is a no-op.
//
// The set does not distinguish how a port was reserved: freeing a port that
// was both handed out and reserved explicitly removes it entirely.
func (l *Ledger) FreePort(p uint16) {
	if !l.IsReserved(p) {
		return
	}
	delete(l.inUse, p)
	l.metrics.releases.Inc()
	l.metrics.inUse.Set(float64(l.Len()))
}

// IsReserved reports whether p is in the in-use set.
func (l *Ledger) IsReserved(p uint16) bool {
	_, ok := l.inUse[p]
	return ok
}

// Len returns the number of reserved ports.
func (l *Ledger) Len() int {
	return len(l.inUse)
}

// Ports returns the reserved ports in ascending order.
func (l *Ledger) Ports() []uint16 {
	ports := make([]uint16, 0, len(l.inUse))
	for p := range l.inUse {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// insert adds p and keeps the gauge in step. Map assignment makes repeated
// inserts harmless.
func (l *Ledger) insert(p uint16) {
	l.inUse[p] = struct{}{}
	l.metrics.inUse.Set(float64(l.Len()))
}

package port

import (
	"go.uber.org/zap"

	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// FallbackFinder tries a primary Finder and consults a secondary one only
// when the primary has nothing to offer.
//
// The standard composition is a ScanningFinder backed by an OSQueryFinder:
// scanning gives predictable, low-numbered ports, and the OS query still
// produces a port when the scanned range is fully occupied.
type FallbackFinder struct {
	primary   Finder
	secondary Finder
	log       *zap.Logger
}

// NewFallbackFinder creates a FallbackFinder. A nil logger disables logging.
func NewFallbackFinder(primary, secondary Finder, log *zap.Logger) *FallbackFinder {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackFinder{
		primary:   primary,
		secondary: secondary,
		log:       log,
	}
}

// NewScanningWithFallback builds the standard finder chain: a ScanningFinder
// over rng, falling back to an OSQueryFinder, both probing through prober.
func NewScanningWithFallback(prober Prober, rng model.Range, attempts, wrapThreshold int, log *zap.Logger) *FallbackFinder {
	return NewFallbackFinder(
		NewScanningFinder(prober, rng, wrapThreshold, log),
		NewOSQueryFinder(prober, attempts, log),
		log,
	)
}

// FindPort returns the primary's port if it has one, otherwise the result of
// a single call to the secondary.
func (f *FallbackFinder) FindPort() (uint16, bool) {
	if port, ok := f.primary.FindPort(); ok {
		return port, true
	}

	f.log.Debug("primary finder exhausted, falling back")
	return f.secondary.FindPort()
}

// Secondary returns the finder consulted when the primary has nothing.
func (f *FallbackFinder) Secondary() Finder {
	return f.secondary
}

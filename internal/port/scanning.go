package port

import (
	"go.uber.org/zap"

	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// AvailabilityChecker is the subset of Prober the ScanningFinder needs.
type AvailabilityChecker interface {
	IsPortAvailable(port uint16) bool
}

// ScanningFinder walks a fixed range [Min, Max) in increasing order and
// returns the first available port after its cursor.
//
// Successive calls return strictly increasing ports until the cursor reaches
// Max. At that point the finder either gives up or wraps around to Min:
//
//   - if fewer than wrapThreshold ports were found since the last wrap, the
//     range is treated as exhausted and every later call returns nothing;
//   - otherwise the cursor resets to Min and the range is scanned once more,
//     since ports handed out on the previous pass may have been freed.
type ScanningFinder struct {
	checker       AvailabilityChecker
	rng           model.Range
	wrapThreshold int

	// last is the next port to try. Min <= last <= Max.
	last uint16
	// found counts ports returned since the last wraparound.
	found int

	log *zap.Logger
}

// NewScanningFinder creates a ScanningFinder over rng with its cursor at
// rng.Min. The range must satisfy rng.Validate. A nil logger disables logging.
func NewScanningFinder(checker AvailabilityChecker, rng model.Range, wrapThreshold int, log *zap.Logger) *ScanningFinder {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScanningFinder{
		checker:       checker,
		rng:           rng,
		wrapThreshold: wrapThreshold,
		last:          rng.Min,
		log:           log,
	}
}

// FindPort returns the next available port in the range, or false once the
// range is exhausted.
//
// A port returned here is only free at the moment it was probed. The finder
// keeps no record of it beyond the cursor, so once it wraps it may return the
// same port again; filtering ports that are still held is the caller's job.
func (f *ScanningFinder) FindPort() (uint16, bool) {
	// Resume where the previous call stopped.
	if port, ok := f.scanFrom(f.last); ok {
		return port, true
	}

	// Nothing left above the cursor. Park it at Max so a later call that
	// does not wrap skips the scan entirely.
	f.last = f.rng.Max

	if f.found < f.wrapThreshold {
		f.log.Debug("port scan exhausted",
			zap.Stringer("range", f.rng),
			zap.Int("found", f.found),
			zap.Int("wrapThreshold", f.wrapThreshold),
		)
		return 0, false
	}

	f.log.Debug("port scan wrapping around",
		zap.Stringer("range", f.rng),
		zap.Int("found", f.found),
	)
	f.last, f.found = f.rng.Min, 0

	// One more pass over the whole range. If that finds nothing either, the
	// cursor stays at Max and found stays at 0, so the next call gives up
	// without scanning.
	port, ok := f.scanFrom(f.last)
	if !ok {
		f.last = f.rng.Max
	}
	return port, ok
}

// scanFrom checks ports in [start, Max) and advances the cursor past the
// first available one. int arithmetic avoids wrapping at 65535.
func (f *ScanningFinder) scanFrom(start uint16) (uint16, bool) {
	for p := int(start); p < int(f.rng.Max); p++ {
		port := uint16(p)
		if !f.checker.IsPortAvailable(port) {
			continue
		}
		f.last = port + 1
		f.found++
		return port, true
	}
	return 0, false
}

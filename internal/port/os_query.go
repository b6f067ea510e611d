package port

import (
	"go.uber.org/zap"
)

// OSQueryFinder asks the OS for an ephemeral TCP port and accepts it only if
// the same number is also free on UDP.
//
// The OS guarantees the TCP port is unbound but says nothing about UDP, so a
// candidate can be rejected. The finder retries up to a fixed number of
// attempts and then reports exhaustion.
type OSQueryFinder struct {
	prober   Prober
	attempts int
	log      *zap.Logger
}

// NewOSQueryFinder creates an OSQueryFinder that makes at most attempts
// queries per FindPort call. A nil logger disables logging.
func NewOSQueryFinder(prober Prober, attempts int, log *zap.Logger) *OSQueryFinder {
	if log == nil {
		log = zap.NewNop()
	}
	return &OSQueryFinder{
		prober:   prober,
		attempts: attempts,
		log:      log,
	}
}

// FindPort returns the first OS-assigned TCP port that is also free on UDP.
func (f *OSQueryFinder) FindPort() (uint16, bool) {
	for i := 0; i < f.attempts; i++ {
		// The OS picks a different ephemeral port on most calls, so a
		// failed attempt is worth repeating.
		port, ok := f.prober.EphemeralTCPPort()
		if !ok {
			continue
		}
		// The TCP listener is already closed at this point. Only UDP still
		// needs checking; the OS made no promise about it.
		if f.prober.IsPortAvailableUDP(port) {
			return port, true
		}
	}

	f.log.Debug("os query exhausted", zap.Int("attempts", f.attempts))
	return 0, false
}

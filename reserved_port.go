package reservedport

import (
	"net"
	"runtime"
	"strconv"
	"sync"
)

// ReservedPort owns one port number from the moment Random returns it until
// Release is called. While it is held, no other ReservedPort from the same
// registry can be given the same number.
//
// Release should be deferred right after a successful Random. A handle that
// becomes unreachable without being released is released by a runtime
// cleanup once the garbage collector notices, so a forgotten Release delays
// reuse of the port but does not leak it.
type ReservedPort struct {
	port     uint16
	registry *Registry

	once    sync.Once
	cleanup runtime.Cleanup
}

func newReservedPort(r *Registry, p uint16) *ReservedPort {
	rp := &ReservedPort{port: p, registry: r}
	// The cleanup must not reference rp, or rp would never become unreachable.
	rp.cleanup = runtime.AddCleanup(rp, r.release, p)
	return rp
}

// Port returns the reserved port number.
func (rp *ReservedPort) Port() uint16 {
	return rp.port
}

// Addr returns ":<port>", ready for net.Listen or http.Server.Addr.
func (rp *ReservedPort) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(int(rp.port)))
}

// String returns the port number in decimal.
func (rp *ReservedPort) String() string {
	return strconv.Itoa(int(rp.port))
}

// Release returns the port to the registry. Calls after the first do
// nothing. It panics if the registry lock is poisoned, because the port
// could otherwise never be freed.
func (rp *ReservedPort) Release() {
	rp.once.Do(func() {
		rp.cleanup.Stop()
		rp.registry.release(rp.port)
	})
}

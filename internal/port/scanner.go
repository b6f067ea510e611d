package port

import (
	"net"
	"strconv"

	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// Prober is the OS-facing contract the finders depend on. Scanner is the
// real implementation; tests substitute fakes to make results deterministic.
type Prober interface {
	// IsPortAvailable reports whether port binds on all four
	// protocol/family combinations.
	IsPortAvailable(port uint16) bool

	// IsPortAvailableUDP reports whether port binds on UDP for both families.
	IsPortAvailableUDP(port uint16) bool

	// EphemeralTCPPort asks the OS for a free TCP port.
	EphemeralTCPPort() (uint16, bool)
}

// Scanner checks whether specific ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen / net.ListenPacket)
// to determine if a port is free. Every successful bind is closed before the
// method returns, so a check only occupies a socket for a moment.
//
// The struct is stateless and safe for concurrent use.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a port is free for both TCP and UDP, on both
// [::] and 0.0.0.0. The four binds are attempted in order (TCP before UDP,
// IPv6 before IPv4) and the first failure short-circuits the check.
//
// A failed bind is not an error: it simply means the port is not available.
// Port 0 is never available because it does not name a concrete port.
func (s *Scanner) IsPortAvailable(port uint16) bool {
	return s.canBindAll(port, model.AllBindings())
}

// IsPortAvailableTCP checks whether a port is free for TCP on both families.
func (s *Scanner) IsPortAvailableTCP(port uint16) bool {
	return s.canBindAll(port, model.BindingsFor(model.ProtocolTCP))
}

// IsPortAvailableUDP checks whether a port is free for UDP on both families.
func (s *Scanner) IsPortAvailableUDP(port uint16) bool {
	return s.canBindAll(port, model.BindingsFor(model.ProtocolUDP))
}

// EphemeralTCPPort binds a TCP listener to port 0 and returns the port the OS
// assigned. [::] is tried first; 0.0.0.0 is used when IPv6 is unavailable.
func (s *Scanner) EphemeralTCPPort() (uint16, bool) {
	for _, b := range model.BindingsFor(model.ProtocolTCP) {
		if port, ok := bindAndGetPort(b, 0); ok {
			return port, true
		}
	}
	return 0, false
}

// canBindAll reports whether port binds on every binding in turn.
func (s *Scanner) canBindAll(port uint16, bindings []model.Binding) bool {
	// Binding port 0 always succeeds because the OS picks a port for us,
	// which says nothing about whether port 0 itself is usable.
	if port == 0 {
		return false
	}
	for _, b := range bindings {
		// Each bind is closed before the next one starts, so the four
		// checks never hold more than one socket at a time.
		if _, ok := bindAndGetPort(b, port); !ok {
			return false
		}
	}
	return true
}

// bindAndGetPort binds a socket for the given binding and port, reads back
// the bound port, and closes the socket again. ok is false if the bind fails.
func bindAndGetPort(b model.Binding, port uint16) (uint16, bool) {
	// JoinHostPort adds the brackets an IPv6 literal needs ("[::]:8000").
	addr := net.JoinHostPort(b.Family.AnyAddr(), strconv.Itoa(int(port)))

	switch b.Protocol {
	case model.ProtocolTCP:
		// net.Listen creates a TCP listener. If the port is in use (or the
		// family is not supported on this host), it returns an error.
		listener, err := net.Listen(b.Network(), addr)
		if err != nil {
			return 0, false
		}
		// Always close the listener to release the port immediately.
		// The Close error is ignored: the probe result is already known.
		defer func() { _ = listener.Close() }()

		// Read the port back rather than trusting the request, so a port 0
		// bind reports what the OS actually assigned.
		tcpAddr, ok := listener.Addr().(*net.TCPAddr)
		if !ok {
			return 0, false
		}
		return uint16(tcpAddr.Port), true

	case model.ProtocolUDP:
		// UDP has no listeners; ListenPacket binds a datagram socket, which
		// fails the same way when the port is taken.
		conn, err := net.ListenPacket(b.Network(), addr)
		if err != nil {
			return 0, false
		}
		defer func() { _ = conn.Close() }()

		udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
		if !ok {
			return 0, false
		}
		return uint16(udpAddr.Port), true

	default:
		// Unknown protocol: treat as unavailable to fail safe.
		return 0, false
	}
}

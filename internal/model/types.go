// Package model defines the domain types for the reserved-port library.
//
// Every type here is a value. The library never persists state: the only
// bookkeeping lives in memory inside the ledger for the life of the process.
package model

import (
	"fmt"
)

const (
	// DefaultMinPort is the first port the scanner tries (inclusive).
	// Low, predictable ports make test environments easier to reason about.
	DefaultMinPort uint16 = 8000

	// DefaultMaxPort is the exclusive upper bound of the scanned range.
	DefaultMaxPort uint16 = 9999

	// DefaultOSQueryAttempts bounds how many times the OS is asked for an
	// ephemeral TCP port that is also free on UDP.
	DefaultOSQueryAttempts = 100

	// DefaultWrapThreshold is the minimum number of ports the scanner must
	// have handed out since its last wraparound before it is allowed to wrap
	// again. The value is a heuristic and is kept tunable.
	DefaultWrapThreshold = 500
)

// Protocol is a transport protocol a port must be free on.
type Protocol string

const (
	// ProtocolTCP is a stream socket (net.Listen).
	ProtocolTCP Protocol = "tcp"

	// ProtocolUDP is a datagram socket (net.ListenPacket).
	ProtocolUDP Protocol = "udp"
)

// String returns the string representation of Protocol.
func (p Protocol) String() string {
	return string(p)
}

// Family is an IP address family. Probes bind to the family's wildcard
// ("any") address.
type Family string

const (
	// FamilyIPv6 binds to [::].
	FamilyIPv6 Family = "ipv6"

	// FamilyIPv4 binds to 0.0.0.0.
	FamilyIPv4 Family = "ipv4"
)

// String returns the string representation of Family.
func (f Family) String() string {
	return string(f)
}

// AnyAddr returns the wildcard host for the family, formatted so it can be
// joined with a port by net.JoinHostPort.
func (f Family) AnyAddr() string {
	if f == FamilyIPv6 {
		return "::"
	}
	return "0.0.0.0"
}

// Binding is one (protocol, address family) combination that a port is
// probed on.
type Binding struct {
	Protocol Protocol
	Family   Family
}

// Network returns the Go network name for the binding, e.g. "tcp6" or "udp4".
// The family suffix matters: for "tcp6"/"udp6" the runtime sets IPV6_V6ONLY,
// so an IPv6 probe never silently covers the IPv4 wildcard as well.
func (b Binding) Network() string {
	if b.Family == FamilyIPv6 {
		return b.Protocol.String() + "6"
	}
	return b.Protocol.String() + "4"
}

// String returns a human-readable representation, e.g. "udp/ipv4".
func (b Binding) String() string {
	return fmt.Sprintf("%s/%s", b.Protocol, b.Family)
}

// BindingsFor returns the bindings for a protocol, IPv6 first.
func BindingsFor(proto Protocol) []Binding {
	return []Binding{
		{Protocol: proto, Family: FamilyIPv6},
		{Protocol: proto, Family: FamilyIPv4},
	}
}

// AllBindings returns the four combinations a port must bind on to be
// considered available: TCP before UDP, IPv6 before IPv4.
func AllBindings() []Binding {
	return append(BindingsFor(ProtocolTCP), BindingsFor(ProtocolUDP)...)
}

// Range is a half-open port range [Min, Max) that the scanner walks.
type Range struct {
	// Min is the first port in the range (inclusive).
	Min uint16 `json:"min" yaml:"min"`

	// Max is one past the last port in the range (exclusive).
	Max uint16 `json:"max" yaml:"max"`
}

// DefaultRange returns the default scanning range [8000, 9999).
func DefaultRange() Range {
	return Range{Min: DefaultMinPort, Max: DefaultMaxPort}
}

// Validate checks the Min < Max invariant.
func (r Range) Validate() error {
	if r.Min >= r.Max {
		return fmt.Errorf("port range: min %d must be below max %d", r.Min, r.Max)
	}
	return nil
}

// Contains reports whether port lies within [Min, Max).
func (r Range) Contains(port uint16) bool {
	return port >= r.Min && port < r.Max
}

// Size returns the number of ports in the range.
func (r Range) Size() int {
	if r.Max <= r.Min {
		return 0
	}
	return int(r.Max) - int(r.Min)
}

// String returns the range in interval notation, e.g. "[8000, 9999)".
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Min, r.Max)
}

// Package reservedport hands out TCP/UDP ports that are free on the host
// when they are allocated, and guarantees that ports held at the same time
// by this process never collide.
//
// The OS only stops a bind from colliding with sockets that are already
// bound. Two callers asking for a free port in quick succession can be told
// the same number if neither has bound it yet. This package closes that gap
// inside the process: every port handed out is recorded in a ledger until
// its ReservedPort is released, and the ledger never hands out a recorded
// port twice.
//
// Usage:
//
//	p, err := reservedport.Random()
//	if err != nil { /* handle */ }
//	defer p.Release()
//	srv := &http.Server{Addr: p.Addr()}
//
// Ports are found by scanning a fixed range (default [8000, 9999)) in
// increasing order, falling back to asking the OS for an ephemeral port once
// the range is exhausted. A port counts as free only if it binds on TCP and
// UDP, on both the IPv6 and IPv4 wildcard addresses.
//
// Nothing here protects against other processes grabbing a port between the
// check and the caller's own bind; that race cannot be closed from outside
// the kernel.
package reservedport

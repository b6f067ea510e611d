// Package port implements OS-level port availability probing and the port
// finding strategies built on top of it.
//
// The Scanner answers "is this port free right now?" by binding real sockets:
// TCP and UDP, on both the IPv6 and IPv4 wildcard addresses. Finders turn
// that answer into candidate ports:
//
//   - ScanningFinder walks a fixed range in increasing order and wraps around
//     once the range has proven productive.
//   - OSQueryFinder asks the OS for an ephemeral TCP port and keeps it only if
//     UDP is free on the same number.
//   - FallbackFinder tries one finder and falls back to another.
//
// Finders remember nothing about the ports they returned. Keeping two callers
// from receiving the same port is the ledger's job.
package port

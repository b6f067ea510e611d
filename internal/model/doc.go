// Package model defines the domain types and value objects for the
// reserved-port library.
//
// This package contains pure data structures with no external dependencies.
// Ports are plain uint16 values; the types here describe the search range
// the scanner walks, the protocol/address-family combinations a port must be
// free on, and the typed error (Error) that carries a Kind so callers can
// tell lock failures apart from port exhaustion.
package model

// Package ledger tracks which ports this process has handed out.
//
// The finders in internal/port have no memory: the same free port can come
// back from two consecutive scans if nobody bound it in between. The Ledger
// wraps a finder and keeps an in-use set, so a port is never returned by
// ReserveRandomPort while it is still reserved. Explicit reservations made
// with ReservePort are permanent until FreePort is called.
//
// A Ledger is not safe for concurrent use. Callers serialise access with a
// single lock held across whole operations, finder retries included.
package ledger

package reservedport

import (
	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// Error is the error type returned by this package. Use errors.Is with the
// sentinels below, or errors.As to inspect Kind.
type Error = model.Error

var (
	// ErrLockUnavailable is returned when the registry lock cannot be taken
	// because an earlier holder panicked while holding it. The in-use set
	// may be inconsistent, so the registry refuses further work.
	ErrLockUnavailable error = model.NewError(model.KindLockUnavailable, "reservedport: registry lock unavailable")

	// ErrPortsExhausted is returned when neither the scanned range nor the
	// OS produced a free port that is not already reserved.
	ErrPortsExhausted error = model.NewError(model.KindPortsExhausted, "reservedport: ports exhausted")
)

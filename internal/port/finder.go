package port

// Finder produces candidate ports. ok is false when the strategy has nothing
// to offer; that is a normal outcome, not an error, and callers are expected
// to try another strategy.
//
// Finders are not safe for concurrent use.
type Finder interface {
	FindPort() (port uint16, ok bool)
}

// Chain is implemented by finders that hand over to a second strategy once
// their own is used up. Callers that discard candidates (the ledger skips
// ports it already holds) use Secondary to go straight to the second
// strategy when the first keeps offering ports they cannot take.
type Chain interface {
	Finder
	Secondary() Finder
}

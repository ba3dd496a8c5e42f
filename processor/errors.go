package processor

import "errors"

var (
	ErrPartialCommit  = errors.New("processor: accounts were only partly committed")
	ErrNotStateTree   = errors.New("processor: not a state tree")
	ErrNotAddressTree = errors.New("processor: not an address tree")
	ErrNoSealer       = errors.New("processor: no sealer configured")
)

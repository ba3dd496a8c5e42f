package rootseal

import "errors"

var (
	ErrRootNotRetained  = errors.New("the sealed root is no longer in the root history")
	ErrTreeMismatch     = errors.New("the seal is for a different tree")
	ErrSealVerifyFailed = errors.New("the seal signature verification failed")
	ErrStateMismatch    = errors.New("the sealed state is not a state of the tree")
)

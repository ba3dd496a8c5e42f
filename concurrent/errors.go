package concurrent

import (
	"errors"
	"fmt"
)

var (
	ErrHeightZero                = errors.New("concurrent: height must be greater than zero")
	ErrHeightTooLarge            = errors.New("concurrent: height exceeds the maximum")
	ErrChangelogZero             = errors.New("concurrent: changelog capacity must be greater than zero")
	ErrRootsZero                 = errors.New("concurrent: roots capacity must be greater than zero")
	ErrTreeFull                  = errors.New("concurrent: tree is full")
	ErrEmptyLeaves               = errors.New("concurrent: no leaves to append")
	ErrBatchGreaterThanChangelog = errors.New("concurrent: batch is larger than the changelog")
	ErrInvalidProofLength        = errors.New("concurrent: proof length does not match height")
	ErrInvalidProof              = errors.New("concurrent: invalid proof")
	ErrCannotUpdateLeaf          = errors.New("concurrent: leaf was modified after the proof was taken")
	ErrCannotUpdateEmpty         = errors.New("concurrent: cannot update a leaf that was never appended")
	ErrInvalidChangelogIndex     = errors.New("concurrent: changelog index out of range")
	ErrRootNotInHistory          = errors.New("concurrent: root index not in history")
	ErrInvalidHeader             = errors.New("concurrent: invalid header")
)

// InvalidProofError carries the root the tree expected and the root the proof
// produced. It matches ErrInvalidProof with errors.Is.
type InvalidProofError struct {
	Expected [32]byte
	Computed [32]byte
}

func (e *InvalidProofError) Error() string {
	return fmt.Sprintf("%v: expected=%x, computed=%x", ErrInvalidProof, e.Expected, e.Computed)
}

func (e *InvalidProofError) Is(target error) bool {
	return target == ErrInvalidProof
}

package zerocopy

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientMemory = errors.New("zerocopy: insufficient memory")
	ErrUnalignedPointer   = errors.New("zerocopy: unaligned pointer")
	ErrCapacityExceeded   = errors.New("zerocopy: capacity exceeded")
	ErrIndexOutOfBounds   = errors.New("zerocopy: index out of bounds")
	ErrInvalidConversion  = errors.New("zerocopy: invalid conversion")
	ErrZeroCapacity       = errors.New("zerocopy: capacity must be greater than zero")
)

// InsufficientMemoryError reports how many bytes a layout needed. It matches
// ErrInsufficientMemory with errors.Is.
type InsufficientMemoryError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientMemoryError) Error() string {
	return fmt.Sprintf("%v: needed=%d, available=%d", ErrInsufficientMemory, e.Needed, e.Available)
}

func (e *InsufficientMemoryError) Is(target error) bool {
	return target == ErrInsufficientMemory
}

// CheckSize returns an InsufficientMemoryError if buf is shorter than needed.
func CheckSize(buf []byte, needed uint64) error {
	if uint64(len(buf)) < needed {
		return &InsufficientMemoryError{Needed: needed, Available: uint64(len(buf))}
	}
	return nil
}

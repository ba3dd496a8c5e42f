package zerocopy

import (
	"fmt"
	"math"
)

// Vec is a bounded vector of fixed width elements stored in a caller owned
// buffer. Push fails with ErrCapacityExceeded once Len reaches Capacity.
type Vec[T any] struct {
	header []byte
	data   []byte
	codec  Codec[T]
}

// NewVecAt initializes a Vec with the given capacity at the start of buf and
// returns it together with the unused remainder of buf.
//
// Any previous content of the element region is cleared.
func NewVecAt[T any](buf []byte, capacity uint64, codec Codec[T]) (*Vec[T], []byte, error) {
	if capacity == 0 {
		return nil, nil, ErrZeroCapacity
	}
	v, rest, err := splitRegion(buf, capacity, codec)
	if err != nil {
		return nil, nil, err
	}
	clear(v.header)
	clear(v.data)
	writeU64LE(v.header[capOff:], capacity)
	return &Vec[T]{header: v.header, data: v.data, codec: codec}, rest, nil
}

// VecFromBytesAt re-opens a Vec previously initialized at the start of buf.
func VecFromBytesAt[T any](buf []byte, codec Codec[T]) (*Vec[T], []byte, error) {
	capacity, length, err := readHeader(buf, codec.Size())
	if err != nil {
		return nil, nil, err
	}
	if length > capacity {
		return nil, nil, ErrInvalidConversion
	}
	v, rest, err := splitRegion(buf, capacity, codec)
	if err != nil {
		return nil, nil, err
	}
	return &Vec[T]{header: v.header, data: v.data, codec: codec}, rest, nil
}

type region struct {
	header []byte
	data   []byte
}

func splitRegion[T any](buf []byte, capacity uint64, codec Codec[T]) (region, []byte, error) {
	if capacity > maxElements(math.MaxUint64-HeaderBytes-RegionAlign, codec.Size()) {
		return region{}, nil, &InsufficientMemoryError{Needed: math.MaxUint64, Available: uint64(len(buf))}
	}
	n := VecBytes(capacity, codec.Size())
	if err := CheckSize(buf, n); err != nil {
		return region{}, nil, err
	}
	if err := checkAligned(buf, RegionAlign); err != nil {
		return region{}, nil, err
	}
	r := region{
		header: buf[:HeaderBytes],
		data:   buf[HeaderBytes : HeaderBytes+capacity*uint64(codec.Size())],
	}
	return r, buf[n:], nil
}

// readHeader reads a stored Vec or CyclicVec header. A capacity whose
// elements cannot fit in buf is a corrupt header.
func readHeader(buf []byte, elemSize int) (capacity uint64, length uint64, err error) {
	if err := CheckSize(buf, HeaderBytes); err != nil {
		return 0, 0, err
	}
	if err := checkAligned(buf, RegionAlign); err != nil {
		return 0, 0, err
	}
	capacity = readU64LE(buf[capOff:])
	length = readU64LE(buf[lenOff:])
	if capacity == 0 {
		return 0, 0, ErrInvalidConversion
	}
	if capacity > maxElements(uint64(len(buf))-HeaderBytes, elemSize) {
		return 0, 0, fmt.Errorf("%w: capacity %d exceeds %d byte buffer", ErrInvalidConversion, capacity, len(buf))
	}
	return capacity, length, nil
}

func (v *Vec[T]) Len() uint64      { return readU64LE(v.header[lenOff:]) }
func (v *Vec[T]) Capacity() uint64 { return readU64LE(v.header[capOff:]) }
func (v *Vec[T]) IsEmpty() bool    { return v.Len() == 0 }
func (v *Vec[T]) IsFull() bool     { return v.Len() == v.Capacity() }

func (v *Vec[T]) setLen(n uint64) { writeU64LE(v.header[lenOff:], n) }

func (v *Vec[T]) at(i uint64) []byte {
	w := uint64(v.codec.Size())
	return v.data[i*w : (i+1)*w]
}

// Get returns element i, ok is false if i >= Len.
func (v *Vec[T]) Get(i uint64) (T, bool) {
	if i >= v.Len() {
		var zero T
		return zero, false
	}
	return v.codec.Decode(v.at(i)), true
}

// Set overwrites element i, which must be < Len.
func (v *Vec[T]) Set(i uint64, x T) error {
	if i >= v.Len() {
		return ErrIndexOutOfBounds
	}
	v.codec.Encode(v.at(i), x)
	return nil
}

// Push appends x.
func (v *Vec[T]) Push(x T) error {
	n := v.Len()
	if n >= v.Capacity() {
		return ErrCapacityExceeded
	}
	v.codec.Encode(v.at(n), x)
	v.setLen(n + 1)
	return nil
}

// Last returns the most recently pushed element.
func (v *Vec[T]) Last() (T, bool) {
	n := v.Len()
	if n == 0 {
		var zero T
		return zero, false
	}
	return v.Get(n - 1)
}

// SetLast overwrites the most recently pushed element.
func (v *Vec[T]) SetLast(x T) error {
	n := v.Len()
	if n == 0 {
		return ErrIndexOutOfBounds
	}
	return v.Set(n-1, x)
}

// Remove deletes element i, shifting the following elements down by one.
func (v *Vec[T]) Remove(i uint64) error {
	n := v.Len()
	if i >= n {
		return ErrIndexOutOfBounds
	}
	w := uint64(v.codec.Size())
	copy(v.data[i*w:], v.data[(i+1)*w:n*w])
	clear(v.data[(n-1)*w : n*w])
	v.setLen(n - 1)
	return nil
}

// Clear zeroes the element region and resets Len to zero.
func (v *Vec[T]) Clear() {
	clear(v.data)
	v.setLen(0)
}

// Each calls fn for every element in order until fn returns false.
func (v *Vec[T]) Each(fn func(i uint64, x T) bool) {
	n := v.Len()
	for i := uint64(0); i < n; i++ {
		if !fn(i, v.codec.Decode(v.at(i))) {
			return
		}
	}
}

// Slice returns a copy of the elements.
func (v *Vec[T]) Slice() []T {
	out := make([]T, 0, v.Len())
	v.Each(func(_ uint64, x T) bool {
		out = append(out, x)
		return true
	})
	return out
}

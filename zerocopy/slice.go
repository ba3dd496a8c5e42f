package zerocopy

import (
	"fmt"
	"math"
)

// Slice is a fixed length region of elements. Its length is set once by
// NewSliceAt and never changes.
type Slice[T any] struct {
	data  []byte
	n     uint64
	codec Codec[T]
}

// NewSliceAt initializes a zero filled Slice of n elements at the start of
// buf.
func NewSliceAt[T any](buf []byte, n uint64, codec Codec[T]) (*Slice[T], []byte, error) {
	if n > maxElements(math.MaxUint64-SliceHeaderBytes-RegionAlign, codec.Size()) {
		return nil, nil, &InsufficientMemoryError{Needed: math.MaxUint64, Available: uint64(len(buf))}
	}
	need := SliceBytes(n, codec.Size())
	if err := CheckSize(buf, need); err != nil {
		return nil, nil, err
	}
	if err := checkAligned(buf, RegionAlign); err != nil {
		return nil, nil, err
	}
	clear(buf[:need])
	writeU64LE(buf[lenOff:], n)
	s := &Slice[T]{
		data:  buf[SliceHeaderBytes : SliceHeaderBytes+n*uint64(codec.Size())],
		n:     n,
		codec: codec,
	}
	return s, buf[need:], nil
}

// SliceFromBytesAt re-opens a Slice previously initialized at the start of
// buf.
func SliceFromBytesAt[T any](buf []byte, codec Codec[T]) (*Slice[T], []byte, error) {
	if err := CheckSize(buf, SliceHeaderBytes); err != nil {
		return nil, nil, err
	}
	if err := checkAligned(buf, RegionAlign); err != nil {
		return nil, nil, err
	}
	n := readU64LE(buf[lenOff:])
	if n > maxElements(uint64(len(buf))-SliceHeaderBytes, codec.Size()) {
		return nil, nil, fmt.Errorf("%w: length %d exceeds %d byte buffer", ErrInvalidConversion, n, len(buf))
	}
	need := SliceBytes(n, codec.Size())
	if err := CheckSize(buf, need); err != nil {
		return nil, nil, err
	}
	s := &Slice[T]{
		data:  buf[SliceHeaderBytes : SliceHeaderBytes+n*uint64(codec.Size())],
		n:     n,
		codec: codec,
	}
	return s, buf[need:], nil
}

func (s *Slice[T]) Len() uint64 { return s.n }

func (s *Slice[T]) at(i uint64) []byte {
	w := uint64(s.codec.Size())
	return s.data[i*w : (i+1)*w]
}

func (s *Slice[T]) Get(i uint64) (T, bool) {
	if i >= s.n {
		var zero T
		return zero, false
	}
	return s.codec.Decode(s.at(i)), true
}

func (s *Slice[T]) Set(i uint64, x T) error {
	if i >= s.n {
		return ErrIndexOutOfBounds
	}
	s.codec.Encode(s.at(i), x)
	return nil
}

// Raw returns the element bytes. Writes through the returned slice modify
// the underlying buffer.
func (s *Slice[T]) Raw() []byte { return s.data }

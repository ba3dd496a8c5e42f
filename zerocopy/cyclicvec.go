package zerocopy

// CyclicVec is a ring buffer of fixed width elements stored in a caller owned
// buffer. Once full, Push overwrites the oldest element.
//
// Indices are physical slot positions. LastIndex is the slot of the newest
// element and FirstIndex the slot of the oldest.
type CyclicVec[T any] struct {
	header []byte
	data   []byte
	codec  Codec[T]
}

// NewCyclicVecAt initializes a CyclicVec with the given capacity at the start
// of buf and returns the unused remainder of buf.
func NewCyclicVecAt[T any](buf []byte, capacity uint64, codec Codec[T]) (*CyclicVec[T], []byte, error) {
	if capacity == 0 {
		return nil, nil, ErrZeroCapacity
	}
	r, rest, err := splitRegion(buf, capacity, codec)
	if err != nil {
		return nil, nil, err
	}
	clear(r.header)
	clear(r.data)
	writeU64LE(r.header[capOff:], capacity)
	return &CyclicVec[T]{header: r.header, data: r.data, codec: codec}, rest, nil
}

// CyclicVecFromBytesAt re-opens a CyclicVec previously initialized at the
// start of buf.
func CyclicVecFromBytesAt[T any](buf []byte, codec Codec[T]) (*CyclicVec[T], []byte, error) {
	capacity, length, err := readHeader(buf, codec.Size())
	if err != nil {
		return nil, nil, err
	}
	if length > capacity || readU64LE(buf[cursorOff:]) >= capacity {
		return nil, nil, ErrInvalidConversion
	}
	r, rest, err := splitRegion(buf, capacity, codec)
	if err != nil {
		return nil, nil, err
	}
	return &CyclicVec[T]{header: r.header, data: r.data, codec: codec}, rest, nil
}

func (c *CyclicVec[T]) Len() uint64       { return readU64LE(c.header[lenOff:]) }
func (c *CyclicVec[T]) Capacity() uint64  { return readU64LE(c.header[capOff:]) }
func (c *CyclicVec[T]) LastIndex() uint64 { return readU64LE(c.header[cursorOff:]) }
func (c *CyclicVec[T]) IsEmpty() bool     { return c.Len() == 0 }

// FirstIndex returns the slot of the oldest element.
func (c *CyclicVec[T]) FirstIndex() uint64 {
	if c.Len() < c.Capacity() {
		return 0
	}
	return (c.LastIndex() + 1) % c.Capacity()
}

func (c *CyclicVec[T]) at(i uint64) []byte {
	w := uint64(c.codec.Size())
	return c.data[i*w : (i+1)*w]
}

// Push appends x, overwriting the oldest element when full. It returns the
// slot x was written to.
func (c *CyclicVec[T]) Push(x T) uint64 {
	n := c.Len()
	var idx uint64
	if n < c.Capacity() {
		idx = n
	} else {
		idx = (c.LastIndex() + 1) % c.Capacity()
	}
	c.codec.Encode(c.at(idx), x)
	if n < c.Capacity() {
		writeU64LE(c.header[lenOff:], n+1)
	}
	writeU64LE(c.header[cursorOff:], idx)
	return idx
}

// Get returns the element in slot i.
func (c *CyclicVec[T]) Get(i uint64) (T, bool) {
	if i >= c.Len() {
		var zero T
		return zero, false
	}
	return c.codec.Decode(c.at(i)), true
}

// Set overwrites the element in slot i.
func (c *CyclicVec[T]) Set(i uint64, x T) error {
	if i >= c.Len() {
		return ErrIndexOutOfBounds
	}
	c.codec.Encode(c.at(i), x)
	return nil
}

// Last returns the newest element.
func (c *CyclicVec[T]) Last() (T, bool) {
	if c.Len() == 0 {
		var zero T
		return zero, false
	}
	return c.Get(c.LastIndex())
}

// SetLast overwrites the newest element.
func (c *CyclicVec[T]) SetLast(x T) error {
	if c.Len() == 0 {
		return ErrIndexOutOfBounds
	}
	return c.Set(c.LastIndex(), x)
}

// IterFrom calls fn for each slot from start to LastIndex, in insertion
// order, until fn returns false.
func (c *CyclicVec[T]) IterFrom(start uint64, fn func(i uint64, x T) bool) error {
	n := c.Len()
	if start >= n {
		return ErrIndexOutOfBounds
	}
	last := c.LastIndex()
	capacity := c.Capacity()
	for i := start; ; i = (i + 1) % capacity {
		if !fn(i, c.codec.Decode(c.at(i))) {
			return nil
		}
		if i == last {
			return nil
		}
	}
}

// Each calls fn for every element from oldest to newest.
func (c *CyclicVec[T]) Each(fn func(i uint64, x T) bool) {
	if c.Len() == 0 {
		return
	}
	_ = c.IterFrom(c.FirstIndex(), fn)
}

// Clear zeroes the element region and resets the header.
func (c *CyclicVec[T]) Clear() {
	clear(c.data)
	writeU64LE(c.header[lenOff:], 0)
	writeU64LE(c.header[cursorOff:], 0)
}

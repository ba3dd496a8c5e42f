package zerocopy

// Codec describes how a fixed width element is stored in a buffer.
type Codec[T any] interface {
	// Size is the encoded width in bytes.
	Size() int
	// Align is the natural alignment of the encoded element.
	Align() int
	Decode(b []byte) T
	Encode(b []byte, v T)
}

var (
	Bytes32 Codec[[32]byte] = bytes32Codec{}
	U64     Codec[uint64]   = u64Codec{}
	Byte    Codec[byte]     = byteCodec{}
)

type bytes32Codec struct{}

func (bytes32Codec) Size() int  { return 32 }
func (bytes32Codec) Align() int { return 1 }
func (bytes32Codec) Decode(b []byte) [32]byte {
	var v [32]byte
	copy(v[:], b[:32])
	return v
}
func (bytes32Codec) Encode(b []byte, v [32]byte) { copy(b[:32], v[:]) }

type u64Codec struct{}

func (u64Codec) Size() int                 { return 8 }
func (u64Codec) Align() int                { return 8 }
func (u64Codec) Decode(b []byte) uint64    { return readU64LE(b) }
func (u64Codec) Encode(b []byte, v uint64) { writeU64LE(b, v) }

type byteCodec struct{}

func (byteCodec) Size() int               { return 1 }
func (byteCodec) Align() int              { return 1 }
func (byteCodec) Decode(b []byte) byte    { return b[0] }
func (byteCodec) Encode(b []byte, v byte) { b[0] = v }

package batched

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// Pubkey identifies an account. Accounts created by this package carry a
// random UUID in the first 16 bytes.
type Pubkey [32]byte

// NewPubkey returns a fresh random account identity.
func NewPubkey() Pubkey { return PubkeyFromUUID(uuid.New()) }

// PubkeyFromUUID embeds id in the first 16 bytes of a Pubkey.
func PubkeyFromUUID(id uuid.UUID) Pubkey {
	var p Pubkey
	copy(p[:16], id[:])
	return p
}

// UUID returns the identity embedded by PubkeyFromUUID.
func (p Pubkey) UUID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], p[:16])
	return id
}

func (p Pubkey) IsZero() bool   { return p == Pubkey{} }
func (p Pubkey) String() string { return hex.EncodeToString(p[:]) }

// Some returns a pointer to v, for the optional metadata fields.
func Some(v uint64) *uint64 { return &v }

// AccessMetadata names the accounts allowed to operate a tree or queue.
type AccessMetadata struct {
	Owner        Pubkey
	ProgramOwner Pubkey
	Forester     Pubkey
}

// RolloverMetadata carries the rollover configuration and state of a tree or
// queue. Nil optional fields are encoded with a zero tag byte.
type RolloverMetadata struct {
	Index             uint64
	RolloverFee       uint64
	RolloverThreshold *uint64
	NetworkFee        *uint64
	RolledOverSlot    *uint64
	CloseThreshold    *uint64
	AdditionalBytes   uint64
}

// IsRolledOver reports whether RolledOverSlot is set.
func (m *RolloverMetadata) IsRolledOver() bool { return m.RolledOverSlot != nil }

// TreeMetadata is the fixed metadata block of a batched tree account.
type TreeMetadata struct {
	Access          AccessMetadata
	Rollover        RolloverMetadata
	AssociatedQueue Pubkey
	NextMerkleTree  Pubkey
}

// QueueMetadata is the fixed metadata block of an output queue account.
type QueueMetadata struct {
	Access               AccessMetadata
	Rollover             RolloverMetadata
	AssociatedMerkleTree Pubkey
	NextQueue            Pubkey
	QueueType            uint64
}

const (
	accessMetadataBytes   = 96
	rolloverMetadataBytes = 64
	optionBytes           = 9

	TreeMetadataBytes  = accessMetadataBytes + rolloverMetadataBytes + 64
	QueueMetadataBytes = accessMetadataBytes + rolloverMetadataBytes + 72
)

func encodeAccess(b []byte, m AccessMetadata) {
	copy(b[0:32], m.Owner[:])
	copy(b[32:64], m.ProgramOwner[:])
	copy(b[64:96], m.Forester[:])
}

func decodeAccess(b []byte) AccessMetadata {
	var m AccessMetadata
	copy(m.Owner[:], b[0:32])
	copy(m.ProgramOwner[:], b[32:64])
	copy(m.Forester[:], b[64:96])
	return m
}

func encodeOption(b []byte, v *uint64) {
	clear(b[:optionBytes])
	if v != nil {
		b[0] = 1
		binary.LittleEndian.PutUint64(b[1:optionBytes], *v)
	}
}

func decodeOption(b []byte) *uint64 {
	if b[0] == 0 {
		return nil
	}
	return Some(binary.LittleEndian.Uint64(b[1:optionBytes]))
}

func encodeRollover(b []byte, m RolloverMetadata) {
	clear(b[:rolloverMetadataBytes])
	binary.LittleEndian.PutUint64(b[0:], m.Index)
	binary.LittleEndian.PutUint64(b[8:], m.RolloverFee)
	encodeOption(b[16:], m.RolloverThreshold)
	encodeOption(b[25:], m.NetworkFee)
	encodeOption(b[34:], m.RolledOverSlot)
	encodeOption(b[43:], m.CloseThreshold)
	binary.LittleEndian.PutUint64(b[52:], m.AdditionalBytes)
}

func decodeRollover(b []byte) RolloverMetadata {
	return RolloverMetadata{
		Index:             binary.LittleEndian.Uint64(b[0:]),
		RolloverFee:       binary.LittleEndian.Uint64(b[8:]),
		RolloverThreshold: decodeOption(b[16:]),
		NetworkFee:        decodeOption(b[25:]),
		RolledOverSlot:    decodeOption(b[34:]),
		CloseThreshold:    decodeOption(b[43:]),
		AdditionalBytes:   binary.LittleEndian.Uint64(b[52:]),
	}
}

func encodeTreeMetadata(b []byte, m TreeMetadata) {
	encodeAccess(b[0:], m.Access)
	encodeRollover(b[96:], m.Rollover)
	copy(b[160:192], m.AssociatedQueue[:])
	copy(b[192:224], m.NextMerkleTree[:])
}

func decodeTreeMetadata(b []byte) TreeMetadata {
	m := TreeMetadata{
		Access:   decodeAccess(b[0:]),
		Rollover: decodeRollover(b[96:]),
	}
	copy(m.AssociatedQueue[:], b[160:192])
	copy(m.NextMerkleTree[:], b[192:224])
	return m
}

func encodeQueueMetadata(b []byte, m QueueMetadata) {
	encodeAccess(b[0:], m.Access)
	encodeRollover(b[96:], m.Rollover)
	copy(b[160:192], m.AssociatedMerkleTree[:])
	copy(b[192:224], m.NextQueue[:])
	binary.LittleEndian.PutUint64(b[224:], m.QueueType)
}

func decodeQueueMetadata(b []byte) QueueMetadata {
	m := QueueMetadata{
		Access:    decodeAccess(b[0:]),
		Rollover:  decodeRollover(b[96:]),
		QueueType: binary.LittleEndian.Uint64(b[224:]),
	}
	copy(m.AssociatedMerkleTree[:], b[160:192])
	copy(m.NextQueue[:], b[192:224])
	return m
}

// words addresses a header region as consecutive little-endian u64 fields.
type words []byte

func (w words) get(i int) uint64    { return binary.LittleEndian.Uint64(w[i*8:]) }
func (w words) set(i int, v uint64) { binary.LittleEndian.PutUint64(w[i*8:], v) }

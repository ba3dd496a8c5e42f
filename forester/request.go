package forester

import (
	"fmt"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/fxamacker/cbor/v2"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// ProofRequest is what a forester hands to a prover. It is CBOR encoded so
// it can be queued or stored alongside the tree accounts. Inputs holds the
// CBOR encoding of the circuit inputs for Circuit.
type ProofRequest struct {
	Circuit                batched.CircuitKind `cbor:"1,keyasint"`
	Tree                   batched.Pubkey      `cbor:"2,keyasint"`
	BatchIndex             uint64              `cbor:"3,keyasint"`
	ZkpBatchIndex          uint64              `cbor:"4,keyasint"`
	ExpectedSequenceNumber uint64              `cbor:"5,keyasint"`
	ZkpBatchSize           uint64              `cbor:"6,keyasint"`
	PublicInputHash        Hash                `cbor:"7,keyasint"`
	Inputs                 cbor.RawMessage     `cbor:"8,keyasint"`
}

func NewRequestCodec() (dtcbor.CBORCodec, error) {
	codec, err := dtcbor.NewCBORCodec(
		dtcbor.NewDeterministicEncOpts(),
		dtcbor.NewDeterministicDecOpts(),
	)
	if err != nil {
		return dtcbor.CBORCodec{}, err
	}
	return codec, nil
}

// EncodeRequest returns the CBOR encoding of req.
func EncodeRequest(codec dtcbor.CBORCodec, req *ProofRequest) ([]byte, error) {
	return codec.MarshalCBOR(req)
}

// DecodeRequest decodes a request produced by EncodeRequest.
func DecodeRequest(codec dtcbor.CBORCodec, data []byte) (*ProofRequest, error) {
	var req ProofRequest
	if err := codec.UnmarshalInto(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// CircuitInputs decodes Inputs into the inputs type of the request circuit:
// *UpdateInputs, *AppendInputs or *AddressAppendInputs.
func (r *ProofRequest) CircuitInputs(codec dtcbor.CBORCodec) (any, error) {
	var v any
	switch r.Circuit {
	case batched.CircuitBatchUpdate:
		v = &UpdateInputs{}
	case batched.CircuitBatchAppend:
		v = &AppendInputs{}
	case batched.CircuitBatchAddressAppend:
		v = &AddressAppendInputs{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCircuit, r.Circuit)
	}
	if err := codec.UnmarshalInto(r.Inputs, v); err != nil {
		return nil, err
	}
	return v, nil
}

func newRequest(codec dtcbor.CBORCodec, circuit batched.CircuitKind, tree batched.Pubkey, slot Slot, zkpBatchSize uint64, pih [32]byte, inputs any) (*ProofRequest, error) {
	raw, err := codec.MarshalCBOR(inputs)
	if err != nil {
		return nil, err
	}
	return &ProofRequest{
		Circuit:                circuit,
		Tree:                   tree,
		BatchIndex:             slot.BatchIndex,
		ZkpBatchIndex:          slot.ZkpBatchIndex,
		ExpectedSequenceNumber: slot.ExpectedSequenceNumber,
		ZkpBatchSize:           zkpBatchSize,
		PublicInputHash:        pih,
		Inputs:                 raw,
	}, nil
}

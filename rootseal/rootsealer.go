package rootseal

import (
	"crypto/ecdsa"
	"crypto/rand"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	dtcose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/veraison/go-cose"
)

// RootSealer produces a signature over a tree state. A seal commits the
// operator to a root, it should only be published for roots that were
// produced by verified batch updates.
type RootSealer struct {
	issuer    string
	cborCodec dtcbor.CBORCodec
}

func NewRootSealer(issuer string, cborCodec dtcbor.CBORCodec) RootSealer {
	return RootSealer{
		issuer:    issuer,
		cborCodec: cborCodec,
	}
}

// Sign1 seals the provided state. The public key is carried in the CWT
// claims of the protected header so that the seal is self describing.
func (rs RootSealer) Sign1(coseSigner cose.Signer, keyIdentifier string, publicKey *ecdsa.PublicKey, subject string, state TreeState, external []byte) ([]byte, error) {
	payload, err := rs.cborCodec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}

	protected := cose.ProtectedHeader{
		dtcose.HeaderLabelCWTClaims: dtcose.NewCNFClaim(
			rs.issuer, subject, keyIdentifier, coseSigner.Algorithm(), *publicKey),
	}
	protected.SetAlgorithm(coseSigner.Algorithm())
	coseHeaders := cose.Headers{Protected: protected}

	msg := cose.Sign1Message{
		Headers: coseHeaders,
		Payload: payload,
	}
	if err = msg.Sign(rand.Reader, external, coseSigner); err != nil {
		return nil, err
	}

	// The root is detached so that verifiers are forced to obtain it from
	// the tree.
	state.Root = nil
	if msg.Payload, err = rs.cborCodec.MarshalCBOR(state); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

func NewRootSealerCodec() (dtcbor.CBORCodec, error) {
	codec, err := dtcbor.NewCBORCodec(
		dtcbor.NewDeterministicEncOpts(),
		dtcbor.NewDeterministicDecOpts(), // unsigned int decodes to uint64
	)
	if err != nil {
		return dtcbor.CBORCodec{}, err
	}
	return codec, nil
}

func newDecOptions() []dtcose.SignOption {
	return []dtcose.SignOption{dtcose.WithDecOptions(dtcbor.NewDeterministicDecOpts())}
}

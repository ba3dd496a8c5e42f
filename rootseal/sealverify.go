package rootseal

import (
	"bytes"
	"crypto"
	"fmt"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	dtcose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/veraison/go-cose"

	"github.com/forestrie/go-batchedmerkle/batched"
)

type publicKeyProvider interface {
	PublicKey() (crypto.PublicKey, cose.Algorithm, error)
}

// DecodeSealedRoot decodes the TreeState values from the sealed message.
// The returned state does not verify until its root is restored, see
// VerifySealedRoot.
func DecodeSealedRoot(
	codec dtcbor.CBORCodec, msg []byte,
) (*dtcose.CoseSign1Message, TreeState, error) {
	signed, err := dtcose.NewCoseSign1MessageFromCBOR(msg, newDecOptions()...)
	if err != nil {
		return nil, TreeState{}, err
	}

	var unverifiedState TreeState
	if err = codec.UnmarshalInto(signed.Payload, &unverifiedState); err != nil {
		return nil, TreeState{}, err
	}
	return signed, unverifiedState, nil
}

// Issuer returns the issuer named in the CWT claims of a sealed message.
func Issuer(signed *dtcose.CoseSign1Message) (string, error) {
	claims, err := signed.CWTClaimsFromProtectedHeader()
	if err != nil {
		return "", err
	}
	return claims.Issuer, nil
}

// VerifySealedRoot applies the provided state to the signed message and
// verifies the result.
//
// Verification of a sealed root is a 3 step process:
//  1. Use DecodeSealedRoot to obtain the TreeState from the sealed message.
//     It will not verify as the root was removed after signing.
//  2. Read the root at TreeState.RootIndex from the tree.
//  3. Set TreeState.Root and call this function to complete the
//     verification.
//
// VerifyAgainstTree does steps 2 and 3.
func VerifySealedRoot(
	codec dtcbor.CBORCodec, keyProvider publicKeyProvider, signed *dtcose.CoseSign1Message, unverifiedState TreeState, external []byte) error {

	var err error
	signed.Payload, err = codec.MarshalCBOR(unverifiedState)
	if err != nil {
		return err
	}
	if err = signed.VerifyWithProvider(keyProvider, external); err != nil {
		return fmt.Errorf("%w: %v", ErrSealVerifyFailed, err)
	}
	return nil
}

// VerifyAgainstTree checks the sealed state against t, restores the sealed
// root from the root history of t and verifies the seal with the key
// carried in its CWT claims.
func VerifyAgainstTree(
	codec dtcbor.CBORCodec, signed *dtcose.CoseSign1Message, unverifiedState TreeState, t *batched.TreeAccount, external []byte) error {

	key := t.Pubkey()
	if !bytes.Equal(unverifiedState.Tree, key[:]) {
		return fmt.Errorf("%w: sealed %x, tree %s", ErrTreeMismatch, unverifiedState.Tree, key)
	}
	if err := unverifiedState.CheckProgress(t); err != nil {
		return err
	}
	if !unverifiedState.IsRetained(t) {
		return fmt.Errorf("%w: sequence number %d", ErrRootNotRetained, unverifiedState.SequenceNumber)
	}
	root, ok := t.RootAt(unverifiedState.RootIndex)
	if !ok || root == [32]byte{} {
		return fmt.Errorf("%w: root index %d", ErrRootNotRetained, unverifiedState.RootIndex)
	}
	unverifiedState.Root = root[:]
	return VerifySealedRoot(codec, dtcose.NewCWTPublicKeyProvider(signed), signed, unverifiedState, external)
}

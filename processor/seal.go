package processor

import (
	"context"
	"time"

	"github.com/forestrie/go-batchedmerkle/batched"
	"github.com/forestrie/go-batchedmerkle/rootseal"
)

// SealTree signs the current state of a tree. Nothing is written.
func (p *Processor) SealTree(ctx context.Context, treeKey batched.Pubkey, slot uint64, external []byte) (msg []byte, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("seal_tree", start, err) }()

	if p.Signer == nil {
		return nil, ErrNoSealer
	}
	_, t, err := p.readTree(ctx, treeKey)
	if err != nil {
		return nil, err
	}
	publicKey, err := p.Signer.PublicKey()
	if err != nil {
		return nil, err
	}
	state := rootseal.StateOf(t, slot, p.now())
	msg, err = p.sealer.Sign1(p.Signer, p.Signer.KeyIdentifier(), publicKey, p.Cfg.SealSubject, state, external)
	if err != nil {
		return nil, err
	}
	p.Log.Infof("sealed %s tree %s at seq %d root index %d", t.TreeType(), treeKey, state.SequenceNumber, state.RootIndex)
	return msg, nil
}

// VerifySeal checks a sealed root against the current tree. It fails with
// rootseal.ErrRootNotRetained once the sealed root has left the root
// history.
func (p *Processor) VerifySeal(ctx context.Context, treeKey batched.Pubkey, msg []byte, external []byte) (state rootseal.TreeState, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("verify_seal", start, err) }()

	_, t, err := p.readTree(ctx, treeKey)
	if err != nil {
		return rootseal.TreeState{}, err
	}
	signed, state, err := rootseal.DecodeSealedRoot(p.sealCodec, msg)
	if err != nil {
		return rootseal.TreeState{}, err
	}
	if err = rootseal.VerifyAgainstTree(p.sealCodec, signed, state, t, external); err != nil {
		return rootseal.TreeState{}, err
	}
	return state, nil
}

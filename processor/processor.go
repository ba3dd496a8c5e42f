package processor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/veraison/go-cose"

	"github.com/forestrie/go-batchedmerkle/accountstore"
	"github.com/forestrie/go-batchedmerkle/batched"
	"github.com/forestrie/go-batchedmerkle/rootseal"
)

// SealSigner is a COSE signer that can name its key and provide the public
// key for the CWT claims of a seal.
type SealSigner interface {
	cose.Signer
	PublicKey() (*ecdsa.PublicKey, error)
	KeyIdentifier() string
}

// Processor runs one tree operation at a time against the account store.
// Each operation reads the accounts it needs, applies the transition and
// commits. A conflicting commit fails with accountstore.ErrContentOC and
// nothing is retried, the caller re-submits.
type Processor struct {
	Cfg       Config
	Log       logger.Logger
	Committer *accountstore.AccountCommitter
	Verifier  batched.ProofVerifier
	// Signer is optional. SealTree fails with ErrNoSealer without it.
	Signer SealSigner

	sealer    rootseal.RootSealer
	sealCodec dtcbor.CBORCodec
	metrics   *metrics
	now       func() time.Time
}

// New returns a Processor. Its metrics are registered with reg, which may
// be nil.
func New(
	cfg Config, log logger.Logger, committer *accountstore.AccountCommitter,
	verifier batched.ProofVerifier, reg prometheus.Registerer,
) (*Processor, error) {
	codec, err := rootseal.NewRootSealerCodec()
	if err != nil {
		return nil, err
	}
	return &Processor{
		Cfg:       cfg,
		Log:       log,
		Committer: committer,
		Verifier:  verifier,
		sealer:    rootseal.NewRootSealer(cfg.SealIssuer, codec),
		sealCodec: codec,
		metrics:   newMetrics(cfg.MetricsNamespace, reg),
		now:       time.Now,
	}, nil
}

// stateTree is a state tree and its output queue as read from the store.
type stateTree struct {
	treeCtx  *accountstore.AccountContext
	queueCtx *accountstore.AccountContext
	tree     *batched.TreeAccount
	queue    *batched.OutputQueue
}

func (p *Processor) readTree(ctx context.Context, key batched.Pubkey) (*accountstore.AccountContext, *batched.TreeAccount, error) {
	ac, err := p.Committer.GetContext(ctx, accountstore.KindTree, key)
	if err != nil {
		return nil, nil, err
	}
	t, err := ac.OpenTree()
	if err != nil {
		return nil, nil, fmt.Errorf("tree %s: %w", key, err)
	}
	return ac, t, nil
}

func (p *Processor) readAddressTree(ctx context.Context, key batched.Pubkey) (*accountstore.AccountContext, *batched.TreeAccount, error) {
	ac, t, err := p.readTree(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if t.TreeType() != batched.TreeTypeAddress {
		return nil, nil, fmt.Errorf("%w: %s is a %s tree", ErrNotAddressTree, key, t.TreeType())
	}
	return ac, t, nil
}

func (p *Processor) readStateTree(ctx context.Context, key batched.Pubkey) (*stateTree, error) {
	treeCtx, t, err := p.readTree(ctx, key)
	if err != nil {
		return nil, err
	}
	if t.TreeType() != batched.TreeTypeState {
		return nil, fmt.Errorf("%w: %s is a %s tree", ErrNotStateTree, key, t.TreeType())
	}
	queueKey := t.Metadata().AssociatedQueue
	queueCtx, err := p.Committer.GetContext(ctx, accountstore.KindQueue, queueKey)
	if err != nil {
		return nil, err
	}
	q, err := queueCtx.OpenOutputQueue()
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", queueKey, err)
	}
	return &stateTree{treeCtx: treeCtx, queueCtx: queueCtx, tree: t, queue: q}, nil
}

// commit writes the accounts in order. When a later account fails the
// earlier ones stay written and the error wraps ErrPartialCommit.
func (p *Processor) commit(ctx context.Context, acs ...*accountstore.AccountContext) error {
	for i, ac := range acs {
		if err := p.Committer.CommitContext(ctx, ac); err != nil {
			if i == 0 {
				return err
			}
			p.Log.Infof("partial commit: %d of %d accounts written, %s %s failed: %v", i, len(acs), ac.Kind, ac.Key, err)
			return fmt.Errorf("%w: %d of %d: %w", ErrPartialCommit, i, len(acs), err)
		}
	}
	return nil
}

// CreateStateTree creates a state tree and its output queue under new
// keys.
func (p *Processor) CreateStateTree(ctx context.Context, params batched.TreeParams) (treeKey, queueKey batched.Pubkey, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("create_state_tree", start, err) }()

	treeKey, queueKey = batched.NewPubkey(), batched.NewPubkey()
	treeCtx := p.Committer.CreateContext(accountstore.KindTree, treeKey, params.TreeAccountBytes())
	queueCtx := p.Committer.CreateContext(accountstore.KindQueue, queueKey, params.OutputQueueBytes())
	if _, _, err = batched.InitStateTree(
		treeCtx.Data, queueCtx.Data, treeKey, queueKey, params, p.Cfg.TreeRent, p.Cfg.QueueRent); err != nil {
		return batched.Pubkey{}, batched.Pubkey{}, err
	}
	if err = p.commit(ctx, treeCtx, queueCtx); err != nil {
		return batched.Pubkey{}, batched.Pubkey{}, err
	}
	p.Log.Infof("created state tree %s with output queue %s, height %d", treeKey, queueKey, params.Height)
	return treeKey, queueKey, nil
}

// CreateAddressTree creates an address tree under a new key.
func (p *Processor) CreateAddressTree(ctx context.Context, params batched.TreeParams) (key batched.Pubkey, err error) {
	start := time.Now()
	defer func() { p.metrics.observe("create_address_tree", start, err) }()

	key = batched.NewPubkey()
	ac := p.Committer.CreateContext(accountstore.KindTree, key, params.TreeAccountBytes())
	if _, err = batched.InitAddressTree(ac.Data, key, params, p.Cfg.TreeRent); err != nil {
		return batched.Pubkey{}, err
	}
	if err = p.commit(ctx, ac); err != nil {
		return batched.Pubkey{}, err
	}
	p.Log.Infof("created address tree %s, height %d", key, params.Height)
	return key, nil
}

package accountstore

import (
	"context"
	"fmt"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-batchedmerkle/batched"
)

type AccountCommitter struct {
	Log   logger.Logger
	Store Store
}

func NewAccountCommitter(log logger.Logger, store Store) *AccountCommitter {
	return &AccountCommitter{
		Log:   log,
		Store: store,
	}
}

// CreateContext returns a context for a new account of the given size.
// Nothing is written until CommitContext.
func (c *AccountCommitter) CreateContext(kind AccountKind, key batched.Pubkey, size uint64) *AccountContext {
	return &AccountContext{
		Kind:     kind,
		Key:      key,
		Path:     AccountPath(kind, key),
		Creating: true,
		Data:     make([]byte, size),
	}
}

// GetContext reads an existing account.
func (c *AccountCommitter) GetContext(ctx context.Context, kind AccountKind, key batched.Pubkey) (*AccountContext, error) {
	ac := &AccountContext{
		Kind: kind,
		Key:  key,
		Path: AccountPath(kind, key),
	}
	if err := ac.ReadData(ctx, c.Store); err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, key, err)
	}
	return ac, nil
}

// CommitContext writes the account back. The write fails if the account
// changed since it was read, or exists when it is being created. On
// success ac carries the new etag and is ready for further commits.
func (c *AccountCommitter) CommitContext(ctx context.Context, ac *AccountContext) error {
	// CRITICAL: we _must_ use the etag to guard against racy updates. It will
	// be absent only when creating the account.
	if ac.ETag == "" && !ac.Creating {
		return ErrETagRequired
	}
	etag, err := c.Store.Put(ctx, ac.Path, ac.Data, ac.ETag)
	if err != nil {
		return fmt.Errorf("%s %s: %w", ac.Kind, ac.Key, err)
	}
	c.Log.Debugf("committed %s %s: etag %s -> %s", ac.Kind, ac.Key, ac.ETag, etag)
	ac.ETag = etag
	ac.Creating = false
	ac.LastRead = time.Now()
	return nil
}

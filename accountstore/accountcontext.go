package accountstore

import (
	"context"
	"time"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// AccountContext carries an account buffer between a read and the commit
// that writes it back.
//
// ETag is the store etag the Data was read at. It is empty only when the
// account is being created, which Creating must then confirm.
type AccountContext struct {
	Kind     AccountKind
	Key      batched.Pubkey
	Path     string
	ETag     string
	Creating bool
	LastRead time.Time
	Data     []byte
}

// ReadData reads the account at Path, replacing Data and ETag.
func (ac *AccountContext) ReadData(ctx context.Context, store Store) error {
	data, etag, err := store.Get(ctx, ac.Path)
	if err != nil {
		return err
	}
	ac.Data = data
	ac.ETag = etag
	ac.Creating = false
	ac.LastRead = time.Now()
	return nil
}

// OpenTree views Data as a tree account.
func (ac *AccountContext) OpenTree() (*batched.TreeAccount, error) {
	return batched.OpenTreeAccount(ac.Data, ac.Key)
}

// OpenOutputQueue views Data as an output queue account.
func (ac *AccountContext) OpenOutputQueue() (*batched.OutputQueue, error) {
	return batched.OpenOutputQueue(ac.Data, ac.Key)
}

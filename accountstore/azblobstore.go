package accountstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	azStorageBlob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/datatrails/go-datatrails-common/azblob"
)

const (
	azblobBlobNotFound      = "BlobNotFound"
	azblobConditionNotMet   = "ConditionNotMet"
	azblobBlobAlreadyExists = "BlobAlreadyExists"
)

// accountBlobStore is the part of *azblob.Storer the account store needs.
type accountBlobStore interface {
	Reader(ctx context.Context, identity string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
	Put(ctx context.Context, identity string, source io.ReadSeekCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
}

// AzblobStore keeps each account in its own blob. The blob etag is the
// account etag, so the conditional write is enforced by the blob service.
type AzblobStore struct {
	store accountBlobStore
}

func NewAzblobStore(store accountBlobStore) *AzblobStore {
	return &AzblobStore{store: store}
}

func (s *AzblobStore) Get(ctx context.Context, path string) ([]byte, string, error) {
	rr, err := s.store.Reader(ctx, path)
	if err != nil {
		return nil, "", WrapStorageError(err)
	}
	defer rr.Reader.Close()
	data, err := io.ReadAll(rr.Reader)
	if err != nil {
		return nil, "", err
	}
	if rr.ETag == nil {
		return nil, "", fmt.Errorf("account %s: blob has no etag", path)
	}
	return data, *rr.ETag, nil
}

func (s *AzblobStore) Put(ctx context.Context, path string, data []byte, etag string) (string, error) {
	var opts []azblob.Option
	if etag != "" {
		opts = append(opts, azblob.WithEtagMatch(etag))
	} else {
		// The way to spell 'fail without modifying if the blob exists' is to
		// require that no blob matches *any* etag.
		opts = append(opts, azblob.WithEtagNoneMatch("*"))
	}
	wr, err := s.store.Put(ctx, path, azblob.NewBytesReaderCloser(data), opts...)
	if err != nil {
		return "", WrapStorageError(err)
	}
	if wr.ETag == nil {
		return "", fmt.Errorf("account %s: put returned no etag", path)
	}
	return *wr.ETag, nil
}

func AsStorageError(err error) (azStorageBlob.StorageError, bool) {
	serr := &azStorageBlob.StorageError{}
	var ierr *azStorageBlob.InternalError
	if !errors.As(err, &ierr) || ierr == nil {
		return azStorageBlob.StorageError{}, false
	}
	if !ierr.As(&serr) {
		return azStorageBlob.StorageError{}, false
	}
	return *serr, true
}

// WrapStorageError translates the blob service errors that have a store
// level meaning. Any other err is returned as is.
func WrapStorageError(err error) error {
	serr, ok := AsStorageError(err)
	if !ok {
		return err
	}
	switch serr.ErrorCode {
	case azblobBlobNotFound:
		return fmt.Errorf("%s: %w", err.Error(), ErrNotFound)
	case azblobConditionNotMet:
		return fmt.Errorf("%s: %w", err.Error(), ErrContentOC)
	case azblobBlobAlreadyExists:
		return fmt.Errorf("%s: %w", err.Error(), ErrExistsOC)
	}
	return err
}

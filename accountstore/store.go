package accountstore

import "context"

// Store persists account buffers under opaque paths. Every write is
// conditional: an empty etag creates the account and fails with
// ErrExistsOC if it exists, any other etag must match the stored one or
// the write fails with ErrContentOC. A successful write returns the new
// etag.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, string, error)
	Put(ctx context.Context, path string, data []byte, etag string) (string, error)
}

// PathLister is implemented by stores that can enumerate their accounts.
type PathLister interface {
	Paths(prefix string) ([]string, error)
}

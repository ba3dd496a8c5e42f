package accountstore

import "errors"

var (
	ErrNotFound       = errors.New("account not found")
	ErrExistsOC       = errors.New("account exists, optimistic create failed")
	ErrContentOC      = errors.New("account changed since it was read, optimistic update failed")
	ErrETagRequired   = errors.New("etag is required when updating any account")
	ErrPathInvalid    = errors.New("not an account path")
	ErrStoreNotOpened = errors.New("account store is not open")
)

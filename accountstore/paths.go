package accountstore

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/forestrie/go-batchedmerkle/batched"
)

const (
	V1AccountPrefix = "v1/batchedmerkle"

	V1AccountPathSep = "/"
	V1AccountExtSep  = "."
	V1AccountExt     = "acc"

	// AccountInstanceN versions the account layout. A layout change starts
	// a new instance rather than rewriting accounts in place.
	AccountInstanceN = 0
)

// AccountKind selects the prefix an account is stored under.
type AccountKind string

const (
	KindTree  AccountKind = "trees"
	KindQueue AccountKind = "queues"
)

// AccountPrefix returns the path prefix of every account of the given kind.
func AccountPrefix(kind AccountKind) string {
	return fmt.Sprintf("%s/%d/%s/", V1AccountPrefix, AccountInstanceN, kind)
}

// AccountPath returns the storage path of an account.
func AccountPath(kind AccountKind, key batched.Pubkey) string {
	return AccountPrefix(kind) + key.String() + V1AccountExtSep + V1AccountExt
}

// ParseAccountPath recovers the kind and key from a path made by
// AccountPath.
func ParseAccountPath(storagePath string) (AccountKind, batched.Pubkey, error) {
	var key batched.Pubkey
	for _, kind := range []AccountKind{KindTree, KindQueue} {
		prefix := AccountPrefix(kind)
		i := strings.Index(storagePath, prefix)
		if i == -1 {
			continue
		}
		name, ok := strings.CutSuffix(storagePath[i+len(prefix):], V1AccountExtSep+V1AccountExt)
		if !ok || strings.Contains(name, V1AccountPathSep) {
			return "", key, fmt.Errorf("%w: %s", ErrPathInvalid, storagePath)
		}
		b, err := hex.DecodeString(name)
		if err != nil || len(b) != len(key) {
			return "", key, fmt.Errorf("%w: %s", ErrPathInvalid, storagePath)
		}
		copy(key[:], b)
		return kind, key, nil
	}
	return "", key, fmt.Errorf("%w: %s", ErrPathInvalid, storagePath)
}

package forester

import "errors"

var (
	ErrReplicaOutOfSync = errors.New("forester: replica does not match the tree")
	ErrHasherMismatch   = errors.New("forester: replica and tree use different hashers")
	ErrLeafCount        = errors.New("forester: leaf count is not the zkp batch size")
	ErrLeafMismatch     = errors.New("forester: replica leaf does not hold the account hash")
	ErrUnknownCircuit   = errors.New("forester: unknown circuit")
)

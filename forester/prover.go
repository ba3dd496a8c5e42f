package forester

import (
	"context"

	"github.com/forestrie/go-batchedmerkle/batched"
)

// Prover turns a proof request into a compressed proof.
type Prover interface {
	Prove(ctx context.Context, req *ProofRequest) (batched.CompressedProof, error)
}

// ProverFunc adapts a function to Prover.
type ProverFunc func(ctx context.Context, req *ProofRequest) (batched.CompressedProof, error)

func (f ProverFunc) Prove(ctx context.Context, req *ProofRequest) (batched.CompressedProof, error) {
	return f(ctx, req)
}

// Package miner implements the UniversalHash v4 search loop: a worker pool
// of interleaved-nonce hashers racing to find a proof that meets a
// difficulty target.
package miner

import "context"

// Proof is the triple the miner search loop produces on success, together
// with the miner address used to compute it.
type Proof struct {
	Hash      [32]byte
	Nonce     uint64
	Timestamp uint64
	Address   string
}

// SeedSource supplies the byte seed the miner mixes into every hash input.
// Implementations fetch this from an external collaborator; the core
// never parses or validates it beyond using it as bytes.
type SeedSource interface {
	Seed(ctx context.Context) ([]byte, error)
}

// DifficultySource supplies the current required leading-zero-bit count.
type DifficultySource interface {
	Difficulty(ctx context.Context) (uint32, error)
}

// ProofSink receives a found proof. Submission is fire-and-forget from the
// miner's point of view: a failure is logged and mining continues with a
// fresh round.
type ProofSink interface {
	SubmitProof(ctx context.Context, proof Proof) error
}

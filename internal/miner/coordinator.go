package miner

import (
	"context"
	"sync"
	"time"

	"github.com/cyberia-to/uhash/internal/util"
)

// CoordinatorConfig configures the between-round refresh behavior.
type CoordinatorConfig struct {
	Address string

	// RefreshInterval bounds how long a single round runs before the
	// coordinator re-fetches (seed, difficulty) from its collaborators, even
	// if no proof has been found yet.
	RefreshInterval time.Duration

	// DifficultyOverride, if non-zero, is used instead of querying
	// DifficultySource every round (operator-pinned difficulty).
	DifficultyOverride uint32

	// SingleShot stops the coordinator after the first proof is found,
	// instead of starting a fresh round.
	SingleShot bool
}

// Coordinator drives the worker pool across rounds, refreshing the seed and
// difficulty between rounds and dispatching found proofs to a ProofSink.
// This is additive to the core: it is grounded on the predecessor's
// internal/master.go ticker/context/WaitGroup job-refresh idiom, retargeted
// from block-template refresh to seed/difficulty refresh (DESIGN.md).
type Coordinator struct {
	cfg  CoordinatorConfig
	pool *Pool

	seeds       SeedSource
	difficulty  DifficultySource
	sink        ProofSink
	onProof     func(Proof)

	mu       sync.Mutex
	lastProof *Proof
}

// NewCoordinator constructs a Coordinator around an existing pool.
func NewCoordinator(cfg CoordinatorConfig, pool *Pool, seeds SeedSource, difficulty DifficultySource, sink ProofSink) *Coordinator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	return &Coordinator{
		cfg:        cfg,
		pool:       pool,
		seeds:      seeds,
		difficulty: difficulty,
		sink:       sink,
	}
}

// OnProof registers a callback invoked (in addition to the ProofSink) every
// time a proof is found, so observers such as internal/notify and
// internal/storage can react without being in the submission's critical path.
func (c *Coordinator) OnProof(fn func(Proof)) {
	c.onProof = fn
}

// LastProof returns the most recently found proof, if any.
func (c *Coordinator) LastProof() *Proof {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProof
}

// Run drives rounds until ctx is cancelled or, in single-shot mode, until the
// first proof is found.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		seed, err := c.seeds.Seed(ctx)
		if err != nil {
			util.Warnf("miner: failed to fetch seed, retrying: %v", err)
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		difficulty := c.cfg.DifficultyOverride
		if difficulty == 0 {
			difficulty, err = c.difficulty.Difficulty(ctx)
			if err != nil {
				util.Warnf("miner: failed to fetch difficulty, retrying: %v", err)
				if !sleep(ctx, time.Second) {
					return ctx.Err()
				}
				continue
			}
		}

		roundCtx, cancel := context.WithTimeout(ctx, c.cfg.RefreshInterval)
		proof := c.pool.RunRound(roundCtx, seed, c.cfg.Address, difficulty, uint64(time.Now().Unix()))
		cancel()

		if proof == nil {
			// Round timed out without a proof: loop back and refresh.
			continue
		}

		c.mu.Lock()
		c.lastProof = proof
		c.mu.Unlock()

		if c.onProof != nil {
			c.onProof(*proof)
		}

		// Submission is fire-and-forget: a failure is logged and mining
		// continues with a fresh round.
		if err := c.sink.SubmitProof(ctx, *proof); err != nil {
			util.Errorf("miner: proof submission failed: %v", err)
		}

		if c.cfg.SingleShot {
			return nil
		}
	}
}

// sleep waits for d or ctx cancellation, reporting whether it completed the
// full duration.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

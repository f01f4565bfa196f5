package uhash

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/zeebo/blake3"
)

// blake3Sum256 computes the full 32-byte BLAKE3 hash of data. Unlike the
// primitives package's raw 7-round compression, this is the complete BLAKE3
// hash function, used for seed derivation and finalization.
func blake3Sum256(data []byte) [32]byte {
	h := blake3.New()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hasher is a reusable UniversalHash v4 instance. Constructing one allocates
// Chains scratchpads of ScratchpadSize bytes each (~2 MiB total); callers
// should construct one Hasher per worker and reuse it across hashes rather
// than reallocating. A Hasher must not be shared across goroutines.
type Hasher struct {
	scratchpads [Chains][]byte
	chainStates [Chains][32]byte
}

// New constructs a Hasher, allocating its scratchpads.
func New() *Hasher {
	h := &Hasher{}
	for c := 0; c < Chains; c++ {
		h.scratchpads[c] = make([]byte, ScratchpadSize)
	}
	return h
}

// extractNonce computes the effective nonce: it is
// the little-endian u64 of the last 8 bytes of input, or derived from
// BLAKE3(input) when input is shorter than 8 bytes. header is everything
// before the nonce bytes (empty when len(input) < 8).
func extractNonce(input []byte) (nonce uint64, header []byte) {
	if len(input) >= 8 {
		n := len(input)
		nonce = binary.LittleEndian.Uint64(input[n-8 : n])
		header = input[:n-8]
		return nonce, header
	}

	digest := blake3Sum256(input)
	nonce = binary.LittleEndian.Uint64(digest[0:8])
	return nonce, nil
}

// perChainSeed derives the 32-byte seed for chain c.
func perChainSeed(header []byte, effectiveNonce uint64, chain int) [32]byte {
	modifiedNonce := effectiveNonce ^ (uint64(chain) * GoldenRatio)

	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], modifiedNonce)

	buf := make([]byte, 0, len(header)+8)
	buf = append(buf, header...)
	buf = append(buf, nonceBytes[:]...)

	return blake3Sum256(buf)
}

// Hash computes the UniversalHash v4 digest of input, executing the four
// chains concurrently. The result is identical to HashSequential for the
// same input.
func (h *Hasher) Hash(input []byte) [32]byte {
	return h.hash(input, true)
}

// HashSequential computes the same digest as Hash but runs the four chains
// one after another on the calling goroutine. It exists to exercise and test
// the parallel/sequential agreement invariant.
func (h *Hasher) HashSequential(input []byte) [32]byte {
	return h.hash(input, false)
}

func (h *Hasher) hash(input []byte, parallel bool) [32]byte {
	effectiveNonce, header := extractNonce(input)

	var initialPrimitive [Chains]uint64
	for c := 0; c < Chains; c++ {
		seed := perChainSeed(header, effectiveNonce, c)
		h.chainStates[c] = seed
		fillScratchpad(h.scratchpads[c], seed)
		initialPrimitive[c] = (effectiveNonce + uint64(c)) % 3
	}

	if parallel {
		var wg sync.WaitGroup
		wg.Add(Chains)
		for c := 0; c < Chains; c++ {
			c := c
			go func() {
				defer wg.Done()
				h.chainStates[c] = executeChain(h.scratchpads[c], h.chainStates[c], initialPrimitive[c])
			}()
		}
		wg.Wait()
	} else {
		for c := 0; c < Chains; c++ {
			h.chainStates[c] = executeChain(h.scratchpads[c], h.chainStates[c], initialPrimitive[c])
		}
	}

	var combined [32]byte
	for c := 0; c < Chains; c++ {
		for i := 0; i < 32; i++ {
			combined[i] ^= h.chainStates[c][i]
		}
	}

	shaSum := sha256.Sum256(combined[:])
	return blake3Sum256(shaSum[:])
}

// Hash is a convenience one-shot form of Hasher.Hash for callers that do not
// need to reuse scratchpad allocations across calls.
func Hash(input []byte) [32]byte {
	return New().Hash(input)
}

package uhash

import "github.com/cyberia-to/uhash/internal/primitives"

// fillScratchpad expands a 32-byte per-chain seed into a full ScratchpadSize
// buffer of pseudorandom bytes using iterated AES-4.
//
// The state carried into block i+1 is always the post-first-expansion value
// (never the post-second-expansion value computed in step 3). This is a
// strict invariant: carrying the wrong value diverges from the known-answer
// vector.
func fillScratchpad(scratchpad []byte, seed [32]byte) {
	var key, state [16]byte
	copy(key[:], seed[0:16])
	copy(state[:], seed[16:32])

	for i := 0; i < BlocksPerScratchpad; i++ {
		off := i * BlockSize

		state = primitives.AESExpandBlock(state, key)
		copy(scratchpad[off:off+16], state[:])

		state2 := primitives.AESExpandBlock(state, key)
		copy(scratchpad[off+16:off+32], state2[:])

		// Intentional duplication of the first 32 bytes into the second 32.
		copy(scratchpad[off+32:off+48], state[:])
		copy(scratchpad[off+48:off+64], state2[:])
	}
}

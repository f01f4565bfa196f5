package uhash

import "github.com/cyberia-to/uhash/internal/primitives"

// executeChain runs the fixed number of rounds over one chain's filled
// scratchpad, starting from the chain's seed-initialized state
// It returns the final chain state.
func executeChain(scratchpad []byte, state [32]byte, initialPrimitive uint64) [32]byte {
	for r := uint64(0); r < Rounds; r++ {
		addr := mixAddress(state, r)

		var block [64]byte
		copy(block[:], scratchpad[addr:addr+BlockSize])

		primitiveIndex := (initialPrimitive + r + 1) % 3

		var newState [32]byte
		switch primitiveIndex {
		case 0:
			newState = primitives.AESCompress(state, block)
		case 1:
			newState = primitives.SHA256Compress(state, block)
		default:
			newState = primitives.BLAKE3Compress(state, block)
		}

		// Write only the first 32 bytes back to the same address that was
		// read; the remaining 32 bytes of the block are left untouched.
		copy(scratchpad[addr:addr+32], newState[:])

		state = newState
	}
	return state
}

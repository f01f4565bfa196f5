package uhash

import "encoding/binary"

func rotl64(x uint64, n uint) uint64 {
	return (x << n) | (x >> (64 - n))
}

// mixAddress computes the scratchpad byte offset for the given chain state
// and round index. The bitmask replaces a modulus
// because BlocksPerScratchpad is a power of two; this must never change to a
// modulus, since the exact bit pattern of mixed determines which blocks are
// probed and therefore the final hash.
func mixAddress(state [32]byte, round uint64) int {
	lo := binary.LittleEndian.Uint64(state[0:8])
	hi := binary.LittleEndian.Uint64(state[8:16])

	mixed := lo ^ hi ^ rotl64(round, 13) ^ (round * MixingConstant)
	blockIndex := mixed & AddressMask
	return int(blockIndex) * BlockSize
}

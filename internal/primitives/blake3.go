package primitives

import "encoding/binary"

// blake3IV is the initialization vector shared with SHA-256 (BLAKE3 reuses it).
var blake3IV = [8]uint32{
	0x6A09E667, 0xBB67AE85, 0x3C6EF372, 0xA54FF53A,
	0x510E527F, 0x9B05688C, 0x1F83D9AB, 0x5BE0CD19,
}

// blake3MsgSchedule is BLAKE3's message-word permutation, one row per round.
var blake3MsgSchedule = [7][16]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{2, 6, 3, 10, 7, 0, 4, 13, 1, 11, 12, 5, 9, 14, 15, 8},
	{3, 4, 10, 12, 13, 2, 7, 14, 6, 5, 9, 0, 11, 15, 8, 1},
	{10, 7, 12, 9, 14, 3, 13, 15, 4, 0, 11, 2, 5, 8, 1, 6},
	{12, 13, 9, 11, 15, 10, 14, 8, 7, 2, 5, 3, 0, 1, 6, 4},
	{9, 14, 11, 5, 8, 12, 15, 1, 13, 3, 0, 10, 2, 6, 4, 7},
	{11, 15, 5, 0, 1, 9, 8, 6, 14, 10, 2, 12, 3, 4, 7, 13},
}

func rotr32b(x uint32, n uint) uint32 {
	return (x >> n) | (x << (32 - n))
}

// g applies BLAKE3's mixing function to state indices a,b,c,d with message words mx, my.
func g(v *[16]uint32, a, b, c, d int, mx, my uint32) {
	v[a] = v[a] + v[b] + mx
	v[d] = rotr32b(v[d]^v[a], 16)
	v[c] = v[c] + v[d]
	v[b] = rotr32b(v[b]^v[c], 12)
	v[a] = v[a] + v[b] + my
	v[d] = rotr32b(v[d]^v[a], 8)
	v[c] = v[c] + v[d]
	v[b] = rotr32b(v[b]^v[c], 7)
}

// BLAKE3Compress implements the 7-round BLAKE3 mixing primitive
// state supplies the low 8 words of the 16-word matrix;
// the high 8 words are the BLAKE3 IV. block supplies the 16 little-endian
// message words mixed in per the round's permutation schedule.
func BLAKE3Compress(state [32]byte, block [64]byte) [32]byte {
	var v [16]uint32
	for i := 0; i < 8; i++ {
		v[i] = binary.LittleEndian.Uint32(state[i*4 : i*4+4])
	}
	copy(v[8:16], blake3IV[:])

	var m [16]uint32
	for i := 0; i < 16; i++ {
		m[i] = binary.LittleEndian.Uint32(block[i*4 : i*4+4])
	}

	for round := 0; round < 7; round++ {
		s := blake3MsgSchedule[round]

		g(&v, 0, 4, 8, 12, m[s[0]], m[s[1]])
		g(&v, 1, 5, 9, 13, m[s[2]], m[s[3]])
		g(&v, 2, 6, 10, 14, m[s[4]], m[s[5]])
		g(&v, 3, 7, 11, 15, m[s[6]], m[s[7]])

		g(&v, 0, 5, 10, 15, m[s[8]], m[s[9]])
		g(&v, 1, 6, 11, 12, m[s[10]], m[s[11]])
		g(&v, 2, 7, 8, 13, m[s[12]], m[s[13]])
		g(&v, 3, 4, 9, 14, m[s[14]], m[s[15]])
	}

	var out [32]byte
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], v[i]^v[i+8])
	}
	return out
}

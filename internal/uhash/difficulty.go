package uhash

import "math/bits"

// MeetsDifficulty reports whether hash has at least bits leading zero bits
// when read as a big-endian bit string. It early-exits
// at the first non-zero byte.
//
//	h := [32]byte{0x00, 0x00, 0x0F}
//	MeetsDifficulty(h, 16) // true: two leading zero bytes
//	MeetsDifficulty(h, 20) // true: 0x0F has 4 leading zero bits
//	MeetsDifficulty(h, 21) // false
func MeetsDifficulty(hash [32]byte, requiredBits uint32) bool {
	var leading uint32
	for _, b := range hash {
		if b == 0 {
			leading += 8
			continue
		}
		leading += uint32(bits.LeadingZeros8(b))
		break
	}
	return leading >= requiredBits
}

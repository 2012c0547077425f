package hamming

import "math/bits"

// Encode8 returns the Hamming 8/4 codeword for the low nibble of v.
func Encode8(v int) byte {
	return encode8[v&0x0F]
}

// Encode16 writes v as two Hamming 8/4 bytes, low nibble first.
func Encode16(dst []byte, v int) {
	dst[0] = encode8[v&0x0F]
	dst[1] = encode8[(v>>4)&0x0F]
}

// Encode24 writes the 18 low bits of v as a Hamming 24/18 triplet.
func Encode24(dst []byte, v int) {
	d := uint32(v) & 0x3FFFF
	w := (d&0x01)<<2 |
		(d&0x0E)<<3 |
		(d&0x7F0)<<4 |
		(d&0x3F800)<<5

	for k := uint(0); k < 5; k++ {
		var x uint32
		for pos := uint(1); pos <= 23; pos++ {
			if pos&(1<<k) != 0 {
				x ^= (w >> (pos - 1)) & 1
			}
		}
		if x == 0 {
			w |= 1 << ((1 << k) - 1)
		}
	}
	if bits.OnesCount32(w)&1 == 0 {
		w |= 1 << 23
	}

	dst[0] = byte(w)
	dst[1] = byte(w >> 8)
	dst[2] = byte(w >> 16)
}

// SetParity returns c with the top bit chosen for odd parity.
func SetParity(c byte) byte {
	c &= 0x7F
	if bits.OnesCount8(c)&1 == 0 {
		c |= 0x80
	}
	return c
}

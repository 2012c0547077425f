// Package hamming decodes the codewords used by Teletext (ETS 300 706
// section 8): Hamming 8/4, Hamming 24/18 and 7-bit odd parity. Decoders
// return -1 for uncorrectable input; single-bit errors are corrected.
package hamming

import (
	"errors"
	"math/bits"
)

// ErrUncorrectable is wrapped by callers that turn a -1 decode result into
// an error value.
var ErrUncorrectable = errors.New("hamming: uncorrectable codeword")

// encode8 maps a 4-bit value to its Hamming 8/4 codeword as transmitted
// (bit 0 first on the wire).
var encode8 = [16]byte{
	0x15, 0x02, 0x49, 0x5E, 0x64, 0x73, 0x38, 0x2F,
	0xD0, 0xC7, 0x8C, 0x9B, 0xA1, 0xB6, 0xFD, 0xEA,
}

var unham8Table [256]int8

func init() {
	for i := 0; i < 256; i++ {
		unham8Table[i] = -1
		for v, code := range encode8 {
			if bits.OnesCount8(byte(i)^code) <= 1 {
				unham8Table[i] = int8(v)
				break
			}
		}
	}
}

// Unham8 decodes one Hamming 8/4 byte into 4 data bits.
func Unham8(b byte) int {
	return int(unham8Table[b])
}

// Unham16 decodes two consecutive Hamming 8/4 bytes into 8 data bits, the
// first byte supplying the low nibble.
func Unham16(p []byte) int {
	lo := unham8Table[p[0]]
	hi := unham8Table[p[1]]
	if lo < 0 || hi < 0 {
		return -1
	}
	return int(lo) | int(hi)<<4
}

// Unham24 decodes a Hamming 24/18 triplet (three bytes, least significant
// byte first) into 18 data bits.
func Unham24(p []byte) int {
	w := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16

	// Bit n of w holds transmission position n+1.
	var syndrome uint
	for k := uint(0); k < 5; k++ {
		var x uint32
		for pos := uint(1); pos <= 23; pos++ {
			if pos&(1<<k) != 0 {
				x ^= (w >> (pos - 1)) & 1
			}
		}
		if x == 0 {
			syndrome |= 1 << k
		}
	}
	overallOK := bits.OnesCount32(w)&1 == 1

	switch {
	case syndrome == 0 && overallOK:
	case !overallOK:
		if syndrome > 23 {
			return -1
		}
		if syndrome == 0 {
			w ^= 1 << 23
		} else {
			w ^= 1 << (syndrome - 1)
		}
	default:
		return -1
	}

	return int(w>>2&0x01 |
		w>>3&0x0E |
		w>>4&0x7F0 |
		w>>5&0x3F800)
}

// Parity checks 7-bit odd parity and returns the data bits, or -1.
func Parity(b byte) int {
	if bits.OnesCount8(b)&1 == 0 {
		return -1
	}
	return int(b & 0x7F)
}

// Rev8 reverses the bit order of b. EN 300 472 carries Teletext bytes
// most significant bit first.
func Rev8(b byte) byte {
	return bits.Reverse8(b)
}

// Rev16P reads two transmitted bytes, first byte low, each in reversed
// bit order.
func Rev16P(p []byte) int {
	return int(bits.Reverse8(p[0])) | int(bits.Reverse8(p[1]))<<8
}

// Rev16 reverses the bit order of a 16-bit value.
func Rev16(v uint16) uint16 {
	return bits.Reverse16(v)
}

package hamming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnham8_Golden(t *testing.T) {
	t.Parallel()

	golden := map[byte]int{
		0x15: 0x0, 0x02: 0x1, 0x49: 0x2, 0x5E: 0x3,
		0x64: 0x4, 0x73: 0x5, 0x38: 0x6, 0x2F: 0x7,
		0xD0: 0x8, 0xC7: 0x9, 0x8C: 0xA, 0x9B: 0xB,
		0xA1: 0xC, 0xB6: 0xD, 0xFD: 0xE, 0xEA: 0xF,
	}
	for code, want := range golden {
		assert.Equal(t, want, Unham8(code), "code 0x%02X", code)
	}
}

func TestUnham8_SingleBitCorrected(t *testing.T) {
	t.Parallel()

	for v := 0; v < 16; v++ {
		code := Encode8(v)
		for bit := 0; bit < 8; bit++ {
			got := Unham8(code ^ 1<<bit)
			require.Equal(t, v, got, "value %x bit %d", v, bit)
		}
	}
}

func TestUnham8_DoubleBitDetected(t *testing.T) {
	t.Parallel()

	for v := 0; v < 16; v++ {
		code := Encode8(v)
		for a := 0; a < 8; a++ {
			for b := a + 1; b < 8; b++ {
				got := Unham8(code ^ 1<<a ^ 1<<b)
				require.Equal(t, -1, got, "value %x bits %d,%d", v, a, b)
			}
		}
	}
}

func TestUnham16(t *testing.T) {
	t.Parallel()

	var buf [2]byte
	for v := 0; v < 256; v++ {
		Encode16(buf[:], v)
		require.Equal(t, v, Unham16(buf[:]))

		for bit := 0; bit < 16; bit++ {
			flipped := buf
			flipped[bit/8] ^= 1 << (bit % 8)
			require.Equal(t, v, Unham16(flipped[:]), "value %02x bit %d", v, bit)
		}

		for a := 0; a < 8; a++ {
			for b := a + 1; b < 8; b++ {
				flipped := buf
				flipped[1] ^= 1<<a | 1<<b
				require.Equal(t, -1, Unham16(flipped[:]), "value %02x bits %d,%d", v, a, b)
			}
		}
	}
}

func sample24() []int {
	vs := []int{0, 1, 0x2AAAA, 0x15555, 0x3FFFF, 0x20000, 0x00800}
	for v := 3; v < 1<<18; v += 4099 {
		vs = append(vs, v)
	}
	return vs
}

func TestUnham24_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf [3]byte
	for _, v := range sample24() {
		Encode24(buf[:], v)
		require.Equal(t, v, Unham24(buf[:]), "value %05x", v)
	}
}

func TestUnham24_SingleBitCorrected(t *testing.T) {
	t.Parallel()

	var buf [3]byte
	for _, v := range sample24() {
		Encode24(buf[:], v)
		for bit := 0; bit < 24; bit++ {
			flipped := buf
			flipped[bit/8] ^= 1 << (bit % 8)
			require.Equal(t, v, Unham24(flipped[:]), "value %05x bit %d", v, bit)
		}
	}
}

func TestUnham24_DoubleBitDetected(t *testing.T) {
	t.Parallel()

	var buf [3]byte
	for _, v := range sample24() {
		Encode24(buf[:], v)
		for a := 0; a < 24; a++ {
			for b := a + 1; b < 24; b++ {
				flipped := buf
				flipped[a/8] ^= 1 << (a % 8)
				flipped[b/8] ^= 1 << (b % 8)
				require.Equal(t, -1, Unham24(flipped[:]), "value %05x bits %d,%d", v, a, b)
			}
		}
	}
}

func TestParity(t *testing.T) {
	t.Parallel()

	for c := 0; c < 128; c++ {
		p := SetParity(byte(c))
		assert.Equal(t, c, Parity(p))
		assert.Equal(t, -1, Parity(p^0x01))
	}
}

func TestRev8(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x27), Rev8(0xE4))
	assert.Equal(t, byte(0x01), Rev8(0x80))
	assert.Equal(t, uint16(0x8000), Rev16(0x0001))
	assert.Equal(t, 0x2C01, Rev16P([]byte{0x80, 0x34}))
}

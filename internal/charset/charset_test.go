package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDesignation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		g0   Set
		sub  Subset
	}{
		{0, LatinG0, English},
		{1, LatinG0, German},
		{8, LatinG0, Polish},
		{36, CyrillicG0, NoSubset},
		{55, GreekG0, NoSubset},
		{85, HebrewG0, NoSubset},
		{7, LatinG0, English},
	}
	for _, tt := range tests {
		f := Designation(tt.code)
		assert.Equal(t, tt.g0, f.G0Set, "code %d", tt.code)
		assert.Equal(t, tt.sub, f.Subset, "code %d", tt.code)
	}
	assert.False(t, Known(7))
	assert.True(t, Known(36))
}

func TestLatinNationalSubsets(t *testing.T) {
	t.Parallel()

	en := Designation(0)
	de := Designation(1)
	assert.Equal(t, '£', en.G0(0x23))
	assert.Equal(t, '#', de.G0(0x23))
	assert.Equal(t, 'Ä', de.G0(0x5B))
	assert.Equal(t, 'ß', de.G0(0x7E))
	assert.Equal(t, 'A', de.G0('A'))
	assert.Equal(t, '■', en.G0(0x7F))
	assert.Equal(t, 'ñ', Designation(5).G0(0x7C))
}

func TestCyrillic(t *testing.T) {
	t.Parallel()

	f := Designation(36)
	assert.Equal(t, 'Ю', f.G0(0x40))
	assert.Equal(t, 'А', f.G0(0x41))
	assert.Equal(t, 'Б', f.G0(0x42))
	assert.Equal(t, 'а', f.G0(0x61))
	assert.Equal(t, '1', f.G0('1'))
}

func TestGreek(t *testing.T) {
	t.Parallel()

	f := Designation(55)
	assert.Equal(t, 'Α', f.G0(0x41))
	assert.Equal(t, 'α', f.G0(0x61))
	assert.Equal(t, '7', f.G0('7'))
}

func TestHebrew(t *testing.T) {
	t.Parallel()

	f := Designation(85)
	assert.Equal(t, 'א', f.G0(0x60))
	assert.Equal(t, 'ת', f.G0(0x7A))
}

func TestG2(t *testing.T) {
	t.Parallel()

	f := Designation(0)
	assert.Equal(t, '¡', f.G2(0x21))
	assert.Equal(t, 'Ω', f.G2(0x60))
	assert.Equal(t, 'ß', f.G2(0x7B))
}

func TestMosaic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ' ', Mosaic(0x20, false))
	assert.Equal(t, '█', Mosaic(0x7F, false))
	assert.Equal(t, rune(0x1FB00), Mosaic(0x21, false))
	assert.Equal(t, '▌', Mosaic(0x35, false))
	assert.Equal(t, '▐', Mosaic(0x6A, false))
	assert.Equal(t, rune(0x1FB3B), Mosaic(0x7E, false))
	assert.Equal(t, SeparatedBase+1, Mosaic(0x21, true))

	assert.True(t, IsMosaic(0x21))
	assert.False(t, IsMosaic(0x41))
	assert.True(t, IsMosaic(0x7F))
}

func TestCompose(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 'é', Compose('e', 2))
	assert.Equal(t, 'ü', Compose('u', 8))
	assert.Equal(t, 'č', Compose('c', 15))
	assert.Equal(t, 'q', Compose('q', 11))
	assert.Equal(t, 'a', Compose('a', 0))
}

func TestDRCSIndex(t *testing.T) {
	t.Parallel()

	r := DRCS(true, 7)
	normal, i, ok := DRCSIndex(r)
	assert.True(t, ok)
	assert.True(t, normal)
	assert.Equal(t, 7, i)

	_, _, ok = DRCSIndex('A')
	assert.False(t, ok)
}

func TestG2SharedAcrossDesignations(t *testing.T) {
	t.Parallel()

	for _, code := range []int{0, 36, 55, 71, 85} {
		f := Designation(code)
		assert.Equal(t, '¡', f.G2(0x21), "code %d", code)
		assert.Equal(t, '½', f.G2(0x3D), "code %d", code)
		assert.Equal(t, ' ', f.G2(0x05), "code %d", code)
	}
	assert.Equal(t, "cyrillic-g0", Designation(36).G0Set.String())
}

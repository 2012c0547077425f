package charset

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Private use ranges for glyphs Unicode does not cover.
const (
	SeparatedBase rune = 0xEE00
	G3Base        rune = 0xEF00
	DRCSBase      rune = 0xF000
)

// IsMosaic reports whether c is a G1 block mosaic code rather than a
// blast-through G0 capital (0x40-0x5F).
func IsMosaic(c byte) bool {
	c &= 0x7F
	return c >= 0x20 && (c < 0x40 || c >= 0x60)
}

// Sextant returns the 6-bit cell pattern of mosaic code c. Bit 0 is the
// top left cell, bit 5 the bottom right one.
func Sextant(c byte) int {
	return int(c&0x1F) | int(c&0x40)>>1
}

// Mosaic returns the character for G1 mosaic code c. Contiguous mosaics
// map to the Unicode block sextants; separated ones map to the private
// use area at SeparatedBase.
func Mosaic(c byte, separated bool) rune {
	s := Sextant(c)
	if separated {
		return SeparatedBase + rune(s)
	}
	switch s {
	case 0:
		return ' '
	case 21:
		return '▌'
	case 42:
		return '▐'
	case 63:
		return '█'
	}
	i := s - 1
	if s > 21 {
		i--
	}
	if s > 42 {
		i--
	}
	return 0x1FB00 + rune(i)
}

// IsSeparated reports whether r is a separated mosaic.
func IsSeparated(r rune) bool {
	return r >= SeparatedBase && r < SeparatedBase+64
}

// G3 returns the private use character for smooth mosaic and line drawing
// code c.
func G3(c byte) rune {
	return G3Base + rune(c&0x7F)
}

// DRCS returns the private use character for glyph i (0-47) of a global
// or normal DRCS page.
func DRCS(normal bool, i int) rune {
	r := DRCSBase + rune(i&0x3F)
	if normal {
		r += 0x40
	}
	return r
}

// DRCSIndex reverses DRCS.
func DRCSIndex(r rune) (normal bool, i int, ok bool) {
	if r < DRCSBase || r >= DRCSBase+0x80 {
		return false, 0, false
	}
	d := int(r - DRCSBase)
	return d >= 0x40, d & 0x3F, true
}

// Compose applies diacritical mark code 1-15 to base. When Unicode has no
// precomposed form the base character is returned unchanged.
func Compose(base rune, mark int) rune {
	if mark <= 0 || mark > 15 {
		return base
	}
	s := norm.NFC.String(string(base) + string(combining[mark]))
	r, n := utf8.DecodeRuneInString(s)
	if n != len(s) {
		return base
	}
	return r
}

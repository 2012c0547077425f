// Package charset maps Teletext character codes to Unicode. It covers the
// G0 sets with their national option subsets, the Latin G2 supplementary
// set, G1 block mosaics, G3 smooth mosaics, diacritical composition and
// the 7-bit character set designation codes carried by X/28 and M/29.
package charset

import (
	"fmt"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// Set identifies a G0 character set.
type Set int

// Character sets.
const (
	LatinG0 Set = iota
	CyrillicG0
	GreekG0
	ArabicG0
	HebrewG0
)

func (s Set) String() string {
	switch s {
	case LatinG0:
		return "latin-g0"
	case CyrillicG0:
		return "cyrillic-g0"
	case GreekG0:
		return "greek-g0"
	case ArabicG0:
		return "arabic-g0"
	case HebrewG0:
		return "hebrew-g0"
	}
	return fmt.Sprintf("set(%d)", int(s))
}

// Subset is a Latin G0 national option subset.
type Subset int

// National option subsets.
const (
	NoSubset Subset = iota
	Czech
	English
	Estonian
	French
	German
	Italian
	Lettish
	Polish
	Spanish
	Rumanian
	Serbian
	Swedish
	Turkish
)

// Font is a resolved character set designation.
type Font struct {
	G0Set  Set
	Subset Subset
	Name   string
}

var defaultFont = Font{LatinG0, English, "English"}

// designations is indexed by the 7-bit designation code: region in bits
// 3-6 and national option in bits 0-2. Missing codes are unassigned.
var designations = map[int]Font{
	0: {LatinG0, English, "English"},
	1: {LatinG0, German, "German"},
	2: {LatinG0, Swedish, "Swedish/Finnish/Hungarian"},
	3: {LatinG0, Italian, "Italian"},
	4: {LatinG0, French, "French"},
	5: {LatinG0, Spanish, "Portuguese/Spanish"},
	6: {LatinG0, Czech, "Czech/Slovak"},

	8:  {LatinG0, Polish, "Polish"},
	9:  {LatinG0, German, "German"},
	10: {LatinG0, Swedish, "Swedish/Finnish/Hungarian"},
	11: {LatinG0, Italian, "Italian"},
	12: {LatinG0, French, "French"},
	14: {LatinG0, Czech, "Czech/Slovak"},

	16: {LatinG0, English, "English"},
	17: {LatinG0, German, "German"},
	18: {LatinG0, Swedish, "Swedish/Finnish/Hungarian"},
	19: {LatinG0, Italian, "Italian"},
	20: {LatinG0, French, "French"},
	21: {LatinG0, Spanish, "Portuguese/Spanish"},
	22: {LatinG0, Turkish, "Turkish"},

	29: {LatinG0, Serbian, "Serbian/Croatian/Slovenian"},
	31: {LatinG0, Rumanian, "Rumanian"},

	32: {CyrillicG0, NoSubset, "Serbian/Croatian"},
	33: {LatinG0, German, "German"},
	34: {LatinG0, Estonian, "Estonian"},
	35: {LatinG0, Lettish, "Lettish/Lithuanian"},
	36: {CyrillicG0, NoSubset, "Russian/Bulgarian"},
	37: {CyrillicG0, NoSubset, "Ukrainian"},
	38: {LatinG0, Czech, "Czech/Slovak"},

	54: {LatinG0, Turkish, "Turkish"},
	55: {GreekG0, NoSubset, "Greek"},

	64: {LatinG0, English, "English"},
	68: {LatinG0, French, "French"},
	71: {ArabicG0, NoSubset, "Arabic"},

	85: {HebrewG0, NoSubset, "Hebrew"},
	87: {ArabicG0, NoSubset, "Arabic"},
}

// Designation resolves a 7-bit character set designation code. Unassigned
// codes resolve to the English Latin set.
func Designation(code int) Font {
	if f, ok := designations[code&0x7F]; ok {
		return f
	}
	return defaultFont
}

// Known reports whether code is an assigned designation.
func Known(code int) bool {
	_, ok := designations[code&0x7F]
	return ok
}

// G0 returns the Unicode character for code c (0x20-0x7F) of the font's
// G0 set.
func (f Font) G0(c byte) rune {
	c &= 0x7F
	if c < 0x20 {
		return ' '
	}
	switch f.G0Set {
	case CyrillicG0:
		return cyrillic(c)
	case GreekG0:
		return greek(c)
	case HebrewG0:
		return hebrew(c)
	}
	return latin(c, f.Subset)
}

// G2 returns the Unicode character for code c of the G2 set. Every
// designation uses the Latin G2 table.
func (f Font) G2(c byte) rune {
	c &= 0x7F
	if c < 0x20 {
		return ' '
	}
	return latinG2[c-0x20]
}

func latin(c byte, s Subset) rune {
	if i := subsetIndex[c]; i > 0 && s != NoSubset {
		return nationalSubsets[s][i-1]
	}
	if c == 0x7F {
		return '■'
	}
	return rune(c)
}

// Teletext Cyrillic G0 follows KOI-7 letter order: 0x40-0x5F are the
// upper case letters of KOI8-R 0xE0-0xFF and 0x60-0x7F the lower case
// letters of 0xC0-0xDF.
func cyrillic(c byte) rune {
	switch {
	case c >= 0x40 && c <= 0x5F:
		return charmap.KOI8R.DecodeByte(c + 0xA0)
	case c >= 0x60:
		return charmap.KOI8R.DecodeByte(c + 0x60)
	case c == 0x24:
		return '$'
	}
	return rune(c)
}

func greek(c byte) rune {
	if c < 0x40 {
		return rune(c)
	}
	if c == 0x7F {
		return '■'
	}
	r := charmap.ISO8859_7.DecodeByte(c + 0x80)
	if r == unicode.ReplacementChar {
		return ' '
	}
	return r
}

func hebrew(c byte) rune {
	switch {
	case c >= 0x60 && c <= 0x7A:
		return 0x05D0 + rune(c-0x60)
	case c == 0x7B:
		return '₪'
	}
	return latin(c, English)
}

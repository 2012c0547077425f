// Package ttxtest builds Teletext packets for tests.
package ttxtest

import (
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// StartBox is the level-1 start box control code; subtitle text is sent
// between two of them and an EndBox.
const (
	StartBox = "\x0b\x0b"
	EndBox   = "\x0a"
)

func packet(mag, num int) []byte {
	p := make([]byte, 42)
	hamming.Encode16(p, mag&7|num<<3)
	return p
}

func text(dst []byte, s string) {
	for i := range dst {
		c := byte(' ')
		if i < len(s) {
			c = s[i]
		}
		dst[i] = hamming.SetParity(c)
	}
}

// Header returns packet X/0 of pgno.
func Header(pgno, subno int, flags vt.Flags, title string) []byte {
	p := packet(pgno>>8, 0)
	hamming.Encode16(p[2:], pgno&0xFF)
	b2 := subno & 0x7F
	if flags&vt.FlagErase != 0 {
		b2 |= 0x80
	}
	b3 := subno >> 8 & 0x3F
	if flags&vt.FlagNewsflash != 0 {
		b3 |= 0x40
	}
	if flags&vt.FlagSubtitle != 0 {
		b3 |= 0x80
	}
	hamming.Encode16(p[4:], b2)
	hamming.Encode16(p[6:], b3)
	hamming.Encode16(p[8:], int(flags>>3)&0x1F)
	text(p[10:], title)
	return p
}

// Row returns display row packet X/row of magazine mag.
func Row(mag, row int, s string) []byte {
	p := packet(mag, row)
	text(p[2:], s)
	return p
}

// TimeFiller returns a header that completes the page in progress in the
// magazine of pgno without starting a new one.
func TimeFiller(pgno int) []byte {
	return Header(pgno&0xF00|0xFF, 0, 0, "")
}

// Page returns the packets of a complete page: header, rows 1.. in order
// and a time filler.
func Page(pgno int, flags vt.Flags, rows ...string) [][]byte {
	out := [][]byte{Header(pgno, 0, flags, "")}
	for i, s := range rows {
		out = append(out, Row(pgno>>8, i+1, s))
	}
	return append(out, TimeFiller(pgno))
}

// Subtitle returns a subtitle page with text boxed on row 22.
func Subtitle(pgno int, s string) [][]byte {
	p := [][]byte{Header(pgno, 0, vt.FlagErase|vt.FlagSubtitle|vt.FlagSuppressHeader, "")}
	if s != "" {
		p = append(p, Row(pgno>>8, 22, StartBox+s+EndBox))
	}
	return append(p, TimeFiller(pgno))
}

// Concat flattens packet lists.
func Concat(lists ...[][]byte) [][]byte {
	var out [][]byte
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// T42 returns the packets back to back as a T42 file.
func T42(packets [][]byte) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, p...)
	}
	return out
}

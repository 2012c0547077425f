package teletext

import (
	"testing"

	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

func newPacket(mag, packet int) []byte {
	p := make([]byte, PacketSize)
	hamming.Encode16(p, mag&7|packet<<3)
	return p
}

func putText(dst []byte, text string) {
	for i := range dst {
		c := byte(' ')
		if i < len(text) {
			c = text[i]
		}
		dst[i] = hamming.SetParity(c)
	}
}

// headerPacket builds packet X/0 for pgno.
func headerPacket(pgno, subno int, flags vt.Flags, national int, text string) []byte {
	p := newPacket(pgno>>8, 0)
	hamming.Encode16(p[2:], pgno&0xFF)

	b2 := subno & 0x7F
	if flags&vt.FlagErase != 0 {
		b2 |= 0x80
	}
	b3 := (subno >> 8) & 0x3F
	if flags&vt.FlagNewsflash != 0 {
		b3 |= 0x40
	}
	if flags&vt.FlagSubtitle != 0 {
		b3 |= 0x80
	}
	b4 := int(flags>>3)&0x1F | int(hamming.Rev8(byte(national&7)))
	hamming.Encode16(p[4:], b2)
	hamming.Encode16(p[6:], b3)
	hamming.Encode16(p[8:], b4)
	putText(p[10:], text)
	return p
}

// rowPacket builds a display row packet with parity coded text.
func rowPacket(mag, row int, text string) []byte {
	p := newPacket(mag, row)
	putText(p[2:], text)
	return p
}

// dataPacket builds a row packet from 40 already coded bytes.
func dataPacket(mag, row int, data [40]byte) []byte {
	p := newPacket(mag, row)
	copy(p[2:], data[:])
	return p
}

// blankData returns 40 bytes that do not decode as Hamming 8/4.
func blankData() [40]byte {
	var b [40]byte
	for i := range b {
		b[i] = ' '
	}
	return b
}

// tripletPacket builds an X/26, X/28 or M/29 packet from 13 18-bit words.
func tripletPacket(mag, packet, des int, words []int) []byte {
	p := newPacket(mag, packet)
	p[2] = hamming.Encode8(des)
	for i := 0; i < vt.TripletsPerPacket; i++ {
		v := vt.TerminationTriplet().Bits()
		if i < len(words) {
			v = words[i]
		}
		hamming.Encode24(p[3+i*3:], v)
	}
	return p
}

func enhPacket(mag, des int, triplets ...vt.Triplet) []byte {
	words := make([]int, len(triplets))
	for i, t := range triplets {
		words[i] = t.Bits()
	}
	return tripletPacket(mag, 26, des, words)
}

// bitWriter packs fields LSB-first into 18-bit words.
type bitWriter struct {
	words [vt.TripletsPerPacket]int
	pos   int
}

func (w *bitWriter) write(n, v int) {
	for i := 0; i < n; i++ {
		if v>>i&1 != 0 {
			w.words[w.pos/18] |= 1 << (w.pos % 18)
		}
		w.pos++
	}
}

// putLink writes a six byte X/27 page link as sent in magazine mag.
func putLink(dst []byte, mag int, l vt.Link) {
	rel := mag&7 ^ (l.Pgno>>8)&7
	hamming.Encode16(dst, l.Pgno&0xFF)
	hamming.Encode16(dst[2:], l.Subno&0x7F|(rel&1)<<7)
	hamming.Encode16(dst[4:], (l.Subno>>8)&0x3F|(rel&6)<<5)
}

func linkPacket(mag int, flof bool, links [6]vt.Link) []byte {
	p := newPacket(mag, 27)
	p[2] = hamming.Encode8(0)
	for i, l := range links {
		putLink(p[3+i*6:], mag, l)
	}
	ctrl := 0
	if flof {
		ctrl = 8
	}
	p[39] = hamming.Encode8(ctrl)
	hamming.Encode16(p[40:], 0)
	return p
}

func feedAll(t *testing.T, d *Decoder, packets ...[]byte) {
	t.Helper()
	for i, p := range packets {
		if err := d.Feed(p); err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
	}
}

// timeFiller ends the page in progress in the magazine of pgno.
func timeFiller(pgno int) []byte {
	return headerPacket(pgno&0xF00|0xFF, 0, 0, 0, "")
}

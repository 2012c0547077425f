package teletext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// slot returns the row and column of the MOT/MIP entry for page low byte
// tens<<4|units.
func slot(tens, units int) (row, col int) {
	k := tens*10 + units
	return 1 + k/20, (k % 20) * 2
}

func putNibbles(dst []byte, n ...int) {
	for i, v := range n {
		dst[i] = hamming.Encode8(v)
	}
}

// motPackets builds magazine 1's organisation table: page 0x123 uses
// object link 3 and DRCS link 2; object link 0 names GPOP 0x1A0 with one
// active default object at pointer 0, link 3 names POP 0x1A3; DRCS link
// 0 names GDRCS 0x1B0 and link 2 DRCS 0x1B2.
func motPackets() [][]byte {
	rows := map[int][40]byte{}
	get := func(r int) [40]byte {
		if b, ok := rows[r]; ok {
			return b
		}
		return blankData()
	}

	r, c := slot(2, 3)
	b := get(r)
	putNibbles(b[c:], 3, 2)
	rows[r] = b

	b = get(19)
	putNibbles(b[0:], 1, 0xA, 0, 0, 0, 0, 1, 0, 0, 0)
	putNibbles(b[30:], 1, 0xA, 3, 0, 0, 0, 0, 0, 0, 0)
	rows[19] = b

	b = get(23)
	putNibbles(b[0:], 1, 0xB, 0, 0)
	putNibbles(b[8:], 1, 0xB, 2, 0)
	rows[23] = b

	out := [][]byte{headerPacket(0x1FE, 0, 0, 0, "")}
	for row := 1; row <= 24; row++ {
		out = append(out, dataPacket(1, row, get(row)))
	}
	return append(out, timeFiller(0x100))
}

func TestMOT(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d, motPackets()...)

	pg := d.Peek(0x1FE, 0, 0x3F7F)
	require.NotNil(t, pg)
	assert.Equal(t, vt.FunctionMOT, pg.Function)

	m := d.Magazine(0x123, vt.Level25)
	assert.Equal(t, 3, m.PopCode(0x123))
	assert.Equal(t, 2, m.DRCSCode(0x123))
	assert.Equal(t, 0, m.PopCode(0x100))

	require.NotNil(t, m.PopLinkAt(0, false))
	gpop := m.PopLinkAt(0, false)
	assert.Equal(t, 0x1A0, gpop.Pgno)
	assert.Equal(t, vt.ObjectActive, gpop.Default[0].Type)
	assert.Equal(t, 0, gpop.Default[0].Pointer)
	assert.Equal(t, vt.ObjectNone, gpop.Default[1].Type)
	assert.Equal(t, 0x1A3, m.PopLinkAt(3, false).Pgno)
	assert.Equal(t, 0x1B0, m.DRCSLinkAt(0, false))
	assert.Equal(t, 0x1B2, m.DRCSLinkAt(2, false))

	// Pages named by the table are classified when they arrive.
	feedAll(t, d,
		headerPacket(0x1A3, 0, 0, 0, ""),
		headerPacket(0x1B0, 0, 0, 0, ""),
		timeFiller(0x100),
	)
	assert.Equal(t, vt.FunctionPOP, d.Peek(0x1A3, 0, 0x3F7F).Function)
	assert.Equal(t, vt.FunctionGDRCS, d.Peek(0x1B0, 0, 0x3F7F).Function)
}

func TestMIP(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	pg := vt.NewPage(vt.FunctionMIP, 0x2FD, 0)
	l := pg.LOP()

	r, c := slot(0, 0)
	hamming.Encode16(l.Raw[r][c:], 0x72)
	r, c = slot(0, 1)
	hamming.Encode16(l.Raw[r][c:], 0x05)
	r, c = slot(0, 2)
	hamming.Encode16(l.Raw[r][c:], 0x00)
	r, c = slot(0x1, 0)
	hamming.Encode16(l.Raw[r][c:], int(vt.TypeProgrIndex))
	d.parseMIP(pg)

	assert.Equal(t, vt.TypeSubtitle, d.PageStat(0x200).Type)
	assert.Equal(t, 2, d.PageStat(0x200).Charset)
	assert.Equal(t, vt.TypeNormal, d.PageStat(0x201).Type)
	assert.Equal(t, 5, d.PageStat(0x201).Subpages)
	assert.Equal(t, vt.TypeNone, d.PageStat(0x202).Type)
	assert.Equal(t, vt.TypeProgrIndex, d.PageStat(0x210).Type)
	assert.Equal(t, vt.TypeUnknown, d.PageStat(0x203).Type)
}

func TestBTT(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	pg := vt.NewPage(vt.FunctionBTT, 0x1F0, 0)
	l := pg.LOP()
	l.Raw[1][0] = hamming.Encode8(2)  // 100: block
	l.Raw[1][1] = hamming.Encode8(4)  // 101: group
	l.Raw[1][2] = hamming.Encode8(6)  // 102: normal
	l.Raw[1][3] = hamming.Encode8(1)  // 103: subtitle
	l.Raw[3][19] = hamming.Encode8(2) // 199: block
	putNibbles(l.Raw[21][0:], 1, 0xF, 1, 3, 0xF, 7, 0xF, 2)
	putNibbles(l.Raw[21][8:], 1, 0xF, 2, 3, 0xF, 7, 0xF, 1)
	pg.LOPLines = 1<<24 - 1
	d.parseBTT(pg)

	assert.True(t, d.HaveTOP())
	assert.Equal(t, vt.TypeTOPBlock, d.PageStat(0x100).Type)
	assert.Equal(t, vt.TypeTOPGroup, d.PageStat(0x101).Type)
	assert.Equal(t, vt.TypeNormal, d.PageStat(0x102).Type)
	assert.Equal(t, vt.TypeSubtitle, d.PageStat(0x103).Type)
	assert.Equal(t, vt.TypeTOPBlock, d.PageStat(0x199).Type)
	assert.Equal(t, []vt.Link{{Pgno: 0x1F1, Subno: vt.AnySubno}}, d.AITPages())

	// Table pages the basic table names are classified at header time.
	assert.Equal(t, vt.FunctionAIT, d.classify(0x1F1, 0))
	assert.Equal(t, vt.FunctionMPT, d.classify(0x1F2, 0))
}

func TestMPT(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	pg := vt.NewPage(vt.FunctionMPT, 0x1F2, 0)
	pg.LOP().Raw[1][5] = hamming.Encode8(4)
	pg.LOPLines = 1 << 1
	d.parseMPT(pg)

	assert.Equal(t, 4, d.PageStat(0x105).Subpages)
	assert.Equal(t, vt.UnknownStat().Subpages, d.PageStat(0x106).Subpages)
}

func TestMPTEX(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	pg := vt.NewPage(vt.FunctionMPTEX, 0x1F3, 0)
	putNibbles(pg.LOP().Raw[1][8:], 3, 4, 5, 0, 1, 2, 0, 0)
	pg.LOPLines = 1 << 1
	d.parseMPTEX(pg)

	assert.Equal(t, 120, d.PageStat(0x345).Subpages)
}

// accumulated returns a page of function fn as the accumulator holds it
// before completion: raw rows in a level-one payload.
func accumulated(fn vt.Function, pgno, subno int) *vt.Page {
	return &vt.Page{Function: fn, Pgno: pgno, Subno: subno, Data: vt.NewLOP()}
}

func TestConvertAIT(t *testing.T) {
	t.Parallel()

	pg := accumulated(vt.FunctionAIT, 0x1F1, 0)
	raw := pg.LOP().Raw[1][20:]
	putNibbles(raw, 1, 0, 0, 3, 0xF, 7, 0xF, 0)
	putText(raw[8:20], "News")
	pg.LOPLines = 1 << 1

	out := convertAIT(pg)
	ait := out.AIT()
	require.NotNil(t, ait)
	assert.Equal(t, vt.Link{Pgno: 0x100, Subno: vt.AnySubno}, ait.Entries[1].Page)
	assert.Equal(t, "News        ", string(ait.Entries[1].Text[:]))
	assert.False(t, ait.Entries[0].Page.Valid())
	assert.NotNil(t, pg.LOP(), "the accumulated page is left untouched")
}

func TestConvertPOP(t *testing.T) {
	t.Parallel()

	pg := accumulated(vt.FunctionPOP, 0x1A3, 0)
	l := pg.LOP()

	l.Raw[1][0] = hamming.Encode8(1)
	hamming.Encode24(l.Raw[1][1:], 7|9<<9)
	hamming.Encode24(l.Raw[1][1+3:], 13|20<<9)
	for i := 2; i < 12; i++ {
		hamming.Encode24(l.Raw[1][1+i*3:], vt.NoPointer|vt.NoPointer<<9)
	}
	hamming.Encode24(l.Raw[1][1+12*3:], 30|31<<9)

	def := vt.Triplet{Address: 40, Mode: 0x15, Data: 0}
	l.Raw[4][0] = hamming.Encode8(0)
	hamming.Encode24(l.Raw[4][1:], def.Bits())
	for i := 1; i < 13; i++ {
		hamming.Encode24(l.Raw[4][1+i*3:], vt.TerminationTriplet().Bits())
	}
	l.Enh[0] = vt.Triplet{Address: 1, Mode: 0x09, Data: 'A'}
	l.EnhCount = 13
	pg.LOPLines = 1<<1 | 1<<4

	out := convertPOP(pg)
	pop := out.POP()
	require.NotNil(t, pop)
	assert.Equal(t, uint16(13), pop.Pointers[0], "triplet 0 carries no pointers")
	assert.Equal(t, uint16(20), pop.Pointers[1])
	assert.Equal(t, uint16(vt.NoPointer), pop.Pointers[2])
	assert.Equal(t, uint16(30), pop.Pointers[22])
	assert.Equal(t, uint16(31), pop.Pointers[23])
	assert.Equal(t, def, pop.Triplets[vt.PacketTriplets(4)])
	assert.Equal(t, l.Enh[0], pop.Triplets[23*vt.TripletsPerPacket])
}

func TestConvertDRCS(t *testing.T) {
	t.Parallel()

	pg := accumulated(vt.FunctionDRCS, 0x1B2, 0)
	l := pg.LOP()
	for j := 0; j < 20; j++ {
		l.Raw[1][j] = hamming.SetParity(0x40 | 0x3F)
	}
	for j := 0; j < 20; j++ {
		l.Raw[1][20+j] = hamming.SetParity(0x20)
	}
	pg.LOPLines = 1 << 1
	pg.X28Lines = 1 << 3

	var modes [vt.DRCSPTUs]uint8
	modes[0] = vt.DRCSMode12x10x1
	modes[2] = vt.DRCSModeNoData
	out := convertDRCS(pg, &modes)
	drcs := out.DRCS()
	require.NotNil(t, drcs)

	assert.True(t, drcs.Valid(0))
	assert.False(t, drcs.Valid(1), "bytes without bit 6 are invalid")
	assert.False(t, drcs.Valid(2), "row not received")
	assert.Equal(t, byte(0x3F), drcs.PTU[0][0])
	assert.Equal(t, uint8(vt.DRCSModeNoData), drcs.Mode[2])
	assert.Equal(t, uint8(1), drcs.Pixels(0)[0][0])
}

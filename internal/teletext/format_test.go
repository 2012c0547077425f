package teletext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// gpopPackets builds global object page 0x1A0 with one active object at
// pointer 0 that turns row 1 red from column 2.
func gpopPackets() [][]byte {
	ptr := make([]int, vt.TripletsPerPacket)
	for i := range ptr {
		ptr[i] = vt.NoPointer | vt.NoPointer<<9
	}
	ptr[1] = 0 | vt.NoPointer<<9

	obj := []vt.Triplet{
		{Address: 40, Mode: 0x15, Data: 0},
		{Address: 41, Mode: 0x04, Data: 0},
		{Address: 2, Mode: 0x00, Data: vt.Red},
	}
	words := make([]int, len(obj))
	for i, t := range obj {
		words[i] = t.Bits()
	}

	return [][]byte{
		headerPacket(0x1A0, 0, 0, 0, ""),
		objectRow(1, 1, ptr),
		objectRow(3, 0, words),
	}
}

// objectRow builds body packet row of an object page in magazine 1.
func objectRow(row, des int, words []int) []byte {
	p := newPacket(1, row)
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

func lopPackets() [][]byte {
	return [][]byte{
		headerPacket(0x100, 0, 0, 0, "HEADER"),
		rowPacket(1, 1, "Hello world"),
		timeFiller(0x100),
	}
}

func TestFormat_DefaultObject(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d, motPackets()...)
	feedAll(t, d, gpopPackets()...)
	feedAll(t, d, lopPackets()...)

	pg, err := d.Format(0x100, vt.AnySubno, format.Options{Level: vt.Level25})
	require.NoError(t, err)
	assert.False(t, pg.Degraded)
	assert.Equal(t, uint8(vt.White), pg.Cells[1][1].Foreground)
	assert.Equal(t, uint8(vt.Red), pg.Cells[1][2].Foreground)
	assert.Equal(t, 'l', pg.Cells[1][2].Unicode)

	// Level 1 ignores enhancement.
	pg, err = d.Format(0x100, vt.AnySubno, format.Options{Level: vt.Level1})
	require.NoError(t, err)
	assert.Equal(t, uint8(vt.White), pg.Cells[1][2].Foreground)
}

func TestFormat_MissingObjectPageDegrades(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d, motPackets()...)
	feedAll(t, d, lopPackets()...)

	pg, err := d.Format(0x100, vt.AnySubno, format.Options{Level: vt.Level25})
	require.NoError(t, err)
	assert.True(t, pg.Degraded)
	assert.Equal(t, uint8(vt.White), pg.Cells[1][2].Foreground)
	assert.Equal(t, "Hello world", pg.Lines(false)[1])
}

func TestFormat_ForegroundAtColumn5(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d,
		headerPacket(0x100, 0, 0, 0, ""),
		rowPacket(1, 1, "ABCDE\x07FGH"),
		enhPacket(1, 0,
			vt.Triplet{Address: 41, Mode: 0x04, Data: 0},
			vt.Triplet{Address: 5, Mode: 0x00, Data: vt.Green},
		),
		timeFiller(0x100),
	)

	pg, err := d.Format(0x100, 0, format.Options{Level: vt.Level25})
	require.NoError(t, err)
	require.False(t, pg.Degraded)

	for r := 0; r < format.Rows; r++ {
		for c := 0; c < format.Columns; c++ {
			want := uint8(vt.White)
			if r == 1 && c == 5 {
				want = vt.Green
			}
			if pg.Cells[r][c].Foreground != want {
				t.Fatalf("cell %d,%d: foreground %d, want %d", r, c, pg.Cells[r][c].Foreground, want)
			}
		}
	}
}

func TestFormat_Errors(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d, motPackets()...)
	feedAll(t, d, gpopPackets()...)
	feedAll(t, d, timeFiller(0x100))

	_, err := d.Format(0x1A0, vt.AnySubno, format.Options{Level: vt.Level25})
	assert.ErrorIs(t, err, format.ErrNotDisplayable)

	_, err = d.Format(0x555, vt.AnySubno, format.Options{})
	assert.ErrorIs(t, err, format.ErrNotCached)
}

func TestDecoder_PagesAndSubpages(t *testing.T) {
	t.Parallel()

	d := New(Config{})
	feedAll(t, d, motPackets()...)
	feedAll(t, d, gpopPackets()...)
	feedAll(t, d,
		headerPacket(0x150, 2, 0, 0, ""),
		headerPacket(0x150, 1, 0, 0, ""),
		headerPacket(0x100, 0, 0, 0, ""),
		timeFiller(0x100),
	)

	assert.Equal(t, []int{0x100, 0x150}, d.Pages())
	assert.Equal(t, []int{1, 2}, d.Subpages(0x150))
	assert.Empty(t, d.Subpages(0x300))
}

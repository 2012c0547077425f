package format

import (
	"fmt"

	"github.com/zsiec/ttx/internal/vt"
)

// flofColors are the row 24 colours of the red, green, yellow and cyan
// editorial links.
var flofColors = [4]int{vt.Red, vt.Green, vt.Yellow, vt.Cyan}

// navigation builds the row 24 links: FLOF links when the page carries
// them, a TOP bar when the service sends TOP tables.
func (f *formatter) navigation() {
	switch {
	case f.lop.FLOF:
		if l := f.lop.Link[5]; l.Valid() {
			f.pg.NavLink[5] = l
		}
		if f.raw.LOPLines&(1<<24) != 0 {
			f.flofLinks()
		} else {
			f.flofBar()
		}
	case f.src.HaveTOP():
		f.topBar()
	}
}

// flofLinks marks the colour runs of a transmitted row 24 as links.
// Leading and trailing spaces of a run are not part of the link.
func (f *formatter) flofLinks() {
	row := &f.pg.Cells[Rows-1]
	col, start := -1, 0
	for i := 0; i <= vt.Columns; i++ {
		if i == vt.Columns || int(row[i].Foreground&7) != col {
			if k := flofIndex(col); k >= 0 && f.lop.Link[k].Valid() {
				j := i - 1
				for j >= start && row[j].Unicode == ' ' {
					j--
				}
				for ; j >= start; j-- {
					row[j].Attr |= Link
					f.pg.NavIndex[j] = int8(k)
				}
				f.pg.NavLink[k] = f.lop.Link[k]
			}
			if i == vt.Columns {
				break
			}
			col = int(row[i].Foreground & 7)
			start = i
		}
		if start == i && row[i].Unicode == ' ' {
			start++
		}
	}
}

func flofIndex(col int) int {
	for k, c := range flofColors {
		if c == col {
			return k
		}
	}
	return -1
}

// flofBar writes the page numbers of the four editorial links into an
// empty row 24.
func (f *formatter) flofBar() {
	f.clearNavRow()
	row := &f.pg.Cells[Rows-1]
	for k := 0; k < 4; k++ {
		l := f.lop.Link[k]
		if !l.Valid() {
			continue
		}
		n := k*10 + 3
		for i, ch := range fmt.Sprintf("%3X", l.Pgno) {
			row[n+i].Unicode = ch
			row[n+i].Foreground = uint8(flofColors[k])
			row[n+i].Attr |= Link
			f.pg.NavIndex[n+i] = int8(k)
		}
		f.pg.NavLink[k] = l
	}
}

func (f *formatter) clearNavRow() {
	blank := Cell{
		Unicode:    ' ',
		Foreground: vt.White,
		Background: vt.Black,
		Opacity:    f.pageOpacity[1],
	}
	for c := range f.pg.Cells[Rows-1] {
		f.pg.Cells[Rows-1][c] = blank
		f.pg.NavIndex[c] = -1
	}
}

// topBar builds a row 24 from the TOP tables: the current block in white,
// the next group in green and the next block in yellow.
func (f *formatter) topBar() {
	f.clearNavRow()
	if f.pageOpacity[1] != Opaque {
		return
	}

	pgno := f.raw.Pgno
	for i, n := pgno, 0; n < topPages; n++ {
		if f.src.PageStat(i).Type == vt.TypeTOPBlock {
			f.topLabel(0, i, vt.White, 0)
			break
		}
		if i <= vt.FirstPage || i > topLastPage {
			i = topLastPage
		} else {
			i--
		}
	}

	group := false
	for i, n := next(pgno), 0; n < topPages && i != pgno; i, n = next(i), n+1 {
		switch f.src.PageStat(i).Type {
		case vt.TypeTOPBlock:
			f.topLabel(2, i, vt.Yellow, 2)
			return
		case vt.TypeTOPGroup:
			if !group {
				f.topLabel(1, i, vt.Green, 1)
				group = true
			}
		}
	}
}

// topLastPage is the last page the TOP walks visit; topPages bounds both
// walks for pages above it.
const (
	topLastPage = 0x899
	topPages    = topLastPage - vt.FirstPage + 1
)

func next(pgno int) int {
	if pgno >= topLastPage {
		return vt.FirstPage
	}
	return pgno + 1
}

// topLabel writes the AIT title of pgno into slot index of the TOP bar,
// followed by the given number of '>' characters.
func (f *formatter) topLabel(index, pgno, color, arrows int) {
	for _, link := range f.src.AITPages() {
		p := f.src.Peek(link.Pgno, link.Subno, 0x3F7F)
		if p == nil || p.AIT() == nil {
			continue
		}
		for _, e := range p.AIT().Entries {
			if e.Page.Pgno != pgno {
				continue
			}
			f.writeLabel(index, pgno, color, arrows, e.Text)
			return
		}
	}
}

func (f *formatter) writeLabel(index, pgno, color, arrows int, text [12]byte) {
	f.pg.NavLink[index] = vt.Link{Pgno: pgno, Subno: vt.AnySubno}
	row := &f.pg.Cells[Rows-1]

	n := len(text) - 1
	for n >= 0 && text[n] <= ' ' {
		n--
	}
	width := n + 1 + arrows
	if width > len(text) {
		arrows = 0
		width = n + 1
	}
	column := index*13 + 1 + (len(text)-width)/2

	put := func(i int, r rune) {
		c := column + i
		row[c].Unicode = r
		row[c].Foreground = uint8(color)
		row[c].Attr |= Link
		f.pg.NavIndex[c] = int8(index)
	}
	for i := 0; i <= n; i++ {
		ch := text[i]
		if ch < ' ' {
			ch = ' '
		}
		put(i, f.font[0].G0(ch))
	}
	for i := 0; i < arrows; i++ {
		put(n+1+i, '>')
	}
}

// hyperlinks marks three digit page numbers 100-899 in rows 1-23.
func (f *formatter) hyperlinks() {
	last := min(f.rows, Rows-1)
	for r := 1; r < last; r++ {
		row := &f.pg.Cells[r]
		for c := 0; c+2 < vt.Columns; c++ {
			if c > 0 && isDigit(row[c-1].Unicode) {
				continue
			}
			if !isDigit(row[c].Unicode) || !isDigit(row[c+1].Unicode) || !isDigit(row[c+2].Unicode) {
				continue
			}
			if c+3 < vt.Columns && isDigit(row[c+3].Unicode) {
				continue
			}
			if row[c].Unicode < '1' || row[c].Unicode > '8' {
				continue
			}
			for i := 0; i < 3; i++ {
				row[c+i].Attr |= Link
			}
			c += 2
		}
	}
}

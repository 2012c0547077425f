// Package format turns raw Teletext pages into grids of styled character
// cells. Format runs the level-1 pass over the page rows, applies local
// enhancement data or the magazine's default objects at levels 1.5 and up,
// and optionally builds FLOF or TOP navigation in row 24.
package format

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zsiec/ttx/internal/vt"
)

var (
	// ErrNotDisplayable is returned for pages that are neither normal nor
	// trigger pages.
	ErrNotDisplayable = errors.New("format: page is not displayable")
	// ErrMissingPage is returned by the enhancer when an object or DRCS
	// page is not cached. Format recovers from it with the level-1 page.
	ErrMissingPage = errors.New("format: referenced page not cached")
	// ErrNotCached is returned when the requested page is not cached.
	ErrNotCached = errors.New("format: page not cached")
)

// Grid geometry. Column 40 is synthesized from column 39.
const (
	Rows    = vt.Rows
	Columns = vt.Columns + 1
)

// Size is the size class of a cell.
type Size uint8

// Cell sizes. OverTop, OverBottom, DoubleHeight2 and DoubleSize2 are the
// continuation cells right of and below a large character.
const (
	Normal Size = iota
	DoubleWidth
	DoubleHeight
	DoubleSize
	OverTop
	OverBottom
	DoubleHeight2
	DoubleSize2
)

var sizeNames = [...]string{
	"normal", "double-width", "double-height", "double-size",
	"over-top", "over-bottom", "double-height2", "double-size2",
}

func (s Size) String() string {
	if int(s) < len(sizeNames) {
		return sizeNames[s]
	}
	return "size?"
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(b []byte) error {
	i := slices.Index(sizeNames[:], string(b))
	if i < 0 {
		return fmt.Errorf("format: unknown size %q", b)
	}
	*s = Size(i)
	return nil
}

// Opacity is the opacity class of a cell.
type Opacity uint8

// Opacity classes.
const (
	Opaque Opacity = iota
	SemiTransparent
	// TransparentSpace shows video in place of the cell.
	TransparentSpace
	// TransparentFull marks a cell with transparent foreground and
	// background.
	TransparentFull
)

var opacityNames = [...]string{"opaque", "semi-transparent", "transparent-space", "transparent-full"}

func (o Opacity) String() string {
	if int(o) < len(opacityNames) {
		return opacityNames[o]
	}
	return "opacity?"
}

// MarshalText implements encoding.TextMarshaler.
func (o Opacity) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Opacity) UnmarshalText(b []byte) error {
	i := slices.Index(opacityNames[:], string(b))
	if i < 0 {
		return fmt.Errorf("format: unknown opacity %q", b)
	}
	*o = Opacity(i)
	return nil
}

// Attr holds cell style flags.
type Attr uint8

// Cell style flags.
const (
	Underline Attr = 1 << iota
	Bold
	Italic
	Flash
	Conceal
	Proportional
	Link
)

// Cell is one character cell of a formatted page.
type Cell struct {
	Unicode    rune    `json:"c"`
	Foreground uint8   `json:"fg"`
	Background uint8   `json:"bg"`
	Size       Size    `json:"size"`
	Opacity    Opacity `json:"opacity"`
	Attr       Attr    `json:"attr"`
}

// Page is a formatted page.
type Page struct {
	Pgno  int      `json:"page"`
	Subno int      `json:"subpage"`
	Level vt.Level `json:"level"`
	// Height is the number of formatted rows.
	Height int `json:"rows"`

	Cells [Rows][Columns]Cell `json:"-"`

	// Palette maps cell colour indices to RGB.
	Palette     [vt.PaletteSize]vt.Color `json:"palette"`
	ScreenColor int                      `json:"screen_color"`
	DRCSCLUT    [vt.DRCSCLUTSize]uint8   `json:"-"`
	// DRCS holds the global (0) and normal (1) glyph pages the cells
	// reference, or nil.
	DRCS [2]*vt.DRCS `json:"-"`

	// NavLink holds the row 24 link targets; NavIndex maps the columns of
	// row 24 to NavLink entries or -1.
	NavLink  [6]vt.Link    `json:"nav_links"`
	NavIndex [Columns]int8 `json:"-"`

	// Degraded is set when enhancement failed and the page shows the
	// level-1 presentation.
	Degraded bool `json:"degraded"`
}

func newPage(pgno, subno int, level vt.Level, rows int) *Page {
	pg := &Page{Pgno: pgno, Subno: subno, Level: level, Height: rows}
	for i := range pg.NavLink {
		pg.NavLink[i] = vt.Link{Pgno: 0x8FF, Subno: vt.AnySubno}
	}
	for i := range pg.NavIndex {
		pg.NavIndex[i] = -1
	}
	return pg
}

// Text returns the page as plain text, one line per row, without the
// synthesized column. Concealed characters show as spaces unless reveal
// is set.
func (pg *Page) Text(reveal bool) string {
	return strings.Join(pg.Lines(reveal), "\n")
}

// Lines returns the rows of Text.
func (pg *Page) Lines(reveal bool) []string {
	out := make([]string, 0, pg.Height)
	var b strings.Builder
	for r := 0; r < pg.Height; r++ {
		b.Reset()
		for c := 0; c < vt.Columns; c++ {
			cell := &pg.Cells[r][c]
			switch {
			case cell.Attr&Conceal != 0 && !reveal,
				cell.Opacity == TransparentFull,
				cell.Size >= OverTop:
				b.WriteByte(' ')
			default:
				b.WriteRune(cell.Unicode)
			}
		}
		out = append(out, strings.TrimRight(b.String(), " "))
	}
	return out
}

// Row is one row of a formatted page for JSON output.
type Row struct {
	Text  string `json:"text"`
	Cells []Cell `json:"cells"`
}

// Rows returns the displayed rows with their cells.
func (pg *Page) Rows(reveal bool) []Row {
	lines := pg.Lines(reveal)
	out := make([]Row, len(lines))
	for r := range lines {
		out[r] = Row{Text: lines[r], Cells: pg.Cells[r][:]}
	}
	return out
}

// ResolveLink returns the page a click on (column, row) leads to.
func (pg *Page) ResolveLink(column, row int) (vt.Link, bool) {
	if row < 0 || row >= pg.Height || column < 0 || column >= Columns {
		return vt.Link{}, false
	}
	if pg.Cells[row][column].Attr&Link == 0 {
		return vt.Link{}, false
	}
	if row == Rows-1 {
		if i := pg.NavIndex[column]; i >= 0 {
			return pg.NavLink[i], true
		}
		return vt.Link{}, false
	}

	start := column
	for start > 0 && isDigit(pg.Cells[row][start-1].Unicode) {
		start--
	}
	end := column
	for end < vt.Columns-1 && isDigit(pg.Cells[row][end+1].Unicode) {
		end++
	}
	if end-start != 2 {
		return vt.Link{}, false
	}
	n := 0
	for c := start; c <= end; c++ {
		n = n<<4 | int(pg.Cells[row][c].Unicode-'0')
	}
	return vt.Link{Pgno: n, Subno: vt.AnySubno}, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

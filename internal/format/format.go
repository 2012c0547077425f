package format

import (
	"github.com/zsiec/ttx/internal/charset"
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// Source gives the formatter read access to the decoder state. Peek must
// not reorder the cache.
type Source interface {
	Peek(pgno, subno, mask int) *vt.Page
	Magazine(pgno int, level vt.Level) *vt.Magazine
	PageStat(pgno int) vt.PageStat
	HaveTOP() bool
	AITPages() []vt.Link
}

// Options select the presentation.
type Options struct {
	Level vt.Level `json:"level"`
	// Rows is the number of rows to format, 1-25. Zero means 25.
	Rows int `json:"rows"`
	// Navigation builds row 24 links and page number hyperlinks.
	Navigation bool `json:"navigation"`
}

// maxDepth bounds object invocation. The object type order already limits
// nesting to three levels below the page.
const maxDepth = 4

type formatter struct {
	src   Source
	raw   *vt.Page
	lop   *vt.LOP
	level vt.Level
	mag   *vt.Magazine
	ext   *vt.Extension
	font  [2]charset.Font
	rows  int
	pg    *Page

	// codes holds the parity checked level-1 codes, 0x20 where parity
	// failed.
	codes [Rows][vt.Columns]byte

	fgCLUT, bgCLUT int
	pageOpacity    [2]Opacity
	rowColor       [Rows]int
}

// Format formats raw. At levels 1.5 and up the enhancement data is
// applied; when a page it references is missing the level-1 result is
// returned with Degraded set.
func Format(src Source, raw *vt.Page, opts Options) (*Page, error) {
	if raw == nil {
		return nil, ErrNotCached
	}
	lop := raw.LOP()
	if !raw.Function.Displayable() || lop == nil {
		return nil, ErrNotDisplayable
	}
	rows := opts.Rows
	if rows <= 0 || rows > Rows {
		rows = Rows
	}

	f := &formatter{
		src:   src,
		raw:   raw,
		lop:   lop,
		level: opts.Level,
		mag:   src.Magazine(raw.Pgno, opts.Level),
		rows:  rows,
		pg:    newPage(raw.Pgno, raw.Subno, opts.Level, rows),
	}
	f.setup()
	f.level1()

	if f.level >= vt.Level15 {
		saved := f.pg.Cells
		if err := f.enhance(); err != nil {
			f.pg.Cells = saved
			f.pg.DRCS = [2]*vt.DRCS{}
			f.pg.ScreenColor = vt.Black
			f.pg.Degraded = true
		} else if f.level >= vt.Level25 {
			f.applyRowColors()
			f.postEnhance()
		}
	}
	f.lastColumn()

	if opts.Navigation && rows == Rows {
		f.navigation()
	}
	if opts.Navigation {
		f.hyperlinks()
	}
	return f.pg, nil
}

// setup selects the extension, fonts, palette and opacities.
func (f *formatter) setup() {
	f.ext = &f.mag.Ext
	if f.level >= vt.Level15 && f.raw.X28Lines&(1<<0|1<<4) != 0 {
		f.ext = &f.lop.Ext
	}

	// The national option bits of the header override those of the
	// designation when the combination is assigned.
	f.font[0] = charset.Designation(0)
	f.font[1] = f.font[0]
	for i := range f.font {
		code := f.ext.CharCode[i]
		if charset.Known(code) {
			f.font[i] = charset.Designation(code)
		}
		code = code&^7 | f.raw.National
		if charset.Known(code) {
			f.font[i] = charset.Designation(code)
		}
	}

	f.pg.Palette = f.ext.ColorMap
	f.pg.DRCSCLUT = f.ext.DRCSCLUT
	f.pg.ScreenColor = vt.Black
	if f.level >= vt.Level25 {
		f.fgCLUT = f.ext.ForegroundCLUT
		f.bgCLUT = f.ext.BackgroundCLUT
		f.pg.ScreenColor = f.ext.DefScreenColor
	}

	f.pageOpacity = [2]Opacity{Opaque, Opaque}
	if f.raw.Flags.Boxed() {
		f.pageOpacity = [2]Opacity{TransparentSpace, SemiTransparent}
	}

	for r := range f.rowColor {
		f.rowColor[r] = -1
		if f.level >= vt.Level25 && f.ext.BlackBgSubst {
			f.rowColor[r] = f.ext.DefRowColor
		}
	}
}

// headerText returns the level-1 codes of row 0: the page number in
// columns 0-7 and the transmitted header in 8-39.
func (f *formatter) headerText() [vt.Columns]byte {
	var row [vt.Columns]byte
	if f.raw.Flags&vt.FlagSuppressHeader != 0 {
		for i := range row {
			row[i] = ' '
		}
		return row
	}
	copy(row[:8], " P"+vt.FormatPage(f.raw.Pgno)+"   ")
	for c := 8; c < vt.Columns; c++ {
		if ch := hamming.Parity(f.lop.Raw[0][c]); ch >= 0 {
			row[c] = byte(ch)
		} else {
			row[c] = ' '
		}
	}
	return row
}

// level1 runs the spacing attribute pass over rows 0-24.
func (f *formatter) level1() {
	f.codes[0] = f.headerText()
	for r := 1; r < Rows; r++ {
		for c := 0; c < vt.Columns; c++ {
			if ch := hamming.Parity(f.lop.Raw[r][c]); ch >= 0 {
				f.codes[r][c] = byte(ch)
			} else {
				f.codes[r][c] = ' '
			}
		}
	}

	for r := 0; r < f.rows; r++ {
		if f.rowLevel1(r) && r+1 < f.rows {
			f.continueRow(r)
			r++
		}
	}
}

// rowLevel1 formats row r from its codes and reports whether it holds
// double height characters.
func (f *formatter) rowLevel1(r int) bool {
	fg, bg := vt.White, vt.Black
	size := Normal
	held := ' '
	var mosaic, separated, hold, flash, conceal, boxed, doubleHeight bool
	var fontIdx int
	heightAllowed := r > 0 && r < Rows-2

	for c := 0; c < vt.Columns; c++ {
		code := f.codes[r][c]

		// Set-at codes.
		switch code {
		case 0x09:
			flash = false
		case 0x0C:
			size = Normal
			held = ' '
		case 0x18:
			conceal = true
		case 0x19:
			separated = false
		case 0x1A:
			separated = true
		case 0x1C:
			bg = vt.Black
		case 0x1D:
			bg = fg
		case 0x1E:
			hold = true
		}

		var ch rune
		switch {
		case code < 0x20:
			ch = ' '
			if hold && mosaic {
				ch = held
			}
		case mosaic && charset.IsMosaic(code):
			ch = charset.Mosaic(code, separated)
			held = ch
		default:
			ch = f.font[fontIdx].G0(code)
		}

		cell := Cell{
			Unicode:    ch,
			Foreground: uint8(f.fgCLUT + fg),
			Background: uint8(f.bgCLUT + bg),
			Size:       size,
			Opacity:    f.pageOpacity[0],
		}
		if boxed {
			cell.Opacity = f.pageOpacity[1]
		}
		if flash {
			cell.Attr |= Flash
		}
		if conceal {
			cell.Attr |= Conceal
		}
		if size == DoubleHeight || size == DoubleSize {
			doubleHeight = true
		}
		f.pg.Cells[r][c] = cell

		// Set-after codes.
		switch {
		case code <= 0x07:
			fg = int(code)
			mosaic, conceal = false, false
			held = ' '
		case code == 0x08:
			flash = true
		case code == 0x0A, code == 0x0B:
			// Boxing changes after the first of two identical codes, so
			// the second start code is inside the box and the second end
			// code outside it.
			if c+1 < vt.Columns && f.codes[r][c+1] == code {
				boxed = code == 0x0B
			}
		case code == 0x0D:
			if heightAllowed {
				size = DoubleHeight
			}
			held = ' '
		case code == 0x0E:
			size = DoubleWidth
			held = ' '
		case code == 0x0F:
			size = DoubleWidth
			if heightAllowed {
				size = DoubleSize
			}
			held = ' '
		case code >= 0x10 && code <= 0x17:
			fg = int(code - 0x10)
			mosaic, conceal = true, false
		case code == 0x1B:
			fontIdx ^= 1
		case code == 0x1F:
			hold = false
		}
	}

	// The cell right of a wide character continues it.
	row := &f.pg.Cells[r]
	for c := 0; c < vt.Columns-1; c++ {
		if row[c].Size == DoubleWidth || row[c].Size == DoubleSize {
			next := row[c]
			next.Size = OverTop
			row[c+1] = next
			c++
		}
	}
	return doubleHeight
}

// continueRow fills row r+1 with the lower halves of the double height
// characters of row r.
func (f *formatter) continueRow(r int) {
	for c := 0; c < vt.Columns; c++ {
		cell := f.pg.Cells[r][c]
		switch cell.Size {
		case DoubleHeight:
			cell.Size = DoubleHeight2
		case DoubleSize:
			cell.Size = DoubleSize2
		case OverTop:
			cell.Size = OverBottom
		default:
			cell.Unicode = ' '
			cell.Size = Normal
		}
		f.pg.Cells[r+1][c] = cell
		f.codes[r+1][c] = ' '
	}
}

// lastColumn synthesizes column 40.
func (f *formatter) lastColumn() {
	for r := 0; r < f.rows; r++ {
		c := f.pg.Cells[r][vt.Columns-1]
		c.Unicode = ' '
		c.Size = Normal
		c.Attr &^= Link
		f.pg.Cells[r][vt.Columns] = c
	}
}

// applyRowColors gives cells with a black background the full row colour
// set for their row.
func (f *formatter) applyRowColors() {
	black := uint8(f.bgCLUT + vt.Black)
	for r := 0; r < f.rows; r++ {
		col := f.rowColor[r]
		if col < 0 {
			continue
		}
		for c := 0; c < vt.Columns; c++ {
			if cell := &f.pg.Cells[r][c]; cell.Background == black {
				cell.Background = uint8(col)
			}
		}
	}
}

// postEnhance completes large characters after enhancement and folds
// fully transparent cells into one opacity class.
func (f *formatter) postEnhance() {
	last := f.rows - 1
	for r := 0; r < f.rows; r++ {
		row := &f.pg.Cells[r]
		for c := 0; c < vt.Columns; c++ {
			cell := &row[c]
			switch {
			case cell.Opacity == TransparentSpace,
				cell.Foreground == vt.Transparent && cell.Background == vt.Transparent:
				cell.Opacity = TransparentFull
				cell.Unicode = ' '
			case cell.Background == vt.Transparent:
				cell.Opacity = SemiTransparent
			}

			switch cell.Size {
			case Normal:
				if r < last {
					if b := &f.pg.Cells[r+1][c]; b.Size == DoubleHeight2 || b.Size == DoubleSize2 {
						b.Unicode = ' '
						b.Size = Normal
					}
				}
				if c < vt.Columns-1 {
					if n := &row[c+1]; n.Size == OverTop || n.Size == OverBottom {
						n.Unicode = ' '
						n.Size = Normal
					}
				}
			case DoubleHeight:
				if r < last {
					below := *cell
					below.Size = DoubleHeight2
					f.pg.Cells[r+1][c] = below
				}
			case DoubleSize:
				if r < last {
					below := *cell
					below.Size = DoubleSize2
					f.pg.Cells[r+1][c] = below
					if c < vt.Columns-1 {
						below.Size = OverBottom
						f.pg.Cells[r+1][c+1] = below
					}
				}
				fallthrough
			case DoubleWidth:
				if c < vt.Columns-1 {
					next := *cell
					next.Size = OverTop
					row[c+1] = next
				}
			}
		}
	}
}

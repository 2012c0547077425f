package format

import (
	"fmt"

	"github.com/zsiec/ttx/internal/charset"
	"github.com/zsiec/ttx/internal/vt"
)

// override has a bit set for each cell property an enhancement changes.
type override uint16

const (
	ovUnicode override = 1 << iota
	ovForeground
	ovBackground
	ovSize
	ovOpacity
	ovFlash
	ovConceal
	ovUnderline
	ovBold
	ovItalic
	ovProportional
)

// enhancer interprets one triplet stream: the page's local enhancement
// data or one object. Objects run in their own enhancer with the cursor
// of the invoking triplet as origin.
type enhancer struct {
	f     *formatter
	typ   vt.ObjectType
	depth int

	// local is the page's enhancement data, for local object invocation.
	local []vt.Triplet

	invRow, invCol       int
	activeRow, activeCol int
	offRow, offCol       int

	ac     Cell
	acSet  override
	invert bool
	font   charset.Font
	drcsS1 [2]int
}

// enhance applies the local enhancement data of the page, or the default
// objects of its magazine when none arrived.
func (f *formatter) enhance() error {
	if f.raw.EnhLines != 0 {
		local := f.lop.Enh[:f.lop.EnhCount]
		e := f.newEnhancer(vt.ObjectNone, 0, 0, 0)
		e.local = local
		return e.run(local)
	}
	if f.level < vt.Level25 {
		return nil
	}
	return f.defaultObjects()
}

func (f *formatter) newEnhancer(typ vt.ObjectType, depth, row, col int) *enhancer {
	e := &enhancer{
		f:      f,
		typ:    typ,
		depth:  depth,
		invRow: row,
		invCol: col,
		font:   f.font[0],
	}
	if typ == vt.ObjectPassive {
		e.ac = Cell{
			Foreground: vt.White,
			Background: vt.Black,
			Opacity:    f.pageOpacity[1],
		}
		e.acSet = ovForeground | ovBackground | ovOpacity | ovSize |
			ovUnderline | ovBold | ovItalic | ovFlash
	}
	return e
}

// defaultObjects invokes the objects a magazine's POP link names for
// pages without local enhancement data, lower priority first.
func (f *formatter) defaultObjects() error {
	link := f.mag.PopLinkAt(f.mag.PopCode(f.raw.Pgno), f.level >= vt.Level35)
	if link == nil {
		return nil
	}
	order := 0
	if link.Default[0].Type > link.Default[1].Type {
		order = 1
	}
	for i := 0; i < 2; i++ {
		obj := link.Default[i^order]
		if obj.Type == vt.ObjectNone || obj.Pointer < 0 || obj.Pointer >= vt.POPPointers {
			continue
		}
		pop, err := f.objectPage(link.Pgno)
		if err != nil {
			return err
		}
		ptr := int(pop.Pointers[obj.Pointer])
		if ptr >= vt.POPTriplets {
			continue
		}
		if pop.Triplets[ptr].Mode != uint8(obj.Type)+0x14 {
			continue
		}
		e := f.newEnhancer(obj.Type, 1, 0, 0)
		if err := e.run(pop.Triplets[ptr+1:]); err != nil {
			return err
		}
	}
	return nil
}

// objectPage fetches an object page from the cache without reordering it.
func (f *formatter) objectPage(pgno int) (*vt.POP, error) {
	p := f.src.Peek(pgno, vt.AnySubno, 0)
	if p == nil || p.POP() == nil {
		return nil, fmt.Errorf("object page %s: %w", vt.FormatPage(pgno), ErrMissingPage)
	}
	return p.POP(), nil
}

// compLink returns the page of the compositional link of function fn for
// the current level, or 0x8FF.
func (f *formatter) compLink(fn vt.Function) int {
	for pass := 0; pass < 2; pass++ {
		for _, l := range f.lop.CompLinks {
			if l.Function != fn || vt.NoPage(l.Pgno) {
				continue
			}
			if pass == 0 && f.level >= vt.Level35 && l.Level35 ||
				pass == 1 && l.Level25 {
				return l.Pgno
			}
		}
	}
	return 0x8FF
}

// run interprets triplets until a termination marker, an object
// definition or the end of the slice.
func (e *enhancer) run(triplets []vt.Triplet) error {
	if e.depth > maxDepth {
		return nil
	}
	for _, t := range triplets {
		if t.RowAddress() {
			done, err := e.rowTriplet(t)
			if err != nil {
				return err
			}
			if done {
				e.flushRow()
				return nil
			}
			continue
		}
		if err := e.columnTriplet(t); err != nil {
			return err
		}
	}
	e.flushRow()
	return nil
}

func (e *enhancer) rowTriplet(t vt.Triplet) (done bool, err error) {
	f := e.f
	s := t.Data >> 5
	row := int(t.Address) - vt.Columns
	if row == 0 {
		row = Rows - 1
	}
	column := 0

	switch t.Mode {
	case 0x00: // full screen colour
		if f.level >= vt.Level25 && s == 0 && e.typ <= vt.ObjectActive {
			f.pg.ScreenColor = int(t.Data & 0x1F)
		}

	case 0x01, 0x07: // full row colour, address row 0
		if t.Mode == 0x07 {
			if t.Address != 0x3F {
				break
			}
			row = 0
		}
		if f.level >= vt.Level25 {
			r := e.invRow + row
			switch s {
			case 0:
				if r < Rows {
					f.rowColor[r] = int(t.Data & 0x1F)
				}
			case 3:
				for ; r < Rows; r++ {
					f.rowColor[r] = int(t.Data & 0x1F)
				}
			}
		}
		e.setActive(row, 0)

	case 0x04: // set active position
		if f.level >= vt.Level25 {
			if t.Data >= vt.Columns {
				break
			}
			column = int(t.Data)
		}
		e.setActive(row, column)

	case 0x10: // origin modifier
		if f.level < vt.Level25 || t.Data >= 72 {
			break
		}
		e.offCol = int(t.Data)
		e.offRow = int(t.Address) - vt.Columns

	case 0x11, 0x12, 0x13: // object invocation
		if f.level < vt.Level25 {
			break
		}
		return false, e.invoke(t)

	case 0x15, 0x16, 0x17: // object definition
		return true, nil

	case 0x18: // DRCS mode
		if f.level >= vt.Level25 {
			e.drcsS1[(t.Data>>6)&1] = int(t.Data & 0x0F)
		}

	case 0x1F: // termination marker
		return true, nil
	}
	return false, nil
}

func (e *enhancer) setActive(row, column int) {
	if row > e.activeRow {
		e.flushRow()
	}
	e.activeRow = row
	e.activeCol = column
}

// invoke runs the object an invocation triplet points to.
func (e *enhancer) invoke(t vt.Triplet) error {
	f := e.f
	newType := vt.ObjectType(t.Mode & 3)
	if newType <= e.typ {
		return nil
	}
	source := (t.Address >> 3) & 3

	var stream []vt.Triplet
	switch source {
	case 0:
		return nil
	case 1: // local
		designation := int(t.Data>>4) | int(t.Address&1)<<4
		triplet := int(t.Data & 0x0F)
		if e.typ != vt.ObjectNone || triplet > 12 {
			return nil
		}
		i := designation*vt.TripletsPerPacket + triplet
		if i >= len(e.local) || e.local[i].Mode != t.Mode|0x04 {
			return nil
		}
		stream = e.local[i+1:]
	default: // normal or global object page
		level35 := f.level >= vt.Level35
		var pgno int
		if source == 3 {
			pgno = f.compLink(vt.FunctionGPOP)
			if vt.NoPage(pgno) {
				link := f.mag.PopLinkAt(0, level35)
				if link == nil {
					return nil
				}
				pgno = link.Pgno
			}
		} else {
			pgno = f.compLink(vt.FunctionPOP)
			if vt.NoPage(pgno) {
				code := f.mag.PopCode(f.raw.Pgno)
				if code == 0 {
					return nil
				}
				link := f.mag.PopLinkAt(code, level35)
				if link == nil {
					return nil
				}
				pgno = link.Pgno
			}
		}
		pop, err := f.objectPage(pgno)
		if err != nil {
			return err
		}
		idx := int((t.Address>>1)&3)*24 +
			(int(t.Address&1)<<2|int((t.Data>>5)&3))*2 +
			int((t.Data>>4)&1)
		ptr := int(pop.Pointers[idx])
		if ptr >= vt.POPTriplets || pop.Triplets[ptr].Mode != t.Mode|0x04 {
			return nil
		}
		stream = pop.Triplets[ptr+1:]
	}

	row := e.invRow + e.activeRow + e.offRow
	col := e.invCol + e.activeCol + e.offCol
	e.offRow, e.offCol = 0, 0
	if row >= Rows || col >= 72 {
		return nil
	}
	sub := f.newEnhancer(newType, e.depth+1, row, col)
	sub.local = e.local
	return sub.run(stream)
}

func (e *enhancer) columnTriplet(t vt.Triplet) error {
	f := e.f
	s := t.Data >> 5
	column := int(t.Address)
	at25 := f.level >= vt.Level25

	switch t.Mode {
	case 0x00: // foreground colour
		if at25 && s == 0 {
			e.moveTo(column)
			e.ac.Foreground = t.Data & 0x1F
			e.acSet |= ovForeground
		}

	case 0x01: // G1 block mosaic
		if !at25 {
			break
		}
		e.moveTo(column)
		switch {
		case charset.IsMosaic(t.Data):
			e.setChar(charset.Mosaic(t.Data, false))
		case t.Data >= 0x40:
			e.setChar(e.plainG0(t.Data))
		}

	case 0x02, 0x0B: // G3 character at level 1.5, at level 2.5
		if t.Mode == 0x0B && !at25 || t.Data < 0x20 {
			break
		}
		e.moveTo(column)
		e.setChar(charset.G3(t.Data))

	case 0x03: // background colour
		if at25 && s == 0 {
			e.moveTo(column)
			e.ac.Background = t.Data & 0x1F
			e.acSet |= ovBackground
		}

	case 0x07: // additional flash functions
		if at25 {
			e.moveTo(column)
			e.setAttr(Flash, t.Data&3 != 0)
			e.acSet |= ovFlash
		}

	case 0x08: // modified G0 and G2 character set
		if at25 {
			e.moveTo(column)
			if charset.Known(int(t.Data)) {
				e.font = charset.Designation(int(t.Data))
			}
		}

	case 0x09: // G0 character
		if at25 && t.Data >= 0x20 {
			e.moveTo(column)
			e.setChar(e.plainG0(t.Data))
		}

	case 0x0C: // display attributes
		if !at25 {
			break
		}
		e.moveTo(column)
		switch {
		case t.Data&0x40 != 0 && t.Data&1 != 0:
			e.ac.Size = DoubleSize
		case t.Data&0x40 != 0:
			e.ac.Size = DoubleWidth
		case t.Data&1 != 0:
			e.ac.Size = DoubleHeight
		default:
			e.ac.Size = Normal
		}
		e.acSet |= ovSize
		e.ac.Opacity = f.pageOpacity[1]
		if t.Data&2 != 0 {
			e.ac.Opacity = TransparentSpace
			if f.raw.Flags.Boxed() {
				e.ac.Opacity = SemiTransparent
			}
		}
		e.acSet |= ovOpacity
		e.setAttr(Conceal, t.Data&4 != 0)
		e.acSet |= ovConceal
		e.invert = t.Data&0x10 != 0
		e.setAttr(Underline, t.Data&0x20 != 0)
		e.acSet |= ovUnderline

	case 0x0D: // DRCS character
		if !at25 {
			break
		}
		return e.drcsChar(column, t.Data)

	case 0x0E: // font style
		if f.level < vt.Level35 {
			break
		}
		e.moveTo(column)
		e.setAttr(Proportional, t.Data&1 != 0)
		e.setAttr(Bold, t.Data&2 != 0)
		e.setAttr(Italic, t.Data&4 != 0)
		e.acSet |= ovProportional | ovBold | ovItalic
		e.styleRows(int(t.Data>>4) & 7)

	case 0x0F: // G2 character
		if t.Data >= 0x20 {
			e.moveTo(column)
			e.setChar(e.font.G2(t.Data))
		}

	default:
		if t.Mode < 0x10 || t.Data < 0x20 {
			break
		}
		// 0x10-0x1F: G0 character with diacritical mark.
		e.moveTo(column)
		mark := int(t.Mode - 0x10)
		if mark == 0 && t.Data == 0x2A {
			e.setChar('@')
			break
		}
		e.setChar(charset.Compose(e.plainG0(t.Data), mark))
	}
	return nil
}

// plainG0 maps c through the current G0 set without national subset.
func (e *enhancer) plainG0(c byte) rune {
	font := e.font
	font.Subset = charset.NoSubset
	return font.G0(c)
}

func (e *enhancer) setChar(r rune) {
	e.ac.Unicode = r
	e.acSet |= ovUnicode
}

func (e *enhancer) setAttr(a Attr, on bool) {
	if on {
		e.ac.Attr |= a
	} else {
		e.ac.Attr &^= a
	}
}

func (e *enhancer) moveTo(column int) {
	if column > e.activeCol {
		e.flush(column)
	}
}

// drcsChar places DRCS glyph data&0x3F of the global (bit 6 clear) or
// normal DRCS page.
func (e *enhancer) drcsChar(column int, data byte) error {
	f := e.f
	normal := (data >> 6) & 1
	offset := int(data & 0x3F)
	if offset >= vt.DRCSPTUs {
		return nil
	}
	e.moveTo(column)

	level35 := f.level >= vt.Level35
	var pgno int
	if normal == 1 {
		pgno = f.compLink(vt.FunctionDRCS)
		if vt.NoPage(pgno) {
			pgno = f.mag.DRCSLinkAt(f.mag.DRCSCode(f.raw.Pgno), level35)
		}
	} else {
		pgno = f.compLink(vt.FunctionGDRCS)
		if vt.NoPage(pgno) {
			pgno = f.mag.DRCSLinkAt(0, level35)
		}
	}
	if vt.NoPage(pgno) {
		return fmt.Errorf("DRCS page for %s: %w", vt.FormatPage(f.raw.Pgno), ErrMissingPage)
	}

	p := f.src.Peek(pgno, e.drcsS1[normal], 0x000F)
	if p == nil || p.DRCS() == nil {
		return fmt.Errorf("DRCS page %s/%d: %w", vt.FormatPage(pgno), e.drcsS1[normal], ErrMissingPage)
	}
	drcs := p.DRCS()
	if f.pg.DRCS[normal] == nil {
		glyphs := *drcs
		f.pg.DRCS[normal] = &glyphs
	}
	if drcs.Valid(offset) {
		e.setChar(charset.DRCS(normal == 1, offset))
	} else {
		e.setChar(' ')
	}
	return nil
}

// styleRows applies the font style to the n rows below the active one.
func (e *enhancer) styleRows(n int) {
	f := e.f
	mask := Proportional | Bold | Italic
	row := e.invRow + e.activeRow
	for r := row + 1; r <= row+n && r < f.rows; r++ {
		for c := 0; c < vt.Columns; c++ {
			cell := &f.pg.Cells[r][c]
			cell.Attr = cell.Attr&^mask | e.ac.Attr&mask
		}
	}
}

// flush applies the pending overrides to the cells from the active column
// up to column. Passive objects only write the active cell.
func (e *enhancer) flush(column int) {
	f := e.f
	row := e.invRow + e.activeRow
	if row >= f.rows || e.typ == vt.ObjectPassive && e.acSet&ovUnicode == 0 {
		e.activeCol = column
		return
	}

	for i := e.invCol + e.activeCol; i < e.invCol+column && i < vt.Columns; {
		c := &f.pg.Cells[row][i]
		if e.acSet&ovForeground != 0 {
			c.Foreground = e.ac.Foreground
		}
		if e.acSet&ovBackground != 0 {
			c.Background = e.ac.Background
		}
		if e.invert {
			c.Foreground, c.Background = c.Background, c.Foreground
		}
		if e.acSet&ovOpacity != 0 {
			c.Opacity = e.ac.Opacity
		}
		for _, m := range attrOverrides {
			if e.acSet&m.ov != 0 {
				c.Attr = c.Attr&^m.attr | e.ac.Attr&m.attr
			}
		}
		if e.acSet&ovUnicode != 0 {
			c.Unicode = e.ac.Unicode
			e.acSet &^= ovUnicode
			if e.acSet&ovSize != 0 {
				c.Size = e.ac.Size
			} else if c.Size > DoubleSize {
				c.Size = Normal
			}
		}

		if e.typ == vt.ObjectPassive {
			break
		}
		i++
		if e.typ == vt.ObjectAdaptive {
			continue
		}
		// Level-1 spacing attributes end the overrides they compete with.
		switch code := f.codes[row][i-1]; {
		case code <= 0x07, code >= 0x10 && code <= 0x17:
			e.acSet &^= ovForeground | ovConceal
		case code == 0x08:
			e.acSet &^= ovFlash
		case code == 0x0A || code == 0x0B:
			e.acSet &^= ovOpacity
		case code >= 0x0D && code <= 0x0F:
			e.acSet &^= ovSize
		}
		if i < vt.Columns {
			switch f.codes[row][i] {
			case 0x09:
				e.acSet &^= ovFlash
			case 0x0C:
				e.acSet &^= ovSize
			case 0x18:
				e.acSet &^= ovConceal
			case 0x1C, 0x1D:
				e.acSet &^= ovBackground
			}
		}
	}
	e.activeCol = column
}

var attrOverrides = [...]struct {
	ov   override
	attr Attr
}{
	{ovFlash, Flash},
	{ovConceal, Conceal},
	{ovUnderline, Underline},
	{ovBold, Bold},
	{ovItalic, Italic},
	{ovProportional, Proportional},
}

// flushRow ends the active row.
func (e *enhancer) flushRow() {
	if e.typ == vt.ObjectPassive || e.typ == vt.ObjectAdaptive {
		e.flush(e.activeCol + 1)
	} else {
		e.flush(vt.Columns)
	}
	if e.typ != vt.ObjectPassive {
		e.acSet = 0
	}
}

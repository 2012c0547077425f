package vt

// Color is a 24-bit 0xRRGGBB value.
type Color uint32

// RGB12 expands a 12-bit 0xRGB colour as transmitted in X/28 packets.
func RGB12(v int) Color {
	r := Color(v>>8&0xF) * 0x11
	g := Color(v>>4&0xF) * 0x11
	b := Color(v&0xF) * 0x11
	return r<<16 | g<<8 | b
}

// Palette geometry. Entries 0-31 are CLUTs 0-3; 32-39 hold the level-1
// colours again so DRCS and navigation rows can rely on them.
const (
	PaletteSize = 40

	// Transparent is the palette index of CLUT 1 entry 0, which a level
	// 2.5 decoder shows as transparent black.
	Transparent = 8
)

// Level-1 colour indices.
const (
	Black = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

var defaultColorMap = [PaletteSize]int{
	0x000, 0xF00, 0x0F0, 0xFF0, 0x00F, 0xF0F, 0x0FF, 0xFFF,
	0x000, 0x700, 0x070, 0x770, 0x007, 0x707, 0x077, 0x777,
	0xF05, 0xF70, 0x0F7, 0xFFB, 0x0CA, 0x500, 0x652, 0xC77,
	0x333, 0xF77, 0x7F7, 0xFF7, 0x77F, 0xF7F, 0x7FF, 0xDDD,
	0x000, 0xF00, 0x0F0, 0xFF0, 0x00F, 0xF0F, 0x0FF, 0xFFF,
}

// DRCS colour lookup layout: two unused slots, 4-colour tables for global
// then normal DRCS, 16-colour tables for global then normal DRCS.
const (
	DRCSCLUTSize     = 2 + 2*4 + 2*16
	DRCSCLUT4Global  = 2
	DRCSCLUT4Normal  = 6
	DRCSCLUT16Global = 10
	DRCSCLUT16Normal = 26
)

// Extension holds the presentation parameters of X/28 and M/29 packets.
type Extension struct {
	// Designations has bit n set once designation n was received.
	Designations uint32

	// CharCode holds the primary (G0 and G2) and secondary G0 character
	// set designations, seven bits each: region in bits 3-6, national
	// option in bits 0-2.
	CharCode [2]int

	DefScreenColor int
	DefRowColor    int
	BlackBgSubst   bool
	// ForegroundCLUT and BackgroundCLUT are palette offsets (0, 8, 16 or
	// 24) applied to level-1 colour codes.
	ForegroundCLUT int
	BackgroundCLUT int

	LeftPanel        bool
	RightPanel       bool
	LeftPanelColumns int

	ColorMap [PaletteSize]Color
	DRCSCLUT [DRCSCLUTSize]uint8
}

var (
	remapForeground = [8]int{0, 0, 0, 8, 8, 16, 16, 16}
	remapBackground = [8]int{0, 8, 16, 8, 16, 8, 16, 24}
)

// SetCLUTRemap applies the 3-bit colour table remapping code.
func (e *Extension) SetCLUTRemap(code int) {
	e.ForegroundCLUT = remapForeground[code&7]
	e.BackgroundCLUT = remapBackground[code&7]
}

// Reset restores the defaults a decoder uses before any X/28 or M/29
// packet arrived. region selects the default character set region.
func (e *Extension) Reset(region int) {
	*e = Extension{}
	e.CharCode[0] = (region & 0x0F) << 3
	e.CharCode[1] = 0x7F
	e.DefScreenColor = Black
	e.DefRowColor = Black
	for i, v := range defaultColorMap {
		e.ColorMap[i] = RGB12(v)
	}
	for i := 0; i < 4; i++ {
		e.DRCSCLUT[DRCSCLUT4Global+i] = uint8(i)
		e.DRCSCLUT[DRCSCLUT4Normal+i] = uint8(i)
	}
	for i := 0; i < 16; i++ {
		e.DRCSCLUT[DRCSCLUT16Global+i] = uint8(i)
		e.DRCSCLUT[DRCSCLUT16Normal+i] = uint8(i)
	}
}

// DefaultExtension returns an Extension reset for the given region.
func DefaultExtension(region int) Extension {
	var e Extension
	e.Reset(region)
	return e
}

// ObjectType orders enhancement objects by priority. An object may only
// invoke objects of a strictly greater type, so local enhancement data can
// invoke all three kinds and passive objects invoke none.
type ObjectType uint8

// Object types, in invocation order.
const (
	ObjectNone ObjectType = iota
	ObjectActive
	ObjectAdaptive
	ObjectPassive
)

func (t ObjectType) String() string {
	switch t {
	case ObjectNone:
		return "local"
	case ObjectActive:
		return "active"
	case ObjectAdaptive:
		return "adaptive"
	case ObjectPassive:
		return "passive"
	}
	return "invalid"
}

// DefaultObject is an object a POP link invokes when a page carries no
// local enhancement data. Pointer indexes the object page's pointer table.
type DefaultObject struct {
	Type    ObjectType
	Pointer int
}

// Fallback holds the presentation values a level 1.5 decoder would use in
// place of the objects of a POP link.
type Fallback struct {
	BlackBgSubst     bool
	LeftPanel        bool
	RightPanel       bool
	LeftPanelColumns int
}

// PopLink is one object page entry of a magazine organisation table.
type PopLink struct {
	Pgno     int
	Subpages int
	Fallback Fallback
	Default  [2]DefaultObject
}

// Magazine link table sizes. Links 0-7 serve level 2.5 and links 8-15
// level 3.5; the first link of each half names the global page.
const (
	MagazineLinks = 16
	Level35Links  = 8
)

// Magazine is the per-magazine state built from M/29 packets and the
// magazine organisation table.
type Magazine struct {
	Ext Extension

	// PopLUT and DRCSLUT are indexed by the low byte of a page number and
	// hold the 4-bit link codes of the magazine organisation table.
	PopLUT  [256]uint8
	DRCSLUT [256]uint8

	PopLink  [MagazineLinks]PopLink
	DRCSLink [MagazineLinks]int
}

// Reset clears all tables and restores the default extension.
func (m *Magazine) Reset(region int) {
	*m = Magazine{}
	m.Ext.Reset(region)
	for i := range m.PopLink {
		m.PopLink[i].Pgno = 0x8FF
		m.PopLink[i].Default[0].Pointer = -1
		m.PopLink[i].Default[1].Pointer = -1
	}
	for i := range m.DRCSLink {
		m.DRCSLink[i] = 0x8FF
	}
}

// PopCode returns the object link code of pgno: 0 names the global
// object page only, 1-7 a normal object page link.
func (m *Magazine) PopCode(pgno int) int {
	return int(m.PopLUT[pgno&0xFF] & 7)
}

// DRCSCode returns the DRCS link code of pgno, see PopCode.
func (m *Magazine) DRCSCode(pgno int) int {
	return int(m.DRCSLUT[pgno&0xFF] & 7)
}

// PopLinkAt returns object link i (0-7). At level 3.5 the level 3.5 link
// is preferred when it names a page. It returns nil when no link does.
func (m *Magazine) PopLinkAt(i int, level35 bool) *PopLink {
	if level35 {
		if l := &m.PopLink[Level35Links+i&7]; !NoPage(l.Pgno) {
			return l
		}
	}
	if l := &m.PopLink[i&7]; !NoPage(l.Pgno) {
		return l
	}
	return nil
}

// DRCSLinkAt returns the page of DRCS link i (0-7), or 0x8FF.
func (m *Magazine) DRCSLinkAt(i int, level35 bool) int {
	if level35 {
		if p := m.DRCSLink[Level35Links+i&7]; !NoPage(p) {
			return p
		}
	}
	return m.DRCSLink[i&7]
}

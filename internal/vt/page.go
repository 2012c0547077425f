// Package vt defines the raw Teletext page model shared by the packet
// accumulator, the page cache and the formatting engine. A Page is a
// tagged variant: its Function selects which Payload it carries.
package vt

import "fmt"

// Page and subpage number bounds.
const (
	FirstPage = 0x100
	LastPage  = 0x8FF
	NumPages  = LastPage - FirstPage + 1

	// AnySubno matches every subpage in lookups.
	AnySubno = 0x3F7F
	// MaxSubno is the highest subpage code a header can carry.
	MaxSubno = 0x3F7E
)

// Screen geometry of a raw level-1 page.
const (
	Rows    = 25
	Columns = 40
)

// Function is the role a page plays in the service.
type Function int8

// Page functions. Unknown pages become LOP when stored.
const (
	FunctionUnknown Function = iota
	FunctionLOP
	FunctionGPOP
	FunctionPOP
	FunctionGDRCS
	FunctionDRCS
	FunctionMOT
	FunctionMIP
	FunctionBTT
	FunctionAIT
	FunctionMPT
	FunctionMPTEX
	FunctionTrigger
	FunctionDiscard
)

var functionNames = [...]string{
	FunctionUnknown: "unknown",
	FunctionLOP:     "lop",
	FunctionGPOP:    "gpop",
	FunctionPOP:     "pop",
	FunctionGDRCS:   "gdrcs",
	FunctionDRCS:    "drcs",
	FunctionMOT:     "mot",
	FunctionMIP:     "mip",
	FunctionBTT:     "btt",
	FunctionAIT:     "ait",
	FunctionMPT:     "mpt",
	FunctionMPTEX:   "mpt-ex",
	FunctionTrigger: "trigger",
	FunctionDiscard: "discard",
}

func (f Function) String() string {
	if f >= 0 && int(f) < len(functionNames) {
		return functionNames[f]
	}
	return fmt.Sprintf("function(%d)", int8(f))
}

// Displayable reports whether pages of this function can be formatted.
func (f Function) Displayable() bool {
	return f == FunctionLOP || f == FunctionTrigger
}

// IsObjectPage reports whether f carries enhancement objects.
func (f Function) IsObjectPage() bool {
	return f == FunctionGPOP || f == FunctionPOP
}

// IsDRCSPage reports whether f carries downloaded glyphs.
func (f Function) IsDRCSPage() bool {
	return f == FunctionGDRCS || f == FunctionDRCS
}

// FunctionFromCode maps the 4-bit page function field of packet X/28/0
// format 1 to a Function. Codes without a decoder of their own map to
// FunctionUnknown.
func FunctionFromCode(code int) Function {
	switch code {
	case 0:
		return FunctionLOP
	case 2:
		return FunctionGPOP
	case 3:
		return FunctionPOP
	case 4:
		return FunctionGDRCS
	case 5:
		return FunctionDRCS
	case 6:
		return FunctionMOT
	case 7:
		return FunctionMIP
	case 8:
		return FunctionBTT
	case 9:
		return FunctionAIT
	case 10:
		return FunctionMPT
	case 11:
		return FunctionMPTEX
	}
	return FunctionUnknown
}

// Flags are the control bits C4-C11 of a page header.
type Flags uint16

// Header control bits.
const (
	FlagErase          Flags = 1 << iota // C4
	FlagNewsflash                        // C5
	FlagSubtitle                         // C6
	FlagSuppressHeader                   // C7
	FlagUpdate                           // C8
	FlagInterrupted                      // C9
	FlagInhibitDisplay                   // C10
	FlagMagazineSerial                   // C11
)

// Boxed reports whether the page is meant to be overlaid on video.
func (f Flags) Boxed() bool {
	return f&(FlagNewsflash|FlagSubtitle) != 0
}

// Link addresses a page and subpage.
type Link struct {
	Pgno  int `json:"page"`
	Subno int `json:"subpage"`
}

// NoPage reports whether pgno is a null link (units and tens 0xFF).
func NoPage(pgno int) bool {
	return pgno&0xFF == 0xFF
}

// Valid reports whether l points at a real page.
func (l Link) Valid() bool {
	return l.Pgno >= FirstPage && l.Pgno <= LastPage && !NoPage(l.Pgno)
}

// CompLink is a compositional link from packet X/27/4 or X/27/5 naming an
// object or DRCS page used by this page.
type CompLink struct {
	Function    Function
	Level25     bool
	Level35     bool
	Pgno        int
	SubpageMask uint16
}

// Payload is implemented by the per-function page contents.
type Payload interface {
	payload()
}

// Page is one accumulated raw page.
type Page struct {
	Function Function
	Pgno     int
	Subno    int
	National int
	Flags    Flags

	// LOPLines has bit n set once packet X/n (0-25) arrived.
	LOPLines uint32
	// EnhLines has bit n set once packet X/26 designation n arrived.
	EnhLines uint32
	// X28Lines has bit n set once packet X/28 designation n arrived.
	X28Lines uint32

	Data Payload
}

// NewPage returns an empty page of the given function with a payload of
// the matching shape.
func NewPage(fn Function, pgno, subno int) *Page {
	return &Page{
		Function: fn,
		Pgno:     pgno,
		Subno:    subno,
		Data:     NewPayload(fn),
	}
}

// NewPayload allocates the payload variant a page of function fn carries.
func NewPayload(fn Function) Payload {
	switch fn {
	case FunctionGPOP, FunctionPOP:
		return NewPOP()
	case FunctionGDRCS, FunctionDRCS:
		return NewDRCS()
	case FunctionAIT:
		return NewAIT()
	}
	return NewLOP()
}

// LOP returns the level-one payload, or nil.
func (p *Page) LOP() *LOP {
	l, _ := p.Data.(*LOP)
	return l
}

// POP returns the object payload, or nil.
func (p *Page) POP() *POP {
	o, _ := p.Data.(*POP)
	return o
}

// DRCS returns the glyph payload, or nil.
func (p *Page) DRCS() *DRCS {
	d, _ := p.Data.(*DRCS)
	return d
}

// AIT returns the additional information table, or nil.
func (p *Page) AIT() *AIT {
	a, _ := p.Data.(*AIT)
	return a
}

// SameShape reports whether p and q carry the same payload variant.
func (p *Page) SameShape(q *Page) bool {
	return sameType(p.Data, q.Data)
}

// Clone returns a deep copy of p.
func (p *Page) Clone() *Page {
	c := *p
	c.Data = clonePayload(p.Data)
	return &c
}

// CopyFrom overwrites p with q, reusing p's payload when the shapes match.
func (p *Page) CopyFrom(q *Page) {
	data := p.Data
	*p = *q
	if data != nil && sameType(data, q.Data) {
		copyPayload(data, q.Data)
		p.Data = data
		return
	}
	p.Data = clonePayload(q.Data)
}

func sameType(a, b Payload) bool {
	switch a.(type) {
	case *LOP:
		_, ok := b.(*LOP)
		return ok
	case *POP:
		_, ok := b.(*POP)
		return ok
	case *DRCS:
		_, ok := b.(*DRCS)
		return ok
	case *AIT:
		_, ok := b.(*AIT)
		return ok
	}
	return false
}

func clonePayload(d Payload) Payload {
	switch v := d.(type) {
	case *LOP:
		c := *v
		return &c
	case *POP:
		c := *v
		return &c
	case *DRCS:
		c := *v
		return &c
	case *AIT:
		c := *v
		return &c
	}
	return nil
}

func copyPayload(dst, src Payload) {
	switch d := dst.(type) {
	case *LOP:
		*d = *src.(*LOP)
	case *POP:
		*d = *src.(*POP)
	case *DRCS:
		*d = *src.(*DRCS)
	case *AIT:
		*d = *src.(*AIT)
	}
}

// String identifies the page in logs.
func (p *Page) String() string {
	return fmt.Sprintf("%03X.%04X/%s", p.Pgno, p.Subno, p.Function)
}

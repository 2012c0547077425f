package vt

// Triplet is one enhancement code unit. Address 40-63 denotes a row
// address triplet, 0-39 a column address triplet.
type Triplet struct {
	Address uint8
	Mode    uint8
	Data    uint8
}

// Triplet mode values shared by the accumulator and the enhancer.
const (
	ModeTermination = 0x1F
	// ModeSkip is a reserved row function. Triplets that failed Hamming
	// decoding are stored with this mode so the stream keeps its indices.
	ModeSkip = 0x1E
)

// TripletFromBits splits the 18 data bits of a Hamming 24/18 codeword.
func TripletFromBits(v int) Triplet {
	return Triplet{
		Address: uint8(v & 0x3F),
		Mode:    uint8((v >> 6) & 0x1F),
		Data:    uint8(v >> 11),
	}
}

// Bits packs t back into 18 bits.
func (t Triplet) Bits() int {
	return int(t.Address) | int(t.Mode)<<6 | int(t.Data)<<11
}

// RowAddress reports whether t is a row address triplet.
func (t Triplet) RowAddress() bool {
	return t.Address >= Columns
}

var (
	skipTriplet        = Triplet{Address: 41, Mode: ModeSkip}
	terminationTriplet = Triplet{Address: 63, Mode: ModeTermination, Data: 0x7F}
)

// SkipTriplet stands in for a triplet lost to a codeword error.
func SkipTriplet() Triplet { return skipTriplet }

// TerminationTriplet marks the end of a page's enhancement data.
func TerminationTriplet() Triplet { return terminationTriplet }

// Enhancement packet capacity: X/26 designations 0-15, 13 triplets each.
const (
	EnhPackets        = 16
	TripletsPerPacket = 13
	EnhTriplets       = EnhPackets * TripletsPerPacket
)

// LOP is the payload of level-one pages, trigger pages and the table pages
// (MOT, MIP, BTT, MPT) whose rows are parsed when the page completes.
type LOP struct {
	Raw [Rows + 1][Columns]byte

	// Link holds the X/27/0 editorial links: red, green, yellow, cyan,
	// next and index.
	Link [6]Link
	// ExtraLinks holds X/27 designations 1-3.
	ExtraLinks [3][6]Link
	// FLOF is set when X/27/0 asks for row 24 to be shown as a link row.
	FLOF bool
	// CompLinks holds the X/27/4 (0-5) and X/27/5 (6-7) compositional links.
	CompLinks [8]CompLink

	// Enh holds the local enhancement triplets; EnhCount of them are valid.
	Enh      [EnhTriplets]Triplet
	EnhCount int

	// Ext is the page-level extension (X/28/0, /1, /4). Designations is
	// zero when no X/28 packet arrived.
	Ext Extension
}

func (*LOP) payload() {}

// NewLOP returns a LOP with blank rows and null links.
func NewLOP() *LOP {
	l := &LOP{}
	for r := range l.Raw {
		for c := range l.Raw[r] {
			l.Raw[r][c] = ' '
		}
	}
	for i := range l.Link {
		l.Link[i] = Link{Pgno: 0x8FF, Subno: AnySubno}
	}
	for d := range l.ExtraLinks {
		for i := range l.ExtraLinks[d] {
			l.ExtraLinks[d][i] = Link{Pgno: 0x8FF, Subno: AnySubno}
		}
	}
	for i := range l.CompLinks {
		l.CompLinks[i].Pgno = 0x8FF
	}
	for i := range l.Enh {
		l.Enh[i] = terminationTriplet
	}
	return l
}

// Object page geometry: four pointer packets of 24 pointers, and object
// triplets in packets X/3-X/25 followed by X/26/0-15.
const (
	POPPointers = 96
	POPTriplets = 23*TripletsPerPacket + EnhTriplets

	// NoPointer marks an unused pointer table slot.
	NoPointer = 0x1FF
)

// POP is the payload of global and normal object pages.
type POP struct {
	Pointers [POPPointers]uint16
	Triplets [POPTriplets]Triplet
}

func (*POP) payload() {}

// NewPOP returns an object page with empty pointers and terminated
// triplets.
func NewPOP() *POP {
	p := &POP{}
	for i := range p.Pointers {
		p.Pointers[i] = NoPointer
	}
	for i := range p.Triplets {
		p.Triplets[i] = terminationTriplet
	}
	return p
}

// PacketTriplets returns the index of the first triplet stored for body
// packet n (3-25) or -1.
func PacketTriplets(n int) int {
	if n < 3 || n > 25 {
		return -1
	}
	return (n - 3) * TripletsPerPacket
}

// DRCS geometry: 48 pattern transfer units of 12x10 pixels, each sent as
// 20 six-bit bytes.
const (
	DRCSPTUs     = 48
	DRCSPTUBytes = 20
	DRCSWidth    = 12
	DRCSHeight   = 10
)

// DRCS coding modes (X/28/3).
const (
	DRCSMode12x10x1 = 0
	DRCSMode12x10x2 = 1
	DRCSMode12x10x4 = 2
	DRCSMode6x5x4   = 3
	DRCSModeSubseq  = 14
	DRCSModeNoData  = 15
)

// DRCS is the payload of global and normal DRCS pages.
type DRCS struct {
	PTU  [DRCSPTUs][DRCSPTUBytes]byte
	Mode [DRCSPTUs]uint8
	// Invalid has bit i set while PTU i is missing or corrupt.
	Invalid uint64
}

func (*DRCS) payload() {}

// NewDRCS returns a DRCS page with every PTU invalid.
func NewDRCS() *DRCS {
	return &DRCS{Invalid: 1<<DRCSPTUs - 1}
}

// Planes returns how many consecutive PTUs glyph i occupies.
func (d *DRCS) Planes(i int) int {
	switch d.Mode[i] {
	case DRCSMode12x10x2:
		return 2
	case DRCSMode12x10x4:
		return 4
	}
	return 1
}

// Valid reports whether glyph i and every plane it spans arrived intact.
func (d *DRCS) Valid(i int) bool {
	if i < 0 || i >= DRCSPTUs {
		return false
	}
	n := d.Planes(i)
	if i+n > DRCSPTUs {
		return false
	}
	mask := uint64(1<<n-1) << i
	return d.Invalid&mask == 0 && d.Mode[i] != DRCSModeNoData && d.Mode[i] != DRCSModeSubseq
}

// Pixels renders glyph i as colour indices 0-15. Single-plane glyphs yield
// 0 and 1; multi-plane glyphs combine planes least significant first.
// Mode 6x5x4 glyphs are scaled up to 12x10.
func (d *DRCS) Pixels(i int) (px [DRCSHeight][DRCSWidth]uint8) {
	if !d.Valid(i) {
		return px
	}
	if d.Mode[i] == DRCSMode6x5x4 {
		// 6x5 pixels, 4 bits per pixel in one PTU.
		ptu := &d.PTU[i]
		for y := 0; y < 5; y++ {
			for x := 0; x < 6; x++ {
				n := y*6 + x
				var v uint8
				for b := 0; b < 4; b++ {
					bit := n*4 + b
					if ptu[bit/6]&(0x20>>(bit%6)) != 0 {
						v |= 1 << b
					}
				}
				px[y*2][x*2] = v
				px[y*2][x*2+1] = v
				px[y*2+1][x*2] = v
				px[y*2+1][x*2+1] = v
			}
		}
		return px
	}
	for plane := 0; plane < d.Planes(i); plane++ {
		ptu := &d.PTU[i+plane]
		for y := 0; y < DRCSHeight; y++ {
			for x := 0; x < DRCSWidth; x++ {
				b := ptu[y*2+x/6]
				if b&(0x20>>(x%6)) != 0 {
					px[y][x] |= 1 << plane
				}
			}
		}
	}
	return px
}

// AITEntry names one page for the TOP navigation row.
type AITEntry struct {
	Page Link
	Text [12]byte
}

// AITEntries is the number of entries on one AIT page (two per row 1-23).
const AITEntries = 46

// AIT is the payload of TOP additional information tables.
type AIT struct {
	Entries [AITEntries]AITEntry
}

func (*AIT) payload() {}

// NewAIT returns an AIT with null entries.
func NewAIT() *AIT {
	a := &AIT{}
	for i := range a.Entries {
		a.Entries[i].Page = Link{Pgno: 0x8FF, Subno: AnySubno}
		for j := range a.Entries[i].Text {
			a.Entries[i].Text[j] = ' '
		}
	}
	return a
}

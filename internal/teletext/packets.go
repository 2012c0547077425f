package teletext

import (
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// enhancement handles packet X/26: 13 triplets at the position given by
// the designation code. Designations must arrive in order; a gap or a
// repeat discards the page.
func (d *Decoder) enhancement(mag int, p []byte) error {
	a := &d.acc[mag]
	if !a.active || a.page.Function == vt.FunctionDiscard {
		return nil
	}
	des := hamming.Unham8(p[2])
	if des < 0 {
		return hammingError(pageMagazine(mag), 26, "designation")
	}
	if des != a.nextEnh {
		d.log.Debug("X/26 out of sequence",
			"page", a.page.String(), "designation", des, "want", a.nextEnh)
		a.page.Function = vt.FunctionDiscard
		return nil
	}
	if des == 0 {
		// Drop triplets seeded from an earlier transmission.
		a.lop.Enh = blankLOP.Enh
		a.page.EnhLines = 0
	}

	base := des * vt.TripletsPerPacket
	for i := 0; i < vt.TripletsPerPacket; i++ {
		v := hamming.Unham24(p[3+i*3:])
		if v < 0 {
			a.lop.Enh[base+i] = vt.SkipTriplet()
			continue
		}
		a.lop.Enh[base+i] = vt.TripletFromBits(v)
	}
	a.lop.EnhCount = base + vt.TripletsPerPacket
	a.page.EnhLines |= 1 << des
	a.nextEnh++
	return nil
}

// links handles packet X/27. Designations 0-3 carry editorial links,
// 4 and 5 compositional links.
func (d *Decoder) links(mag int, p []byte) error {
	a := &d.acc[mag]
	if !a.active || a.page.Function == vt.FunctionDiscard {
		return nil
	}
	des := hamming.Unham8(p[2])
	if des < 0 {
		return hammingError(pageMagazine(mag), 27, "designation")
	}

	switch {
	case des <= 3:
		var links [6]vt.Link
		for i := range links {
			l, ok := decodeLink(mag, p[3+i*6:])
			if !ok {
				return hammingError(pageMagazine(mag), 27, "link")
			}
			links[i] = l
		}
		if des == 0 {
			a.lop.Link = links
			if ctrl := hamming.Unham8(p[39]); ctrl >= 0 {
				a.lop.FLOF = ctrl&0x08 != 0
			}
		} else {
			a.lop.ExtraLinks[des-1] = links
		}

	case des == 4 || des == 5:
		n, base := 6, 0
		if des == 5 {
			n, base = 2, 6
		}
		for i := 0; i < n; i++ {
			t1 := hamming.Unham24(p[3+i*6:])
			t2 := hamming.Unham24(p[6+i*6:])
			if t1 < 0 || t2 < 0 {
				return hammingError(pageMagazine(mag), 27, "compositional link")
			}
			a.lop.CompLinks[base+i] = decodeCompLink(mag, t1, t2)
		}
	}
	a.page.LOPLines |= 1 << 27
	return nil
}

// decodeLink reads a six byte page link: units, tens and four subcode
// nibbles, with the magazine given relative to mag in bits of S2 and S4.
func decodeLink(mag int, p []byte) (vt.Link, bool) {
	b1 := hamming.Unham16(p)
	b2 := hamming.Unham16(p[2:])
	b3 := hamming.Unham16(p[4:])
	if b1 < 0 || b2 < 0 || b3 < 0 {
		return vt.Link{}, false
	}
	rel := (b2 >> 7) | ((b3 >> 5) & 6)
	return vt.Link{
		Pgno:  pageMagazine(mag^rel)<<8 | b1,
		Subno: (b3<<8 | b2) & 0x3F7F,
	}, true
}

var compFunctions = [4]vt.Function{
	vt.FunctionGPOP, vt.FunctionPOP, vt.FunctionGDRCS, vt.FunctionDRCS,
}

// decodeCompLink reads a compositional link from two triplets: function
// in bits 0-1, levels in bits 2-3, page units in 7-10, tens in 11-14 and
// relative magazine in 15-17 of the first; subpage mask in bits 3-17 of
// the second.
func decodeCompLink(mag, t1, t2 int) vt.CompLink {
	units := (t1 >> 7) & 0xF
	tens := (t1 >> 11) & 0xF
	rel := (t1 >> 15) & 7
	return vt.CompLink{
		Function:    compFunctions[t1&3],
		Level25:     t1&4 != 0,
		Level35:     t1&8 != 0,
		Pgno:        pageMagazine(mag^rel)<<8 | tens<<4 | units,
		SubpageMask: uint16(t2 >> 3),
	}
}

// extension handles X/28 (page) and M/29 (magazine) packets.
func (d *Decoder) extension(mag, packet int, p []byte) error {
	des := hamming.Unham8(p[2])
	if des < 0 {
		return hammingError(pageMagazine(mag), packet, "designation")
	}

	a := &d.acc[mag]
	var ext *vt.Extension
	if packet == 28 {
		if !a.active || a.page.Function == vt.FunctionDiscard {
			return nil
		}
		if a.page.X28Lines&(1<<0|1<<1|1<<4) == 0 {
			// First extension packet: start from the magazine defaults so
			// fields a designation does not carry stay valid.
			a.lop.Ext = d.magazines[pageMagazine(mag)].Ext
			a.lop.Ext.Designations = 0
		}
		ext = &a.lop.Ext
	} else {
		ext = &d.magazines[pageMagazine(mag)].Ext
	}

	r := newTripletReader(p[3:], vt.TripletsPerPacket)

	// Fields are decoded into copies and committed only when every triplet
	// they came from was readable.
	switch des {
	case 0, 4:
		function := r.read(4)
		coding := r.read(3)
		tmp := *ext
		readExtension(r, &tmp, des == 4)
		if !r.clean() {
			return hammingError(pageMagazine(mag), packet, "triplet")
		}
		if packet == 28 && des == 0 {
			d.retag(a, vt.FunctionFromCode(function), coding)
		}
		*ext = tmp
	case 1:
		r.skip(7)
		tmp := *ext
		readDRCSCLUT(r, &tmp)
		if !r.clean() {
			return hammingError(pageMagazine(mag), packet, "triplet")
		}
		*ext = tmp
	case 3:
		if packet != 28 {
			return nil
		}
		function := r.read(4)
		r.read(3)
		var modes [vt.DRCSPTUs]uint8
		for i := range modes {
			modes[i] = uint8(r.read(4))
		}
		if !r.clean() {
			return hammingError(pageMagazine(mag), packet, "triplet")
		}
		if fn := vt.FunctionFromCode(function); fn.IsDRCSPage() {
			d.retag(a, fn, 0)
		}
		a.drcsModes = modes
	default:
		return nil
	}

	ext.Designations |= 1 << des
	if packet == 28 {
		a.page.X28Lines |= 1 << des
	}
	return nil
}

// retag sets the function of a page not yet classified.
func (d *Decoder) retag(a *accumulator, fn vt.Function, coding int) {
	if fn == vt.FunctionUnknown || a.page.Function != vt.FunctionUnknown {
		return
	}
	d.log.Debug("page function from X/28", "page", a.page.String(), "function", fn, "coding", coding)
	a.page.Function = fn
}

// readExtension reads the presentation fields shared by X/28/0 format 1,
// X/28/4, M/29/0 and M/29/4. Designation 4 redefines CLUTs 0 and 1,
// designation 0 CLUTs 2 and 3.
func readExtension(r *tripletReader, ext *vt.Extension, clut01 bool) {
	ext.CharCode[0] = r.read(7)
	ext.CharCode[1] = r.read(7)
	ext.LeftPanel = r.read(1) != 0
	ext.RightPanel = r.read(1) != 0
	r.skip(1)
	ext.LeftPanelColumns = r.read(4)

	base := 16
	if clut01 {
		base = 0
	}
	for i := 0; i < 16; i++ {
		ext.ColorMap[base+i] = vt.RGB12(r.read(12))
	}

	ext.DefScreenColor = r.read(5)
	ext.DefRowColor = r.read(5)
	ext.BlackBgSubst = r.read(1) != 0
	ext.SetCLUTRemap(r.read(3))
}

func readDRCSCLUT(r *tripletReader, ext *vt.Extension) {
	for i := 0; i < 4; i++ {
		ext.DRCSCLUT[vt.DRCSCLUT4Global+i] = uint8(r.read(5))
	}
	for i := 0; i < 4; i++ {
		ext.DRCSCLUT[vt.DRCSCLUT4Normal+i] = uint8(r.read(5))
	}
	for i := 0; i < 16; i++ {
		ext.DRCSCLUT[vt.DRCSCLUT16Global+i] = uint8(r.read(5))
	}
	for i := 0; i < 16; i++ {
		ext.DRCSCLUT[vt.DRCSCLUT16Normal+i] = uint8(r.read(5))
	}
}

// broadcastService handles packet 8/30. Format 1 carries the initial page,
// the network identification and a status display; a change of network
// identification means the channel changed.
func (d *Decoder) broadcastService(p []byte) error {
	des := hamming.Unham8(p[2])
	if des < 0 {
		return hammingError(8, 30, "designation")
	}
	if des&0x0E != 0 {
		// Format 2 carries programme delivery control data.
		return nil
	}

	if l, ok := decodeLink(0, p[3:]); ok {
		d.initialPage = l
	}

	ni := hamming.Rev16P(p[9:])
	if d.networkID != 0 && ni != d.networkID {
		d.log.Info("network identification changed",
			"from", d.networkID, "to", ni)
		d.RequestChannelSwitch()
		return nil
	}
	d.networkID = ni

	for i := range d.status {
		if c := hamming.Parity(p[22+i]); c >= 0x20 {
			d.status[i] = byte(c)
		}
	}
	return nil
}

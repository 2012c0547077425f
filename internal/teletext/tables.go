package teletext

import (
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// tablePages walks the 160 page slots that MOT and MIP rows 1-8 describe:
// tens 0-F times units 0-9, two bytes per page, twenty pages per row.
func tablePages(l *vt.LOP, fn func(low int, b []byte)) {
	k := 0
	for tens := 0; tens < 16; tens++ {
		for units := 0; units < 10; units++ {
			row := 1 + k/20
			col := (k % 20) * 2
			fn(tens<<4|units, l.Raw[row][col:col+2])
			k++
		}
	}
}

// parseMOT builds the object and DRCS link tables of a magazine from its
// organisation table page (mFE).
func (d *Decoder) parseMOT(pg *vt.Page) {
	l := pg.LOP()
	m := &d.magazines[magazineOf(pg.Pgno)]

	tablePages(l, func(low int, b []byte) {
		if n := hamming.Unham8(b[0]); n >= 0 {
			m.PopLUT[low] = uint8(n)
		}
		if n := hamming.Unham8(b[1]); n >= 0 {
			m.DRCSLUT[low] = uint8(n)
		}
	})

	// Rows 19-22: object links, four per row, ten nibbles each.
	for i := 0; i < vt.MagazineLinks; i++ {
		row := 19 + i/4
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		col := (i % 4) * 10
		if link, ok := parsePopLink(l.Raw[row][col : col+10]); ok {
			m.PopLink[i] = link
		}
	}

	// Rows 23-24: DRCS links, eight per row, four nibbles each.
	for i := 0; i < vt.MagazineLinks; i++ {
		row := 23 + i/8
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		col := (i % 8) * 4
		var n [4]int
		if !unhamAll(l.Raw[row][col:col+4], n[:]) {
			continue
		}
		m.DRCSLink[i] = pageMagazine(n[0])<<8 | n[1]<<4 | n[2]
	}

	d.log.Debug("magazine organisation table", "magazine", magazineOf(pg.Pgno))
}

func parsePopLink(b []byte) (vt.PopLink, bool) {
	var n [10]int
	if !unhamAll(b, n[:]) {
		return vt.PopLink{}, false
	}
	link := vt.PopLink{
		Pgno:     pageMagazine(n[0])<<8 | n[1]<<4 | n[2],
		Subpages: n[3],
		Fallback: vt.Fallback{
			BlackBgSubst:     n[4]&1 != 0,
			LeftPanel:        n[4]&2 != 0,
			RightPanel:       n[4]&4 != 0,
			LeftPanelColumns: n[5],
		},
	}
	for i := range link.Default {
		typ := vt.ObjectType((n[6] >> (2 * i)) & 3)
		packet := (n[9] >> (2 * i)) & 3
		triplet := n[7+i] & 7
		pos := (n[7+i] >> 3) & 1
		link.Default[i] = vt.DefaultObject{Type: typ, Pointer: -1}
		if typ != vt.ObjectNone {
			link.Default[i].Pointer = packet*24 + triplet*2 + pos
		}
	}
	return link, true
}

func unhamAll(b []byte, out []int) bool {
	for i := range out {
		v := hamming.Unham8(b[i])
		if v < 0 {
			return false
		}
		out[i] = v
	}
	return true
}

// parseMIP applies a magazine inventory page (mFD) to the classification
// table.
func (d *Decoder) parseMIP(pg *vt.Page) {
	l := pg.LOP()
	mag := magazineOf(pg.Pgno) << 8
	tablePages(l, func(low int, b []byte) {
		code := hamming.Unham16(b)
		if code < 0 {
			return
		}
		st := d.stat(mag | low)
		switch {
		case code == 0x00:
			st.Type = vt.TypeNone
		case code == 0x01:
			st.Type = vt.TypeNormal
			st.Subpages = 0
		case code <= 0x4F:
			st.Type = vt.TypeNormal
			st.Subpages = code
		case code >= 0x70 && code <= 0x77:
			st.Type = vt.TypeSubtitle
			st.Charset = code & 7
		default:
			st.Type = vt.PageType(code)
		}
	})
}

// parseBTT reads the TOP basic table (1F0): one nibble per page 100-899
// in rows 1-20 and fifteen table links in rows 21-23.
func (d *Decoder) parseBTT(pg *vt.Page) {
	l := pg.LOP()
	d.haveTOP = true

	for i := 0; i < 800; i++ {
		row := 1 + i/40
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		code := hamming.Unham8(l.Raw[row][i%40])
		if code < 0 {
			continue
		}
		st := d.stat(vt.DecToBCD(i + 100))
		switch code {
		case 0:
			if st.Type == vt.TypeUnknown {
				st.Type = vt.TypeNone
			}
		case 1:
			st.Type = vt.TypeSubtitle
		case 2, 3:
			st.Type = vt.TypeTOPBlock
		case 4, 5:
			st.Type = vt.TypeTOPGroup
		case 6, 7:
			if st.Type == vt.TypeUnknown || st.Type == vt.TypeNone {
				st.Type = vt.TypeNormal
			}
		}
		if code > 1 && code&1 == 0 && st.Subpages == 0xFFFF {
			st.Subpages = 0
		}
	}

	for i := range d.btt {
		row := 21 + i/5
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		col := (i % 5) * 8
		var n [8]int
		if !unhamAll(l.Raw[row][col:col+8], n[:]) {
			continue
		}
		b := bttLink{link: vt.Link{
			Pgno:  pageMagazine(n[0])<<8 | n[1]<<4 | n[2],
			Subno: (n[3]<<12 | n[4]<<8 | n[5]<<4 | n[6]) & 0x3F7F,
		}}
		switch n[7] {
		case 1:
			b.function = vt.FunctionMPT
		case 2:
			b.function = vt.FunctionAIT
		case 3:
			b.function = vt.FunctionMPTEX
		}
		d.btt[i] = b
	}
}

// parseMPT reads a TOP multi-page table: one subpage count nibble per page
// 100-899, laid out like the basic table.
func (d *Decoder) parseMPT(pg *vt.Page) {
	l := pg.LOP()
	for i := 0; i < 800; i++ {
		row := 1 + i/40
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		n := hamming.Unham8(l.Raw[row][i%40])
		if n <= 0 {
			continue
		}
		st := d.stat(vt.DecToBCD(i + 100))
		if st.Subpages == 0xFFFF || st.Subpages < n {
			st.Subpages = n
		}
	}
}

// parseMPTEX reads a TOP multi-page extension table: five entries per row
// 1-23, each a page number and a four digit subpage count.
func (d *Decoder) parseMPTEX(pg *vt.Page) {
	l := pg.LOP()
	for i := 0; i < 23*5; i++ {
		row := 1 + i/5
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		col := (i % 5) * 8
		var n [8]int
		if !unhamAll(l.Raw[row][col:col+8], n[:]) {
			continue
		}
		pgno := pageMagazine(n[0])<<8 | n[1]<<4 | n[2]
		if vt.NoPage(pgno) {
			continue
		}
		count := n[3]*1000 + n[4]*100 + n[5]*10 + n[6]
		if st := d.stat(pgno); count > 0 {
			st.Subpages = count
		}
	}
}

// convertAIT turns the rows of an additional information table into
// entries: two per row 1-23, eight link nibbles and twelve characters.
func convertAIT(pg *vt.Page) *vt.Page {
	l := pg.LOP()
	out := *pg
	ait := vt.NewAIT()
	out.Data = ait

	for i := range ait.Entries {
		row := 1 + i/2
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		b := l.Raw[row][(i%2)*20:]
		var n [8]int
		if !unhamAll(b, n[:]) {
			continue
		}
		e := &ait.Entries[i]
		e.Page = vt.Link{
			Pgno:  pageMagazine(n[0])<<8 | n[1]<<4 | n[2],
			Subno: (n[3]<<12 | n[4]<<8 | n[5]<<4 | n[6]) & 0x3F7F,
		}
		for j := range e.Text {
			if c := hamming.Parity(b[8+j]); c >= 0x20 {
				e.Text[j] = byte(c)
			}
		}
	}
	return &out
}

// convertPOP turns the rows of an object page into its pointer table and
// triplet array. Packets X/1-X/4 with an odd designation carry pointers,
// two 9-bit pointers per triplet. Packets X/3-X/25 with an even
// designation and all X/26 packets carry object triplets.
func convertPOP(pg *vt.Page) *vt.Page {
	l := pg.LOP()
	out := *pg
	pop := vt.NewPOP()
	out.Data = pop

	for row := 1; row <= 25; row++ {
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		raw := l.Raw[row][:]
		des := hamming.Unham8(raw[0])
		if des < 0 {
			continue
		}
		if des&1 != 0 {
			if row > 4 {
				continue
			}
			// Triplets 1-12 carry two 9-bit pointers each.
			for i := 1; i <= 12; i++ {
				idx := (row-1)*24 + (i-1)*2
				v := hamming.Unham24(raw[1+i*3:])
				if v < 0 {
					continue
				}
				pop.Pointers[idx] = uint16(v & 0x1FF)
				pop.Pointers[idx+1] = uint16(v >> 9)
			}
			continue
		}
		base := vt.PacketTriplets(row)
		if base < 0 {
			continue
		}
		for i := 0; i < vt.TripletsPerPacket; i++ {
			v := hamming.Unham24(raw[1+i*3:])
			if v < 0 {
				pop.Triplets[base+i] = vt.SkipTriplet()
				continue
			}
			pop.Triplets[base+i] = vt.TripletFromBits(v)
		}
	}

	off := 23 * vt.TripletsPerPacket
	copy(pop.Triplets[off:], l.Enh[:l.EnhCount])
	return &out
}

// convertDRCS turns rows X/1-X/24 of a DRCS page into 48 pattern transfer
// units of twenty 6-bit bytes, two per row. modes come from X/28/3.
func convertDRCS(pg *vt.Page, modes *[vt.DRCSPTUs]uint8) *vt.Page {
	l := pg.LOP()
	out := *pg
	drcs := vt.NewDRCS()
	out.Data = drcs
	if pg.X28Lines&(1<<3) != 0 {
		drcs.Mode = *modes
	}

	for row := 1; row <= 24; row++ {
		if pg.LOPLines&(1<<row) == 0 {
			continue
		}
		for k := 0; k < 2; k++ {
			i := (row-1)*2 + k
			ok := true
			for j := 0; j < vt.DRCSPTUBytes; j++ {
				c := hamming.Parity(l.Raw[row][k*vt.DRCSPTUBytes+j])
				if c < 0 || c&0x40 == 0 {
					ok = false
					break
				}
				drcs.PTU[i][j] = byte(c & 0x3F)
			}
			if ok {
				drcs.Invalid &^= 1 << i
			}
		}
	}
	return &out
}

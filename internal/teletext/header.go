package teletext

import (
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// accumulator collects the packets of the page currently transmitted in
// one magazine. Rows are stored verbatim and converted to the payload the
// page function calls for when the page completes.
type accumulator struct {
	active bool
	page   vt.Page
	lop    vt.LOP

	// nextEnh is the X/26 designation expected next in this
	// transmission.
	nextEnh int

	drcsModes [vt.DRCSPTUs]uint8
}

var blankLOP = vt.NewLOP()

// header handles packet X/0.
func (d *Decoder) header(mag int, p []byte) error {
	low := hamming.Unham16(p[2:])
	if low < 0 {
		d.abandon(mag)
		return hammingError(pageMagazine(mag), 0, "page number")
	}
	b2 := hamming.Unham16(p[4:])
	b3 := hamming.Unham16(p[6:])
	b4 := hamming.Unham16(p[8:])
	if b2 < 0 || b3 < 0 || b4 < 0 {
		d.abandon(mag)
		return hammingError(pageMagazine(mag), 0, "control bits")
	}

	pgno := pageMagazine(mag)<<8 | low
	subno := (b3<<8 | b2) & 0x3F7F

	var flags vt.Flags
	if b2&0x80 != 0 {
		flags |= vt.FlagErase
	}
	if b3&0x40 != 0 {
		flags |= vt.FlagNewsflash
	}
	if b3&0x80 != 0 {
		flags |= vt.FlagSubtitle
	}
	// C7-C11 are b4 bits 0-4, in Flags order.
	flags |= vt.Flags(b4&0x1F) << 3
	national := int(hamming.Rev8(byte(b4))) & 7

	if flags&vt.FlagMagazineSerial != 0 {
		for i := range d.acc {
			d.finalize(&d.acc[i])
		}
	} else {
		d.finalize(&d.acc[mag])
	}

	// Time filling header: ends the previous page, starts none.
	if low == 0xFF {
		return nil
	}

	a := &d.acc[mag]
	a.active = true
	a.nextEnh = 0
	a.lop = *blankLOP
	a.page = vt.Page{
		Function: d.classify(pgno, subno),
		Pgno:     pgno,
		Subno:    subno,
		National: national,
		Flags:    flags,
		Data:     &a.lop,
	}

	if flags&vt.FlagErase == 0 {
		if e := d.cache.Peek(pgno, subno, 0x3F7F); e != nil {
			if l := e.Page.LOP(); l != nil {
				a.lop = *l
				a.page.LOPLines = e.Page.LOPLines
				a.page.EnhLines = e.Page.EnhLines
				a.page.X28Lines = e.Page.X28Lines
			}
		}
	}

	// Header row text; columns 0-7 are left for the page number.
	copy(a.lop.Raw[0][8:], p[10:42])
	a.page.LOPLines |= 1

	return nil
}

// abandon marks the page in progress in mag for discarding. An unreadable
// header means the rows that follow may belong to another page.
func (d *Decoder) abandon(mag int) {
	if a := &d.acc[mag]; a.active {
		a.page.Function = vt.FunctionDiscard
	}
}

// classify decides the function of a page at header time from the well
// known table page numbers, the TOP links and the magazine link tables.
func (d *Decoder) classify(pgno, subno int) vt.Function {
	switch {
	case pgno&0xFF == 0xFE:
		return vt.FunctionMOT
	case pgno&0xFF == 0xFD:
		return vt.FunctionMIP
	case pgno == 0x1F0:
		return vt.FunctionBTT
	}

	for _, b := range d.btt {
		if b.link.Pgno == pgno && b.function != vt.FunctionUnknown {
			return b.function
		}
	}

	m := &d.magazines[magazineOf(pgno)]
	for i, l := range m.PopLink {
		if l.Pgno == pgno {
			if i%vt.Level35Links == 0 {
				return vt.FunctionGPOP
			}
			return vt.FunctionPOP
		}
	}
	for i, l := range m.DRCSLink {
		if l == pgno {
			if i%vt.Level35Links == 0 {
				return vt.FunctionGDRCS
			}
			return vt.FunctionDRCS
		}
	}

	if d.stat(pgno).Type == vt.TypeTriggerData {
		return vt.FunctionTrigger
	}
	return vt.FunctionUnknown
}

// body handles packets X/1 to X/25.
func (d *Decoder) body(mag, packet int, p []byte) {
	a := &d.acc[mag]
	if !a.active || a.page.Function == vt.FunctionDiscard {
		return
	}
	copy(a.lop.Raw[packet][:], p[2:42])
	a.page.LOPLines |= 1 << packet
}

// finalize completes the page of a, converts it to its final shape, runs
// the table builders and stores it.
func (d *Decoder) finalize(a *accumulator) {
	if !a.active {
		return
	}
	a.active = false
	pg := &a.page

	if pg.Function == vt.FunctionDiscard {
		d.discard(pg, "discarded")
		return
	}
	if pg.Function == vt.FunctionUnknown {
		pg.Function = vt.FunctionLOP
	}

	stored := pg
	switch pg.Function {
	case vt.FunctionLOP, vt.FunctionTrigger:
		d.observe(pg)
	case vt.FunctionMOT:
		d.parseMOT(pg)
	case vt.FunctionMIP:
		d.parseMIP(pg)
	case vt.FunctionBTT:
		d.parseBTT(pg)
	case vt.FunctionMPT:
		d.parseMPT(pg)
	case vt.FunctionMPTEX:
		d.parseMPTEX(pg)
	case vt.FunctionAIT:
		stored = convertAIT(pg)
	case vt.FunctionGPOP, vt.FunctionPOP:
		stored = convertPOP(pg)
	case vt.FunctionGDRCS, vt.FunctionDRCS:
		stored = convertDRCS(pg, &a.drcsModes)
	}

	if _, err := d.cache.Put(stored); err != nil {
		d.log.Warn("page not cached", "page", stored.String(), "error", err)
		d.discard(stored, "cache")
		return
	}
	d.stored.Add(1)
	d.cfg.Observer.PageStored(stored.Function)
	if d.cfg.OnPage != nil {
		d.cfg.OnPage(PageEvent{
			Pgno:     stored.Pgno,
			Subno:    stored.Subno,
			Function: stored.Function,
			Flags:    stored.Flags,
		})
	}
}

func (d *Decoder) discard(pg *vt.Page, reason string) {
	d.discarded.Add(1)
	d.cfg.Observer.PageDiscarded(reason)
	d.log.Debug("page discarded", "page", pg.String(), "reason", reason)
}

// observe refines the classification table from a displayable page seen
// on air.
func (d *Decoder) observe(pg *vt.Page) {
	st := d.stat(pg.Pgno)
	switch {
	case pg.Flags&vt.FlagSubtitle != 0:
		if st.Type == vt.TypeUnknown || st.Type == vt.TypeNone {
			st.Type = vt.TypeSubtitle
		}
	case st.Type == vt.TypeUnknown || st.Type == vt.TypeNone:
		st.Type = vt.TypeNormal
	}

	code := d.magazines[magazineOf(pg.Pgno)].Ext.CharCode[0]
	if l := pg.LOP(); l != nil && pg.X28Lines&(1<<0|1<<4) != 0 {
		code = l.Ext.CharCode[0]
	}
	st.Charset = code&^7 | pg.National

	if pg.Subno <= 0x79 && pg.Subno > st.MaxSubno {
		st.MaxSubno = pg.Subno
	}
}

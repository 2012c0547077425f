package cache

import "github.com/zsiec/ttx/internal/vt"

// Visitor is called for each cached page. wrapped is set once the walk
// crossed the 0x8FF/0x100 boundary. Returning false stops the walk.
type Visitor func(e *Entry, wrapped bool) bool

// ForEach visits cached pages starting at pgno and subno.
//
// dir 0 visits the subpages of pgno only. A positive dir walks upward
// through page numbers and a negative dir downward, wrapping at the range
// bounds, until the whole cache was scanned once. Subpages are visited in
// walk order; those of the first page that precede subno are visited
// last. ForEach reports whether the visitor stopped the walk.
func (c *Cache) ForEach(pgno, subno, dir int, fn Visitor) bool {
	if pgno < vt.FirstPage || pgno > vt.LastPage {
		return false
	}

	step := 1
	if dir < 0 {
		step = -1
	}

	subs := c.ordered(pgno, step)
	if dir == 0 {
		for _, e := range subs {
			if !fn(e, false) {
				return true
			}
		}
		return false
	}

	var rest []*Entry
	for _, e := range subs {
		s := e.Page.Subno
		if subno == vt.AnySubno || (step > 0 && s >= subno) || (step < 0 && s <= subno) {
			if !fn(e, false) {
				return true
			}
			continue
		}
		rest = append(rest, e)
	}

	wrapped := false
	p := pgno
	for i := 1; i < vt.NumPages; i++ {
		p += step
		switch {
		case p > vt.LastPage:
			p = vt.FirstPage
			wrapped = true
		case p < vt.FirstPage:
			p = vt.LastPage
			wrapped = true
		}
		for _, e := range c.ordered(p, step) {
			if !fn(e, wrapped) {
				return true
			}
		}
	}

	for _, e := range rest {
		if !fn(e, true) {
			return true
		}
	}
	return false
}

func (c *Cache) ordered(pgno, step int) []*Entry {
	subs := c.Subpages(pgno)
	if step < 0 {
		for i, j := 0, len(subs)-1; i < j; i, j = i+1, j-1 {
			subs[i], subs[j] = subs[j], subs[i]
		}
	}
	return subs
}

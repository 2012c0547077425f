package teletext

import (
	"github.com/zsiec/ttx/internal/cache"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/vt"
)

var _ format.Source = (*Decoder)(nil)

// Format formats a cached page. subno may be vt.AnySubno for the newest
// subpage. The page is promoted in the cache; pages fetched while
// enhancing it are not.
func (d *Decoder) Format(pgno, subno int, opts format.Options) (*format.Page, error) {
	raw, ok := d.CacheGet(pgno, subno, 0x3F7F)
	if !ok {
		return nil, format.ErrNotCached
	}
	pg, err := format.Format(d, raw, opts)
	if err != nil {
		return nil, err
	}
	if pg.Degraded {
		d.log.Debug("enhancement incomplete, showing level 1",
			"page", raw.String(), "level", opts.Level)
	}
	return pg, nil
}

// Subpages returns the cached subpage numbers of pgno in ascending order.
func (d *Decoder) Subpages(pgno int) []int {
	var out []int
	for _, e := range d.cache.Subpages(pgno) {
		out = append(out, e.Page.Subno)
	}
	return out
}

// Pages returns the cached displayable page numbers in ascending order.
func (d *Decoder) Pages() []int {
	var out []int
	last := -1
	d.cache.ForEach(vt.FirstPage, 0, 1, func(e *cache.Entry, wrapped bool) bool {
		if e.Page.Function.Displayable() && e.Page.Pgno != last {
			out = append(out, e.Page.Pgno)
			last = e.Page.Pgno
		}
		return true
	})
	return out
}

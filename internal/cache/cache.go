// Package cache stores accumulated Teletext pages keyed by page and
// subpage number. Entries for every subpage of a page share one hash
// bucket, newest first. Nothing is evicted; Flush is the only way to
// remove entries.
//
// A Cache is not safe for concurrent mutation. Readers may use Peek and
// ForEach while no Put, Get or Flush runs.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sort"

	"github.com/zsiec/ttx/internal/vt"
)

// HashSize is the number of buckets. Pages hash by page number modulo
// this prime.
const HashSize = 113

// ErrInvalidPage is returned by Put for pages outside 0x100-0x8FF or with
// an out of range subpage number.
var ErrInvalidPage = errors.New("cache: invalid page")

// Entry is one cached page. The Page is owned by the cache and is valid
// until the next mutation of the same page number.
type Entry struct {
	Page *vt.Page
	elem *list.Element
}

// Stats tracks cache lookups.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Replaced uint64 `json:"replaced"`
	Size     int    `json:"size"`
}

// Cache is a hash-chained page store.
type Cache struct {
	hash     [HashSize]*list.List
	maxSubno [vt.NumPages]int
	stats    Stats
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.hash {
		c.hash[i] = list.New()
	}
	return c
}

func bucket(pgno int) int {
	return pgno % HashSize
}

func (c *Cache) find(pgno, subno, mask int) *Entry {
	for el := c.hash[bucket(pgno)].Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry)
		if e.Page.Pgno != pgno {
			continue
		}
		if subno == vt.AnySubno || e.Page.Subno&mask == subno {
			return e
		}
	}
	return nil
}

// Put stores a copy of p, replacing any entry with the same page and
// subpage number, and moves it to the front of its bucket. A replacement
// with the same payload shape is updated in place.
func (c *Cache) Put(p *vt.Page) (*Entry, error) {
	if p.Pgno < vt.FirstPage || p.Pgno > vt.LastPage || p.Subno < 0 || p.Subno > vt.MaxSubno {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPage, p)
	}
	if p.Data == nil {
		return nil, fmt.Errorf("%w: %s has no payload", ErrInvalidPage, p)
	}

	l := c.hash[bucket(p.Pgno)]
	e := c.find(p.Pgno, p.Subno, 0x3F7F)
	if e != nil {
		e.Page.CopyFrom(p)
		l.MoveToFront(e.elem)
		c.stats.Replaced++
	} else {
		e = &Entry{Page: p.Clone()}
		e.elem = l.PushFront(e)
		c.stats.Size++
	}

	if i := p.Pgno - vt.FirstPage; p.Subno <= 0x79 && p.Subno > c.maxSubno[i] {
		c.maxSubno[i] = p.Subno
	}
	return e, nil
}

// Get returns the newest entry of pgno whose subpage number, masked with
// mask, equals subno, or any subpage when subno is vt.AnySubno. The entry
// is promoted to the front of its bucket.
func (c *Cache) Get(pgno, subno, mask int) *Entry {
	e := c.find(pgno, subno, mask)
	if e == nil {
		c.stats.Misses++
		return nil
	}
	c.stats.Hits++
	c.hash[bucket(pgno)].MoveToFront(e.elem)
	return e
}

// Peek is Get without promotion. The formatter uses it so rendering does
// not reorder the cache.
func (c *Cache) Peek(pgno, subno, mask int) *Entry {
	return c.find(pgno, subno, mask)
}

// MaxSubno returns the highest subpage number stored for pgno.
func (c *Cache) MaxSubno(pgno int) int {
	if pgno < vt.FirstPage || pgno > vt.LastPage {
		return 0
	}
	return c.maxSubno[pgno-vt.FirstPage]
}

// Subpages returns the cached subpages of pgno ordered by subpage number.
func (c *Cache) Subpages(pgno int) []*Entry {
	var out []*Entry
	for el := c.hash[bucket(pgno)].Front(); el != nil; el = el.Next() {
		if e := el.Value.(*Entry); e.Page.Pgno == pgno {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Page.Subno < out[j].Page.Subno
	})
	return out
}

// Flush removes every entry and resets the subpage counters.
func (c *Cache) Flush() {
	for _, l := range c.hash {
		l.Init()
	}
	c.maxSubno = [vt.NumPages]int{}
	c.stats.Size = 0
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	return c.stats.Size
}

// Stats returns a snapshot of the lookup counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

func (c *Cache) chainLen(pgno int) int {
	return c.hash[bucket(pgno)].Len()
}

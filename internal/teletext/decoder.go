// Package teletext reassembles Teletext pages from 42-byte packets
// (ETS 300 706) and stores them in a page cache. A Decoder keeps one
// accumulator per magazine, the per-magazine organisation tables, the page
// classification table and the TOP navigation links, and formats cached
// pages through the format package.
//
// Feed and Desync must be called from a single goroutine. Format and the
// cache accessors read the same state and must not run concurrently with
// Feed; callers that share a Decoder serialise access themselves.
// RequestChannelSwitch may be called from any goroutine.
package teletext

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/ttx/internal/cache"
	"github.com/zsiec/ttx/internal/hamming"
	"github.com/zsiec/ttx/internal/vt"
)

// PacketSize is the length of a Teletext packet without clock run-in and
// framing code.
const PacketSize = 42

// IDLHandler receives independent data line packets (X/30 of magazines
// 1-7 and X/31). channel is 0-7 for packet 30 and 8-15 for packet 31.
type IDLHandler interface {
	IDL(channel int, data []byte)
}

// Observer receives decoder events, typically to export metrics.
type Observer interface {
	PacketDecoded(packet int)
	DecodeError(field string)
	PageStored(fn vt.Function)
	PageDiscarded(reason string)
	ChannelSwitched()
}

// PageEvent describes a page that was just stored in the cache.
type PageEvent struct {
	Pgno     int         `json:"page"`
	Subno    int         `json:"subpage"`
	Function vt.Function `json:"-"`
	Flags    vt.Flags    `json:"flags"`
}

// Config configures a Decoder. The zero value is usable.
type Config struct {
	Logger *slog.Logger
	// Region is the default character set region (0-10) assumed before
	// an X/28 or M/29 packet names one.
	Region   int
	IDL      IDLHandler
	Observer Observer
	// OnPage is called synchronously from Feed after a page was stored.
	OnPage func(PageEvent)
}

// Stats are the decoder's running counters.
type Stats struct {
	Packets   uint64 `json:"packets"`
	Errors    uint64 `json:"errors"`
	Stored    uint64 `json:"stored"`
	Discarded uint64 `json:"discarded"`
	Switches  uint64 `json:"channel_switches"`
}

type bttLink struct {
	link     vt.Link
	function vt.Function
}

// Decoder is the decoding context for one Teletext service.
type Decoder struct {
	log    *slog.Logger
	cfg    Config
	cache  *cache.Cache
	region int

	// magazines[0] holds the defaults used at levels 1 and 1.5;
	// magazines[1-8] are the real magazines.
	magazines [9]vt.Magazine
	stats     [vt.NumPages]vt.PageStat
	acc       [8]accumulator

	btt     [15]bttLink
	haveTOP bool

	networkID   int
	initialPage vt.Link
	status      [20]byte

	switchPending atomic.Bool
	switches      atomic.Uint64
	packets       atomic.Uint64
	errors        atomic.Uint64
	stored        atomic.Uint64
	discarded     atomic.Uint64
}

// New returns a decoder with an empty cache.
func New(cfg Config) *Decoder {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Decoder{
		log:    log.With("component", "teletext"),
		cfg:    cfg,
		cache:  cache.New(),
		region: cfg.Region,
	}
	if d.cfg.Observer == nil {
		d.cfg.Observer = nopObserver{}
	}
	d.reset()
	return d
}

// reset returns the decoder to its initial state: cache, classification
// table, magazines and in-progress pages.
func (d *Decoder) reset() {
	d.cache.Flush()
	for i := range d.magazines {
		d.magazines[i].Reset(d.region)
	}
	for i := range d.stats {
		d.stats[i] = vt.UnknownStat()
	}
	for i := range d.acc {
		d.acc[i].active = false
	}
	for i := range d.btt {
		d.btt[i] = bttLink{link: vt.Link{Pgno: 0x8FF, Subno: vt.AnySubno}}
	}
	d.haveTOP = false
	d.networkID = 0
	d.initialPage = vt.Link{Pgno: 0x8FF, Subno: vt.AnySubno}
	for i := range d.status {
		d.status[i] = ' '
	}
}

// RequestChannelSwitch marks the decoder state stale. The next Feed call
// flushes everything before decoding its packet. Safe for concurrent use.
func (d *Decoder) RequestChannelSwitch() {
	d.switchPending.Store(true)
}

// ChannelSwitches returns how many channel switches were processed.
func (d *Decoder) ChannelSwitches() uint64 {
	return d.switches.Load()
}

// Stats returns a snapshot of the running counters. Safe for concurrent
// use.
func (d *Decoder) Stats() Stats {
	return Stats{
		Packets:   d.packets.Load(),
		Errors:    d.errors.Load(),
		Stored:    d.stored.Load(),
		Discarded: d.discarded.Load(),
		Switches:  d.switches.Load(),
	}
}

// Feed decodes one packet. Codeword errors are reported as *PacketError
// and never leave the decoder in a bad state.
func (d *Decoder) Feed(p []byte) error {
	if d.switchPending.CompareAndSwap(true, false) {
		d.log.Info("channel switch, flushing")
		d.switches.Add(1)
		d.cfg.Observer.ChannelSwitched()
		d.reset()
	}
	if len(p) != PacketSize {
		return ErrPacketSize
	}
	d.packets.Add(1)

	mrag := hamming.Unham16(p)
	if mrag < 0 {
		return d.fail(hammingError(-1, -1, "mrag"))
	}
	mag := mrag & 7
	packet := mrag >> 3
	d.cfg.Observer.PacketDecoded(packet)

	var err error
	switch {
	case packet == 0:
		err = d.header(mag, p)
	case packet <= 25:
		d.body(mag, packet, p)
	case packet == 26:
		err = d.enhancement(mag, p)
	case packet == 27:
		err = d.links(mag, p)
	case packet == 28 || packet == 29:
		err = d.extension(mag, packet, p)
	case packet == 30 && mag == 0:
		err = d.broadcastService(p)
	default:
		if d.cfg.IDL != nil {
			d.cfg.IDL.IDL((packet-30)*8+mag, p[2:])
		}
	}
	if err != nil {
		return d.fail(err)
	}
	return nil
}

func (d *Decoder) fail(err error) error {
	d.errors.Add(1)
	field := "packet"
	var pe *PacketError
	if errors.As(err, &pe) {
		field = pe.Field
	}
	d.cfg.Observer.DecodeError(field)
	d.log.Debug("packet dropped", "error", err)
	return err
}

// Desync discards every page in progress. Callers use it after lost VBI
// lines or frames.
func (d *Decoder) Desync() {
	for i := range d.acc {
		if d.acc[i].active {
			d.acc[i].page.Function = vt.FunctionDiscard
		}
	}
}

// Cache returns the page cache.
func (d *Decoder) Cache() *cache.Cache {
	return d.cache
}

// CacheGet returns the newest matching cached page, promoting it.
func (d *Decoder) CacheGet(pgno, subno, mask int) (*vt.Page, bool) {
	e := d.cache.Get(pgno, subno, mask)
	if e == nil {
		return nil, false
	}
	return e.Page, true
}

// CacheForEach walks cached pages, see cache.Cache.ForEach.
func (d *Decoder) CacheForEach(pgno, subno, dir int, fn cache.Visitor) bool {
	return d.cache.ForEach(pgno, subno, dir, fn)
}

// Peek returns a cached page without promoting it.
func (d *Decoder) Peek(pgno, subno, mask int) *vt.Page {
	e := d.cache.Peek(pgno, subno, mask)
	if e == nil {
		return nil
	}
	return e.Page
}

// Magazine returns the magazine state in effect for pgno at level.
func (d *Decoder) Magazine(pgno int, level vt.Level) *vt.Magazine {
	if level <= vt.Level15 {
		return &d.magazines[0]
	}
	return &d.magazines[magazineOf(pgno)]
}

// PageStat returns the classification of pgno.
func (d *Decoder) PageStat(pgno int) vt.PageStat {
	if pgno < vt.FirstPage || pgno > vt.LastPage {
		return vt.UnknownStat()
	}
	return d.stats[pgno-vt.FirstPage]
}

func (d *Decoder) stat(pgno int) *vt.PageStat {
	return &d.stats[pgno-vt.FirstPage]
}

// HaveTOP reports whether a TOP basic table was received.
func (d *Decoder) HaveTOP() bool {
	return d.haveTOP
}

// AITPages returns the additional information tables named by the TOP
// basic table.
func (d *Decoder) AITPages() []vt.Link {
	var out []vt.Link
	for _, b := range d.btt {
		if b.function == vt.FunctionAIT && b.link.Valid() {
			out = append(out, b.link)
		}
	}
	return out
}

// NetworkID returns the 8/30 format 1 network identification code, or 0.
func (d *Decoder) NetworkID() int {
	return d.networkID
}

// InitialPage returns the 8/30 initial page link.
func (d *Decoder) InitialPage() vt.Link {
	return d.initialPage
}

// StatusText returns the 8/30 status display.
func (d *Decoder) StatusText() string {
	return string(d.status[:])
}

// magazineOf returns the magazine number 1-8 of pgno.
func magazineOf(pgno int) int {
	m := pgno >> 8
	if m < 1 || m > 8 {
		return 8
	}
	return m
}

// pageMagazine turns a 3-bit magazine address into a page number high
// digit: 0 means magazine 8.
func pageMagazine(mag int) int {
	if mag&7 == 0 {
		return 8
	}
	return mag & 7
}

type nopObserver struct{}

func (nopObserver) PacketDecoded(int)      {}
func (nopObserver) DecodeError(string)     {}
func (nopObserver) PageStored(vt.Function) {}
func (nopObserver) PageDiscarded(string)   {}
func (nopObserver) ChannelSwitched()       {}

// Package pipeline runs one stream: it drives a Teletext decoder from a
// packet source, turns subtitle pages into caption frames and announces
// stored pages to the stream's viewers.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/ccx"
	"github.com/zsiec/ttx/internal/demux"
	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/teletext"
	"github.com/zsiec/ttx/internal/vt"
)

// Broadcaster is the subset of distribution.Relay the pipeline uses to fan
// out events.
type Broadcaster interface {
	BroadcastCaptions(frame *ccx.CaptionFrame)
	BroadcastPage(ev distribution.PageUpdate)
	ViewerCount() int
}

// Options configure a Pipeline.
type Options struct {
	// Region is the default character set region of the decoder.
	Region int
	// Subtitle selects how subtitle pages are rendered to caption text.
	Subtitle format.Options
	// SubtitlePages are treated as subtitles even without the C6 flag.
	SubtitlePages []int
	Observer      teletext.Observer
}

// Pipeline bridges a packet Source, a Decoder and a Broadcaster.
type Pipeline struct {
	log       *slog.Logger
	src       demux.Source
	relay     Broadcaster
	streamKey string
	opts      Options
	startTime time.Time
	protocol  string

	// mu serialises Feed against the read accessors.
	mu       sync.Mutex
	dec      *teletext.Decoder
	curPTS   int64
	subPages map[int]bool
	lastText map[int]string

	packets     atomic.Int64
	feedErrors  atomic.Int64
	desyncs     atomic.Int64
	captionsFwd atomic.Int64
	pagesFwd    atomic.Int64
	lastPTS     atomic.Int64
}

// New creates a Pipeline reading packets from src.
func New(streamKey string, src demux.Source, relay Broadcaster, opts Options) *Pipeline {
	p := &Pipeline{
		log:       slog.With("component", "pipeline", "stream", streamKey),
		src:       src,
		relay:     relay,
		streamKey: streamKey,
		opts:      opts,
		startTime: time.Now(),
		curPTS:    -1,
		subPages:  make(map[int]bool),
		lastText:  make(map[int]string),
	}
	for _, pg := range opts.SubtitlePages {
		p.subPages[pg] = true
	}
	p.dec = teletext.New(teletext.Config{
		Logger:   slog.With("stream", streamKey),
		Region:   opts.Region,
		Observer: opts.Observer,
		OnPage:   p.onPage,
	})
	p.lastPTS.Store(-1)
	return p
}

// SetProtocol records the ingest protocol name (e.g. "SRT").
func (p *Pipeline) SetProtocol(proto string) { p.protocol = proto }

// Key returns the stream key.
func (p *Pipeline) Key() string { return p.streamKey }

// Run starts the source and feeds every packet to the decoder until the
// source ends or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- p.src.Run(ctx)
	}()

	if d, ok := p.src.(*demux.Demuxer); ok {
		go p.announceStreams(ctx, d)
	}

	packets := p.src.Packets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok := <-packets:
			if !ok {
				err := <-srcErr
				p.log.Info("source finished", "packets", p.packets.Load(), "error", err)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			p.feed(pkt)
		}
	}
}

// announceStreams adds the subtitle pages of the PMT's teletext
// descriptors to the subtitle set.
func (p *Pipeline) announceStreams(ctx context.Context, d *demux.Demuxer) {
	select {
	case <-d.PMTReady():
	case <-ctx.Done():
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range d.Streams() {
		for _, tp := range st.Teletext {
			if tp.Type.IsSubtitle() {
				p.subPages[tp.Pgno] = true
				p.log.Info("subtitle page", "page", tp.PageString(), "language", tp.Language)
			}
		}
	}
}

func (p *Pipeline) feed(pkt *demux.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pkt.Desync {
		p.desyncs.Add(1)
		p.dec.Desync()
	}
	p.curPTS = pkt.PTS
	if pkt.PTS >= 0 {
		p.lastPTS.Store(pkt.PTS)
	}
	p.packets.Add(1)
	if err := p.dec.Feed(pkt.Data()); err != nil {
		p.feedErrors.Add(1)
	}
}

// onPage runs inside Feed with mu held.
func (p *Pipeline) onPage(ev teletext.PageEvent) {
	if !ev.Function.Displayable() {
		return
	}
	subtitle := ev.Flags&vt.FlagSubtitle != 0 || p.subPages[ev.Pgno]

	p.relay.BroadcastPage(distribution.PageUpdate{
		Stream:    p.streamKey,
		Page:      vt.FormatPage(ev.Pgno),
		Subpage:   ev.Subno,
		Function:  ev.Function.String(),
		Subtitle:  subtitle,
		Newsflash: ev.Flags&vt.FlagNewsflash != 0,
		PTS:       p.curPTS,
	})
	p.pagesFwd.Add(1)

	if subtitle {
		p.caption(ev.Pgno, ev.Subno)
	}
}

func (p *Pipeline) caption(pgno, subno int) {
	pg, err := p.dec.Format(pgno, subno, p.opts.Subtitle)
	if err != nil {
		p.log.Debug("subtitle page not formatted", "page", vt.FormatPage(pgno), "error", err)
		return
	}
	text := SubtitleText(pg)
	if text == p.lastText[pgno] {
		return
	}
	p.lastText[pgno] = text

	p.relay.BroadcastCaptions(&ccx.CaptionFrame{
		PTS:     p.curPTS,
		Text:    text,
		Channel: vt.BCDToDec(pgno),
	})
	p.captionsFwd.Add(1)
}

// SubtitleText returns the boxed text of rows 1-23 of a subtitle page, one
// line per non-empty row.
func SubtitleText(pg *format.Page) string {
	var lines []string
	var b strings.Builder
	for r := 1; r < min(pg.Height, format.Rows-1); r++ {
		b.Reset()
		for c := 0; c < vt.Columns; c++ {
			cell := &pg.Cells[r][c]
			switch {
			case cell.Size >= format.OverTop:
				continue
			case cell.Opacity == format.Opaque, cell.Opacity == format.SemiTransparent:
				b.WriteRune(cell.Unicode)
			default:
				b.WriteByte(' ')
			}
		}
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

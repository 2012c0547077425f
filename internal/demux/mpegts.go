package demux

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/zsiec/ttx/internal/mpegts"
)

// maxPTSGap is the largest forward PTS step (90 kHz) treated as continuous.
const maxPTSGap = 5 * 90000

// Demuxer extracts Teletext packets from the teletext PIDs of an MPEG
// transport stream. Packets from every teletext PID are delivered on one
// channel unless a PID is selected with WithPID.
type Demuxer struct {
	log      *slog.Logger
	reader   io.Reader
	out      chan *Packet
	pid      uint16
	pktSize  int
	stats    StatsRecorder
	pmtReady chan struct{}
	pmtOnce  sync.Once

	mu      sync.Mutex
	streams []mpegts.Stream

	lastPTS map[uint16]int64
	desync  bool
}

// DemuxerOption configures a Demuxer.
type DemuxerOption func(*Demuxer)

// WithPID restricts output to one teletext PID.
func WithPID(pid uint16) DemuxerOption {
	return func(d *Demuxer) { d.pid = pid }
}

// WithPacketSize sets the transport packet size (188, 192 or 204).
func WithPacketSize(n int) DemuxerOption {
	return func(d *Demuxer) { d.pktSize = n }
}

// WithStats attaches a StatsRecorder.
func WithStats(s StatsRecorder) DemuxerOption {
	return func(d *Demuxer) { d.stats = s }
}

// NewDemuxer creates a Demuxer reading transport packets from r. If log is
// nil, slog.Default() is used.
func NewDemuxer(r io.Reader, log *slog.Logger, opts ...DemuxerOption) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	d := &Demuxer{
		log:      log.With("component", "demux"),
		reader:   r,
		out:      make(chan *Packet, PacketBufferSize),
		pktSize:  mpegts.PacketSize,
		stats:    nopStats{},
		pmtReady: make(chan struct{}),
		lastPTS:  make(map[uint16]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Packets returns the channel on which extracted packets are delivered.
func (d *Demuxer) Packets() <-chan *Packet { return d.out }

// PMTReady is closed once the first PMT with a teletext stream was parsed.
func (d *Demuxer) PMTReady() <-chan struct{} { return d.pmtReady }

// Streams returns the teletext streams announced by the PMT.
func (d *Demuxer) Streams() []mpegts.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mpegts.Stream(nil), d.streams...)
}

// Run demuxes until EOF or cancellation and closes the Packets channel.
func (d *Demuxer) Run(ctx context.Context) error {
	defer close(d.out)

	keep := func(pid uint16) bool { return d.pid == 0 || pid == d.pid }
	ts := mpegts.NewDemuxer(ctx, d.reader, mpegts.WithPacketSize(d.pktSize), mpegts.TeletextOnly())

	for {
		u, err := ts.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch {
		case u.PMT != nil:
			d.learn(ts.TeletextStreams())
		case u.PES != nil && keep(u.PID):
			if err := d.handlePES(ctx, u.PID, u.PES); err != nil {
				return err
			}
		}
	}
}

func (d *Demuxer) learn(streams []mpegts.Stream) {
	if len(streams) == 0 {
		return
	}
	d.mu.Lock()
	d.streams = streams
	d.mu.Unlock()
	d.pmtOnce.Do(func() {
		for _, st := range streams {
			d.log.Info("found teletext PID", "pid", st.PID, "pages", len(st.Teletext))
		}
		close(d.pmtReady)
	})
}

func (d *Demuxer) handlePES(ctx context.Context, pid uint16, pes *mpegts.PES) error {
	d.stats.RecordPES(pid, len(pes.Data))

	if d.discontinuous(pid, pes.PTS) {
		d.desync = true
		d.stats.RecordDesync()
		d.log.Debug("PTS discontinuity", "pid", pid, "pts", pes.PTS)
	}

	pts := int64(-1)
	if pes.PTS >= 0 {
		pts = pes.PTS * 1000000 / 90000
	}

	var lines []Line
	skipped, err := ParseDataUnits(pes.Data, func(l Line) { lines = append(lines, l) })
	if err != nil {
		d.log.Debug("bad teletext PES", "pid", pid, "error", err)
	}
	if skipped > 0 {
		d.stats.RecordSkippedUnits(skipped)
	}

	for _, l := range lines {
		d.stats.RecordLine(l.UnitID)
		p := &Packet{PID: pid, PTS: pts, Line: l, Desync: d.desync}
		d.desync = false
		if err := send(ctx, d.out, p); err != nil {
			return err
		}
	}
	return nil
}

// discontinuous reports a backwards or implausibly large forward PTS step.
func (d *Demuxer) discontinuous(pid uint16, pts int64) bool {
	if pts < 0 {
		return false
	}
	last, ok := d.lastPTS[pid]
	d.lastPTS[pid] = pts
	return ok && (pts < last || pts-last > maxPTSGap)
}

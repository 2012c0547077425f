package demux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// T42Reader reads a T42 file: Teletext packets of 42 bytes back to back,
// in transmission bit order, without clock run-in or framing code.
type T42Reader struct {
	log   *slog.Logger
	r     *bufio.Reader
	out   chan *Packet
	stats StatsRecorder
	n     int64
}

// NewT42Reader returns a reader for T42 data. If log is nil, slog.Default()
// is used.
func NewT42Reader(r io.Reader, log *slog.Logger) *T42Reader {
	if log == nil {
		log = slog.Default()
	}
	return &T42Reader{
		log:   log.With("component", "t42"),
		r:     bufio.NewReaderSize(r, 64*PacketSize),
		out:   make(chan *Packet, PacketBufferSize),
		stats: nopStats{},
	}
}

// SetStats attaches a StatsRecorder.
func (t *T42Reader) SetStats(s StatsRecorder) { t.stats = s }

// Packets returns the channel on which packets are delivered.
func (t *T42Reader) Packets() <-chan *Packet { return t.out }

// Next reads one packet. It returns io.EOF at the end of input; a trailing
// partial record is reported as io.ErrUnexpectedEOF.
func (t *T42Reader) Next() (*Packet, error) {
	p := &Packet{PTS: -1, Line: Line{UnitID: UnitTeletext}}
	if _, err := io.ReadFull(t.r, p.Line.Data[:]); err != nil {
		return nil, err
	}
	t.n++
	return p, nil
}

// Run delivers every packet of the input and closes the Packets channel.
func (t *T42Reader) Run(ctx context.Context) error {
	defer close(t.out)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := t.Next()
		if errors.Is(err, io.EOF) {
			t.log.Debug("end of input", "packets", t.n)
			return nil
		}
		if err != nil {
			return fmt.Errorf("demux: t42 packet %d: %w", t.n, err)
		}
		t.stats.RecordLine(p.Line.UnitID)
		if err := send(ctx, t.out, p); err != nil {
			return err
		}
	}
}

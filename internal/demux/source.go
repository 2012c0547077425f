package demux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// PacketBufferSize is the depth of a Source's output channel, enough for
// several frames of a full-rate teletext service.
const PacketBufferSize = 512

// Packet is one Teletext packet with its carrier metadata.
type Packet struct {
	// PID is the transport stream PID, 0 for T42 input.
	PID uint16
	// PTS is the presentation time in microseconds, -1 when unknown.
	PTS  int64
	Line Line
	// Desync is set on the first packet after the carrier lost
	// continuity; pages in progress at that point must be discarded.
	Desync bool
}

// Data returns the 42 packet bytes.
func (p *Packet) Data() []byte { return p.Line.Data[:] }

// Subtitle reports whether the packet arrived in a subtitle data unit.
func (p *Packet) Subtitle() bool { return p.Line.UnitID == UnitTeletextSubtitle }

// Source produces Teletext packets.
type Source interface {
	// Run reads the input until it is exhausted or ctx is done and closes
	// the Packets channel on return.
	Run(ctx context.Context) error
	Packets() <-chan *Packet
}

// StatsRecorder receives carrier telemetry.
type StatsRecorder interface {
	RecordPES(pid uint16, bytes int)
	RecordLine(unitID byte)
	RecordSkippedUnits(n int)
	RecordDesync()
}

type nopStats struct{}

func (nopStats) RecordPES(uint16, int)  {}
func (nopStats) RecordLine(byte)        {}
func (nopStats) RecordSkippedUnits(int) {}
func (nopStats) RecordDesync()          {}

func send(ctx context.Context, ch chan<- *Packet, p *Packet) error {
	select {
	case ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Input formats accepted by NewSource.
const (
	FormatAuto = "auto"
	FormatTS   = "ts"
	FormatM2TS = "m2ts"
	FormatT42  = "t42"
)

// NewSource returns a Source for r in the named format. FormatAuto (or "")
// looks for transport stream sync bytes at 188 and 192 byte strides and
// falls back to T42.
func NewSource(r io.Reader, format string, log *slog.Logger, stats StatsRecorder) (Source, error) {
	if format == "" || format == FormatAuto {
		br := bufio.NewReaderSize(r, 4*192)
		format = Sniff(br)
		r = br
	}
	if stats == nil {
		stats = nopStats{}
	}
	switch format {
	case FormatTS:
		return NewDemuxer(r, log, WithStats(stats)), nil
	case FormatM2TS:
		return NewDemuxer(r, log, WithStats(stats), WithPacketSize(192)), nil
	case FormatT42:
		t := NewT42Reader(r, log)
		t.SetStats(stats)
		return t, nil
	}
	return nil, fmt.Errorf("demux: unknown input format %q", format)
}

// Sniff guesses the format of the data buffered in br without consuming it.
func Sniff(br *bufio.Reader) string {
	b, _ := br.Peek(3 * 192)
	synced := func(off, stride int) bool {
		n := 0
		for i := off; i < len(b); i += stride {
			if b[i] != 0x47 {
				return false
			}
			n++
		}
		return n >= 2
	}
	switch {
	case synced(0, 188):
		return FormatTS
	case synced(4, 192):
		return FormatM2TS
	}
	return FormatT42
}

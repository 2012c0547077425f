package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
)

// Demuxer reads transport packets from a reader and yields PAT, PMT and
// PES units.
type Demuxer struct {
	ctx     context.Context
	r       io.Reader
	pktSize int
	buf     []byte
	filter  func(pid uint16) bool

	pmtPIDs  map[uint16]bool
	pids     map[uint16]*pidBuffer
	teletext map[uint16]Stream

	queue []*Unit
	eof   bool
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithPacketSize sets the packet size on the wire: 188 (plain), 192
// (M2TS, four-byte timecode prefix) or 204 (sixteen Reed-Solomon bytes
// appended).
func WithPacketSize(n int) Option {
	return func(d *Demuxer) { d.pktSize = n }
}

// WithPIDFilter restricts PES reassembly to PIDs for which keep returns
// true. PSI is always parsed.
func WithPIDFilter(keep func(pid uint16) bool) Option {
	return func(d *Demuxer) { d.filter = keep }
}

// TeletextOnly reassembles PES only on PIDs announced as teletext by a PMT.
func TeletextOnly() Option {
	return func(d *Demuxer) { d.filter = d.IsTeletext }
}

// NewDemuxer returns a demuxer reading from r.
func NewDemuxer(ctx context.Context, r io.Reader, opts ...Option) *Demuxer {
	d := &Demuxer{
		ctx:      ctx,
		r:        r,
		pktSize:  PacketSize,
		pmtPIDs:  make(map[uint16]bool),
		pids:     make(map[uint16]*pidBuffer),
		teletext: make(map[uint16]Stream),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pktSize < PacketSize {
		d.pktSize = PacketSize
	}
	d.buf = make([]byte, d.pktSize)
	return d
}

// IsTeletext reports whether a PMT announced pid as a teletext stream.
func (d *Demuxer) IsTeletext(pid uint16) bool {
	_, ok := d.teletext[pid]
	return ok
}

// TeletextStreams returns the teletext streams announced so far, ordered
// by PID.
func (d *Demuxer) TeletextStreams() []Stream {
	out := make([]Stream, 0, len(d.teletext))
	for _, st := range d.teletext {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Stream) int { return int(a.PID) - int(b.PID) })
	return out
}

// Next returns the next unit, or io.EOF once the reader is exhausted and
// all buffered units have been returned.
func (d *Demuxer) Next() (*Unit, error) {
	for {
		if len(d.queue) > 0 {
			u := d.queue[0]
			d.queue = d.queue[1:]
			return u, nil
		}
		if d.eof {
			return nil, io.EOF
		}
		if err := d.ctx.Err(); err != nil {
			return nil, err
		}

		pkt, err := d.readPacket()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.eof = true
			d.drain()
			continue
		}
		if err != nil {
			return nil, err
		}
		if pkt.PID == pidNull {
			continue
		}

		b := d.buffer(pkt.PID)
		if b == nil {
			continue
		}
		if unit := b.add(pkt); unit != nil {
			d.process(pkt.PID, unit)
		}
	}
}

// readPacket reads one packet, scanning forward for a sync byte when the
// stream is misaligned.
func (d *Demuxer) readPacket() (Packet, error) {
	if _, err := io.ReadFull(d.r, d.buf); err != nil {
		return Packet{}, err
	}
	off := d.pktSize - PacketSize
	if d.pktSize == 204 {
		off = 0
	}
	for d.buf[off] != syncByte {
		i := bytes.IndexByte(d.buf[off+1:], syncByte)
		if i < 0 {
			if _, err := io.ReadFull(d.r, d.buf); err != nil {
				return Packet{}, err
			}
			continue
		}
		// Move the candidate sync byte to off and top the buffer up.
		shift := i + 1
		copy(d.buf, d.buf[shift:])
		if _, err := io.ReadFull(d.r, d.buf[d.pktSize-shift:]); err != nil {
			return Packet{}, err
		}
	}
	return parsePacket(d.buf[off : off+PacketSize])
}

func (d *Demuxer) buffer(pid uint16) *pidBuffer {
	if b, ok := d.pids[pid]; ok {
		return b
	}
	psi := pid == pidPAT || d.pmtPIDs[pid]
	if !psi && d.filter != nil && !d.filter(pid) {
		return nil
	}
	b := &pidBuffer{psi: psi}
	d.pids[pid] = b
	return b
}

func (d *Demuxer) process(pid uint16, unit []byte) {
	if pid == pidPAT || d.pmtPIDs[pid] {
		units, err := parsePSI(pid, unit)
		if err != nil {
			return
		}
		for _, u := range units {
			d.learn(u)
		}
		d.queue = append(d.queue, units...)
		return
	}
	if !isPES(unit) {
		return
	}
	pes, err := parsePES(unit)
	if err != nil {
		return
	}
	d.queue = append(d.queue, &Unit{PID: pid, PES: pes})
}

// learn records PMT PIDs from a PAT and teletext streams from a PMT.
func (d *Demuxer) learn(u *Unit) {
	if u.PAT != nil {
		for _, p := range u.PAT.Programs {
			d.pmtPIDs[p.PMTPID] = true
			if b, ok := d.pids[p.PMTPID]; ok {
				b.psi = true
			}
		}
	}
	if u.PMT != nil {
		for _, st := range u.PMT.Streams {
			if st.HasTeletext {
				d.teletext[st.PID] = st
			}
		}
	}
}

func (d *Demuxer) drain() {
	pids := make([]uint16, 0, len(d.pids))
	for pid := range d.pids {
		pids = append(pids, pid)
	}
	// PAT first so PMT PIDs are known before their buffers are parsed.
	slices.Sort(pids)
	for _, pid := range pids {
		if unit := d.pids[pid].flush(); unit != nil {
			d.process(pid, unit)
		}
	}
}

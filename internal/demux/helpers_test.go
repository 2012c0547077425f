package demux

import "encoding/binary"

func mpegCRC(b []byte) uint32 {
	c := ^uint32(0)
	for _, v := range b {
		c ^= uint32(v) << 24
		for range 8 {
			if c&(1<<31) != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
	}
	return c
}

func finishSection(b []byte) []byte {
	n := len(b) - 3 + 4
	b[1] = 0xB0 | byte(n>>8)&0x0F
	b[2] = byte(n)
	return binary.BigEndian.AppendUint32(b, mpegCRC(b))
}

// tsWriter splits payload units into 188-byte packets with per-PID
// continuity counters.
type tsWriter struct {
	cc  map[uint16]uint8
	out []byte
}

func newTSWriter() *tsWriter { return &tsWriter{cc: map[uint16]uint8{}} }

func (w *tsWriter) unit(pid uint16, payload []byte) {
	start := true
	for len(payload) > 0 || start {
		pkt := make([]byte, 188)
		for i := range pkt {
			pkt[i] = 0xFF
		}
		pkt[0] = 0x47
		pkt[1] = byte(pid>>8) & 0x1F
		if start {
			pkt[1] |= 0x40
		}
		pkt[2] = byte(pid)
		pkt[3] = 0x10 | w.cc[pid]
		w.cc[pid] = (w.cc[pid] + 1) & 0x0F
		n := copy(pkt[4:], payload)
		payload = payload[n:]
		w.out = append(w.out, pkt...)
		start = false
	}
}

// psi writes PAT (program 1 on 0x1000) and a PMT with a teletext stream on
// ttxPID.
func (w *tsWriter) psi(ttxPID uint16) {
	pat := finishSection([]byte{0x00, 0, 0, 0, 1, 0xC1, 0, 0, 0, 1, 0xF0, 0x00})
	w.unit(0, append([]byte{0}, pat...))

	desc := []byte{0x56, 5, 'e', 'n', 'g', 2<<3 | 0, 0x88}
	pmt := []byte{0x02, 0, 0, 0, 1, 0xC1, 0, 0, 0xE1, 0x00, 0xF0, 0x00,
		0x06, 0xE0 | byte(ttxPID>>8), byte(ttxPID), 0xF0, byte(len(desc))}
	pmt = append(pmt, desc...)
	w.unit(0x1000, append([]byte{0}, finishSection(pmt)...))
}

// pes wraps data units in a private_stream_1 PES with a PTS and the
// EN 300 472 header length of 0x24.
func teletextPES(pts int64, units []byte) []byte {
	hdr := make([]byte, 0x24)
	hdr[0] = 0x21 | byte(pts>>29)&0x0E
	hdr[1] = byte(pts >> 22)
	hdr[2] = byte(pts>>14) | 1
	hdr[3] = byte(pts >> 7)
	hdr[4] = byte(pts<<1) | 1
	for i := 5; i < len(hdr); i++ {
		hdr[i] = 0xFF
	}
	body := append([]byte{0x10}, units...)
	n := 3 + len(hdr) + len(body)
	b := []byte{0, 0, 1, 0xBD, byte(n >> 8), byte(n), 0x80, 0x80, byte(len(hdr))}
	b = append(b, hdr...)
	return append(b, body...)
}

func testPacket(seed byte) []byte {
	p := make([]byte, PacketSize)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

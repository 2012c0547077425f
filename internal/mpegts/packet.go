package mpegts

import (
	"errors"
	"fmt"
)

const (
	PacketSize = 188
	syncByte   = 0x47
	pidPAT     = 0x0000
	pidNull    = 0x1FFF
)

var errSync = errors.New("mpegts: lost sync")

// parsePacket decodes a transport packet header. The returned payload
// aliases buf.
func parsePacket(buf []byte) (Packet, error) {
	var p Packet
	if len(buf) != PacketSize {
		return p, fmt.Errorf("mpegts: packet of %d bytes", len(buf))
	}
	if buf[0] != syncByte {
		return p, errSync
	}

	p.TEI = buf[1]&0x80 != 0
	p.Start = buf[1]&0x40 != 0
	p.PID = uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	p.CC = buf[3] & 0x0F
	p.HasPayload = buf[3]&0x10 != 0

	off := 4
	if buf[3]&0x20 != 0 {
		n := int(buf[4])
		if n > 0 {
			p.Discontinuity = buf[5]&0x80 != 0
		}
		off += 1 + n
	}
	if p.HasPayload && off < PacketSize {
		p.Payload = buf[off:]
	}
	return p, nil
}

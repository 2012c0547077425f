package mpegts

import "encoding/binary"

// tsPacket builds a payload-only transport packet padded with 0xFF.
func tsPacket(pid uint16, cc uint8, start bool, payload []byte) []byte {
	buf := make([]byte, PacketSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	if start {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 | cc&0x0F
	copy(buf[4:], payload)
	return buf
}

// section finishes a PSI section: fills in section_length and appends the
// CRC. body starts at table_id and leaves room for the length bytes.
func section(body []byte) []byte {
	n := len(body) - 3 + 4
	body[1] = 0xB0 | byte(n>>8)&0x0F
	body[2] = byte(n)
	out := binary.BigEndian.AppendUint32(body, crc32(body))
	return out
}

func psiPayload(s []byte) []byte {
	return append([]byte{0}, s...)
}

func patSection(programs ...Program) []byte {
	b := []byte{tablePAT, 0, 0, 0x00, 0x01, 0xC1, 0, 0}
	for _, p := range programs {
		b = append(b, byte(p.Number>>8), byte(p.Number), 0xE0|byte(p.PMTPID>>8), byte(p.PMTPID))
	}
	return section(b)
}

type esDef struct {
	typ  uint8
	pid  uint16
	info []byte
}

func pmtSection(program uint16, streams ...esDef) []byte {
	b := []byte{tablePMT, 0, 0, byte(program >> 8), byte(program), 0xC1, 0, 0, 0xE1, 0x00, 0xF0, 0x00}
	for _, s := range streams {
		b = append(b, s.typ, 0xE0|byte(s.pid>>8), byte(s.pid), 0xF0|byte(len(s.info)>>8), byte(len(s.info)))
		b = append(b, s.info...)
	}
	return section(b)
}

// teletextDescriptor builds descriptor 0x56 with one entry per page.
func teletextDescriptor(pages ...TeletextPage) []byte {
	b := []byte{DescriptorTeletext, byte(5 * len(pages))}
	for _, p := range pages {
		b = append(b, p.Language[0], p.Language[1], p.Language[2])
		b = append(b, byte(p.Type)<<3|byte(p.Pgno>>8)&7, byte(p.Pgno))
	}
	return b
}

func encodePTS(pts int64) []byte {
	return []byte{
		0x21 | byte(pts>>29)&0x0E,
		byte(pts >> 22),
		byte(pts>>14) | 1,
		byte(pts >> 7),
		byte(pts<<1) | 1,
	}
}

func pesPacket(id uint8, pts int64, data []byte) []byte {
	n := 3 + 5 + len(data)
	b := []byte{0, 0, 1, id, byte(n >> 8), byte(n), 0x80, 0x80, 0x05}
	b = append(b, encodePTS(pts)...)
	return append(b, data...)
}

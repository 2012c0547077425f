package mpegts

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tablePAT = 0x00
	tablePMT = 0x02
)

var errShortSection = errors.New("mpegts: short section")

// sections walks the sections of a PSI payload that starts with a
// pointer_field. It stops at stuffing or at a truncated section.
func sections(payload []byte, fn func(table byte, section []byte) error) error {
	if len(payload) == 0 {
		return errShortSection
	}
	off := 1 + int(payload[0])
	for off < len(payload) {
		table := payload[off]
		if table == 0xFF {
			return nil
		}
		if off+3 > len(payload) {
			return errShortSection
		}
		if payload[off+1]&0x80 == 0 {
			return nil
		}
		end := off + 3 + (int(payload[off+1]&0x0F)<<8 | int(payload[off+2]))
		if end > len(payload) {
			return errShortSection
		}
		if err := fn(table, payload[off:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// psiComplete reports whether every section started in payload has been
// received.
func psiComplete(payload []byte) bool {
	return sections(payload, func(byte, []byte) error { return nil }) == nil
}

func parsePSI(pid uint16, payload []byte) ([]*Unit, error) {
	var out []*Unit
	err := sections(payload, func(table byte, s []byte) error {
		switch table {
		case tablePAT:
			pat, err := parsePAT(s)
			if err != nil {
				return err
			}
			out = append(out, &Unit{PID: pid, PAT: pat})
		case tablePMT:
			pmt, err := parsePMT(s)
			if err != nil {
				return err
			}
			out = append(out, &Unit{PID: pid, PMT: pmt})
		}
		return nil
	})
	return out, err
}

// parsePAT decodes a PAT section including its CRC. Program number 0 (the
// network PID) is skipped.
func parsePAT(s []byte) (*PAT, error) {
	if len(s) < 12 {
		return nil, fmt.Errorf("mpegts: PAT: %w", errShortSection)
	}
	if err := checkCRC(s); err != nil {
		return nil, fmt.Errorf("mpegts: PAT: %w", err)
	}
	pat := &PAT{}
	for i := 8; i+4 <= len(s)-4; i += 4 {
		num := uint16(s[i])<<8 | uint16(s[i+1])
		if num == 0 {
			continue
		}
		pat.Programs = append(pat.Programs, Program{
			Number: num,
			PMTPID: uint16(s[i+2]&0x1F)<<8 | uint16(s[i+3]),
		})
	}
	return pat, nil
}

// parsePMT decodes a PMT section and the teletext descriptors of its
// elementary streams.
func parsePMT(s []byte) (*PMT, error) {
	if len(s) < 16 {
		return nil, fmt.Errorf("mpegts: PMT: %w", errShortSection)
	}
	if err := checkCRC(s); err != nil {
		return nil, fmt.Errorf("mpegts: PMT: %w", err)
	}
	pmt := &PMT{Program: uint16(s[3])<<8 | uint16(s[4])}

	end := len(s) - 4
	off := 12 + (int(s[10]&0x0F)<<8 | int(s[11]))
	for off+5 <= end {
		st := Stream{
			Type: s[off],
			PID:  uint16(s[off+1]&0x1F)<<8 | uint16(s[off+2]),
		}
		n := int(s[off+3]&0x0F)<<8 | int(s[off+4])
		off += 5
		if off+n > end {
			return nil, fmt.Errorf("mpegts: PMT: ES info of PID %d overruns section", st.PID)
		}
		parseDescriptors(&st, s[off:off+n])
		pmt.Streams = append(pmt.Streams, st)
		off += n
	}
	return pmt, nil
}

func parseDescriptors(st *Stream, b []byte) {
	for len(b) >= 2 {
		tag, n := b[0], int(b[1])
		if 2+n > len(b) {
			return
		}
		if tag == DescriptorTeletext || tag == DescriptorVBITeletext {
			st.HasTeletext = true
			st.Teletext = append(st.Teletext, teletextEntries(b[2:2+n])...)
		}
		b = b[2+n:]
	}
}

// teletextEntries decodes the five-byte entries of a teletext descriptor:
// ISO 639 language, type (5 bits), magazine (3 bits, 0 = 8) and the page
// number's tens and units in BCD.
func teletextEntries(b []byte) []TeletextPage {
	var out []TeletextPage
	for ; len(b) >= 5; b = b[5:] {
		mag := int(b[3] & 7)
		if mag == 0 {
			mag = 8
		}
		out = append(out, TeletextPage{
			Language: strings.TrimRight(string(b[:3]), "\x00 "),
			Type:     TeletextType(b[3] >> 3),
			Pgno:     mag<<8 | int(b[4]),
		})
	}
	return out
}

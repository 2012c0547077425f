package demux

import (
	"errors"
	"fmt"

	"github.com/zsiec/ttx/internal/hamming"
)

// PacketSize is the length of a Teletext packet without clock run-in and
// framing code.
const PacketSize = 42

// EBU data unit ids (EN 300 472, EN 301 775).
const (
	UnitTeletext         = 0x02
	UnitTeletextSubtitle = 0x03
	UnitInvertedTeletext = 0xC0
	UnitTeletextC1       = 0xC1
	UnitStuffing         = 0xFF
)

const (
	unitLength  = 0x2C
	framingCode = 0xE4
)

var (
	ErrDataIdentifier = errors.New("demux: PES data_identifier is not EBU data")
	ErrTruncatedUnit  = errors.New("demux: truncated data unit")
)

// Line is one teletext data unit.
type Line struct {
	UnitID byte
	// Field is 0 for the first field and 1 for the second.
	Field int
	// Offset is the line_offset field: 7-22 or 320-335 relative to the
	// field, 0 if unspecified.
	Offset int
	Data   [PacketSize]byte
}

// IsEBUData reports whether a PES data_identifier marks EBU teletext data.
func IsEBUData(id byte) bool {
	return id >= 0x10 && id <= 0x1F
}

// ParseDataUnits walks the data units of a teletext PES payload and calls fn
// with each teletext line, bytes already reversed into transmission order.
// Units of other kinds and units with a bad framing code are skipped. The
// returned count is the number of skipped units.
func ParseDataUnits(payload []byte, fn func(Line)) (skipped int, err error) {
	if len(payload) == 0 || !IsEBUData(payload[0]) {
		return 0, ErrDataIdentifier
	}
	b := payload[1:]
	for len(b) >= 2 {
		id, n := b[0], int(b[1])
		if 2+n > len(b) {
			return skipped, fmt.Errorf("%w: unit %02X wants %d bytes, %d left", ErrTruncatedUnit, id, n, len(b)-2)
		}
		unit := b[2 : 2+n]
		b = b[2+n:]

		switch id {
		case UnitTeletext, UnitTeletextSubtitle, UnitInvertedTeletext, UnitTeletextC1:
		case UnitStuffing:
			continue
		default:
			skipped++
			continue
		}
		if n != unitLength || unit[1] != framingCode {
			skipped++
			continue
		}

		ln := Line{
			UnitID: id,
			Field:  1 - int(unit[0]>>5&1),
			Offset: int(unit[0] & 0x1F),
		}
		for i, v := range unit[2:] {
			ln.Data[i] = hamming.Rev8(v)
		}
		fn(ln)
	}
	return skipped, nil
}

// AppendDataUnit appends one EN 300 472 data unit carrying pkt to b. It is
// the inverse of ParseDataUnits.
func AppendDataUnit(b []byte, id byte, field, offset int, pkt []byte) []byte {
	b = append(b, id, unitLength, 0xC0|byte(1-field&1)<<5|byte(offset&0x1F), framingCode)
	for i := range PacketSize {
		var v byte
		if i < len(pkt) {
			v = pkt[i]
		}
		b = append(b, hamming.Rev8(v))
	}
	return b
}

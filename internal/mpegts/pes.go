package mpegts

import (
	"errors"
	"fmt"
)

var errNoStartCode = errors.New("mpegts: missing PES start code")

func isPES(b []byte) bool {
	return len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1
}

// hasOptionalHeader reports whether a stream id carries the PES optional
// header (everything except padding, private_stream_2, ECM, EMM, DSMCC,
// H.222.1 type E and the program stream directory).
func hasOptionalHeader(id uint8) bool {
	switch id {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

func parsePES(b []byte) (*PES, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("mpegts: PES of %d bytes", len(b))
	}
	if !isPES(b) {
		return nil, errNoStartCode
	}

	pes := &PES{StreamID: b[3], PTS: -1}
	end := len(b)
	if n := int(b[4])<<8 | int(b[5]); n > 0 && 6+n < end {
		end = 6 + n
	}

	start := 6
	if hasOptionalHeader(pes.StreamID) {
		if len(b) < 9 {
			return nil, fmt.Errorf("mpegts: PES optional header truncated")
		}
		if b[7]&0x80 != 0 && len(b) >= 14 {
			pes.PTS = timestamp(b[9:14])
		}
		start = min(9+int(b[8]), end)
	}
	pes.Data = b[start:end]
	return pes, nil
}

// timestamp decodes a 33-bit PTS or DTS from its five-byte marker coding.
func timestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
}

// Package mpegts demultiplexes an MPEG transport stream far enough to find
// teletext: PAT and PMT sections with their teletext descriptors, and
// reassembled PES packets with presentation timestamps.
package mpegts

import "github.com/zsiec/ttx/internal/vt"

// StreamTypePrivate is the PMT stream type DVB uses for teletext and
// subtitle PES.
const StreamTypePrivate = 0x06

// Descriptor tags that mark a teletext elementary stream.
const (
	DescriptorTeletext    = 0x56
	DescriptorVBITeletext = 0x46
)

// TeletextType is the teletext_type field of a teletext descriptor entry.
type TeletextType uint8

const (
	TeletextInitial         TeletextType = 0x1
	TeletextSubtitle        TeletextType = 0x2
	TeletextAdditionalInfo  TeletextType = 0x3
	TeletextSchedule        TeletextType = 0x4
	TeletextSubtitleHearing TeletextType = 0x5
)

var teletextTypeNames = map[TeletextType]string{
	TeletextInitial:         "initial",
	TeletextSubtitle:        "subtitle",
	TeletextAdditionalInfo:  "additional-information",
	TeletextSchedule:        "schedule",
	TeletextSubtitleHearing: "subtitle-hearing-impaired",
}

func (t TeletextType) String() string {
	if s, ok := teletextTypeNames[t]; ok {
		return s
	}
	return "reserved"
}

// IsSubtitle reports whether pages of this type carry subtitles.
func (t TeletextType) IsSubtitle() bool {
	return t == TeletextSubtitle || t == TeletextSubtitleHearing
}

// Packet is one 188-byte transport packet.
type Packet struct {
	PID           uint16
	CC            uint8
	Start         bool // payload_unit_start_indicator
	TEI           bool
	Discontinuity bool
	HasPayload    bool
	Payload       []byte
}

// PAT is a program association table.
type PAT struct {
	Programs []Program
}

// Program maps a program number to the PID of its PMT.
type Program struct {
	Number uint16
	PMTPID uint16
}

// PMT is a program map table.
type PMT struct {
	Program uint16
	Streams []Stream
}

// Stream is one elementary stream of a PMT.
type Stream struct {
	PID      uint16
	Type     uint8
	Teletext []TeletextPage
	// HasTeletext is set when a teletext descriptor is present, even if
	// it lists no pages.
	HasTeletext bool
}

// TeletextPage is an entry of a teletext descriptor.
type TeletextPage struct {
	Language string       `json:"language"`
	Type     TeletextType `json:"type"`
	// Pgno is the page number 0x100-0x8FF.
	Pgno int `json:"page"`
}

// PageString returns the page number as three hex digits.
func (p TeletextPage) PageString() string { return vt.FormatPage(p.Pgno) }

// PES is a reassembled PES packet.
type PES struct {
	StreamID uint8
	// PTS is the 33-bit presentation timestamp, or -1 when absent.
	PTS  int64
	Data []byte
}

// Unit is one item produced by the Demuxer. Exactly one of PAT, PMT and
// PES is set.
type Unit struct {
	PID uint16
	PAT *PAT
	PMT *PMT
	PES *PES
}

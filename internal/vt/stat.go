package vt

import "fmt"

// PageType is the coarse page classification carried by page inventory
// tables (MIP), the TOP basic table and direct observation.
type PageType uint8

// Page types. Values 0x02-0x4F are subpage counts of normal pages.
const (
	TypeNone              PageType = 0x00
	TypeNormal            PageType = 0x01
	TypeSubtitle          PageType = 0x70
	TypeSubtitleIndex     PageType = 0x78
	TypeNonstdSubpages    PageType = 0x79
	TypeProgrWarning      PageType = 0x7A
	TypeCurrentProgr      PageType = 0x7C
	TypeNowAndNext        PageType = 0x7D
	TypeProgrIndex        PageType = 0x7F
	TypeNotPublic         PageType = 0x80
	TypeProgrSchedule     PageType = 0x81
	TypeCAData            PageType = 0xE0
	TypePFCEPG            PageType = 0xE3
	TypeSystemPage        PageType = 0xE7
	TypeDispSystemPage    PageType = 0xF7
	TypeKeywordSearchList PageType = 0xF9
	TypeTOPBlock          PageType = 0xFA
	TypeTOPGroup          PageType = 0xFB
	TypeTriggerData       PageType = 0xFC
	TypeACIPage           PageType = 0xFD
	TypeTOPPage           PageType = 0xFE
	TypeUnknown           PageType = 0xFF
)

var pageTypeNames = map[PageType]string{
	TypeNone:              "none",
	TypeNormal:            "normal",
	TypeSubtitle:          "subtitle",
	TypeSubtitleIndex:     "subtitle-index",
	TypeNonstdSubpages:    "nonstd-subpages",
	TypeProgrWarning:      "programme-warning",
	TypeCurrentProgr:      "current-programme",
	TypeNowAndNext:        "now-and-next",
	TypeProgrIndex:        "programme-index",
	TypeNotPublic:         "not-public",
	TypeProgrSchedule:     "programme-schedule",
	TypeCAData:            "ca-data",
	TypePFCEPG:            "epg",
	TypeSystemPage:        "system",
	TypeDispSystemPage:    "displayable-system",
	TypeKeywordSearchList: "keyword-search",
	TypeTOPBlock:          "top-block",
	TypeTOPGroup:          "top-group",
	TypeTriggerData:       "trigger",
	TypeACIPage:           "aci",
	TypeTOPPage:           "top",
	TypeUnknown:           "unknown",
}

func (t PageType) String() string {
	if s, ok := pageTypeNames[t]; ok {
		return s
	}
	if t >= 0x02 && t <= 0x4F {
		return "normal"
	}
	return fmt.Sprintf("type(0x%02x)", uint8(t))
}

// Public reports whether the page is meant for viewers.
func (t PageType) Public() bool {
	switch {
	case t == TypeNormal, t >= 0x02 && t <= 0x4F:
		return true
	case t == TypeSubtitle, t == TypeSubtitleIndex, t == TypeNonstdSubpages,
		t == TypeProgrWarning, t == TypeCurrentProgr, t == TypeNowAndNext,
		t == TypeProgrIndex, t == TypeProgrSchedule, t == TypeDispSystemPage,
		t == TypeTOPBlock, t == TypeTOPGroup:
		return true
	}
	return false
}

// PageStat is one entry of the page classification table.
type PageStat struct {
	Type PageType `json:"type"`
	// Charset is the character set code observed on the page, or -1.
	Charset int `json:"charset"`
	// Subpages is the announced subpage count: 0 single page, 0xFFFF
	// unknown.
	Subpages int `json:"subpages"`
	// MaxSubno is the highest subpage number seen on air.
	MaxSubno int `json:"max_subno"`
}

// UnknownStat is the classification of a page nothing is known about.
func UnknownStat() PageStat {
	return PageStat{Type: TypeUnknown, Charset: -1, Subpages: 0xFFFF}
}

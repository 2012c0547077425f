package demux

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseDataUnits(t *testing.T) {
	t.Parallel()

	b := []byte{0x10}
	b = AppendDataUnit(b, UnitTeletext, 0, 7, testPacket(1))
	b = AppendDataUnit(b, UnitTeletextSubtitle, 1, 21, testPacket(100))

	var lines []Line
	skipped, err := ParseDataUnits(b, func(l Line) { lines = append(lines, l) })
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || len(lines) != 2 {
		t.Fatalf("skipped %d, lines %d", skipped, len(lines))
	}
	if lines[0].Field != 0 || lines[0].Offset != 7 || lines[0].UnitID != UnitTeletext {
		t.Errorf("line 0 = field %d offset %d id %02X", lines[0].Field, lines[0].Offset, lines[0].UnitID)
	}
	if lines[1].Field != 1 || lines[1].Offset != 21 {
		t.Errorf("line 1 = field %d offset %d", lines[1].Field, lines[1].Offset)
	}
	if !bytes.Equal(lines[1].Data[:], testPacket(100)) {
		t.Errorf("data = %x", lines[1].Data)
	}
}

func TestParseDataUnits_BitOrder(t *testing.T) {
	t.Parallel()

	// The first address byte of magazine 1 packet 0 is transmitted as
	// 0x02 and carried in the PES reversed.
	b := []byte{0x10, UnitTeletext, 0x2C, 0xE7, 0xE4, 0x40}
	b = append(b, make([]byte, 41)...)

	var got Line
	if _, err := ParseDataUnits(b, func(l Line) { got = l }); err != nil {
		t.Fatal(err)
	}
	if got.Data[0] != 0x02 {
		t.Errorf("first byte = %02X, want 02", got.Data[0])
	}
	if got.Field != 0 || got.Offset != 7 {
		t.Errorf("field %d offset %d", got.Field, got.Offset)
	}
}

func TestParseDataUnits_Skips(t *testing.T) {
	t.Parallel()

	b := []byte{0x10}
	b = append(b, UnitStuffing, 3, 0xFF, 0xFF, 0xFF)
	b = append(b, 0xC3, 4, 1, 2, 3, 4) // VPS
	bad := AppendDataUnit(nil, UnitTeletext, 0, 7, testPacket(0))
	bad[3] = 0x27
	b = append(b, bad...)
	b = AppendDataUnit(b, UnitInvertedTeletext, 0, 8, testPacket(5))

	var n int
	skipped, err := ParseDataUnits(b, func(Line) { n++ })
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || skipped != 2 {
		t.Errorf("lines %d skipped %d, want 1 and 2", n, skipped)
	}
}

func TestParseDataUnits_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ParseDataUnits([]byte{0x99}, func(Line) {}); !errors.Is(err, ErrDataIdentifier) {
		t.Errorf("err = %v, want ErrDataIdentifier", err)
	}
	b := AppendDataUnit([]byte{0x10}, UnitTeletext, 0, 7, testPacket(0))
	var n int
	_, err := ParseDataUnits(b[:30], func(Line) { n++ })
	if !errors.Is(err, ErrTruncatedUnit) || n != 0 {
		t.Errorf("err = %v lines %d", err, n)
	}
}

func FuzzParseDataUnits(f *testing.F) {
	f.Add(AppendDataUnit([]byte{0x10}, UnitTeletextSubtitle, 1, 10, testPacket(3)))
	f.Add([]byte{0x10, 0xFF, 0x00})
	f.Fuzz(func(t *testing.T, b []byte) {
		_, _ = ParseDataUnits(b, func(l Line) {
			if l.Field < 0 || l.Field > 1 {
				t.Fatalf("field %d", l.Field)
			}
		})
	})
}

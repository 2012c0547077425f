package mpegts

import "testing"

func mustPacket(t *testing.T, buf []byte) Packet {
	t.Helper()
	p, err := parsePacket(buf)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPIDBuffer_PESLength(t *testing.T) {
	t.Parallel()

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	pes := pesPacket(0xBD, 0, data)

	var b pidBuffer
	if u := b.add(mustPacket(t, tsPacket(0x100, 0, true, pes[:184]))); u != nil {
		t.Fatal("unit returned before declared length reached")
	}
	u := b.add(mustPacket(t, tsPacket(0x100, 1, false, pes[184:])))
	if u == nil {
		t.Fatal("unit not returned at declared length")
	}
	if len(u) < len(pes) {
		t.Errorf("unit of %d bytes, want at least %d", len(u), len(pes))
	}
	if b.started {
		t.Error("buffer not reset after completion")
	}
}

func TestPIDBuffer_StartFlushesPrevious(t *testing.T) {
	t.Parallel()

	// Unbounded PES (length 0) completes only on the next start.
	unbounded := []byte{0, 0, 1, 0xE0, 0, 0, 0x80, 0, 0, 0x42}

	var b pidBuffer
	if u := b.add(mustPacket(t, tsPacket(0x100, 0, true, unbounded))); u != nil {
		t.Fatal("unbounded PES returned early")
	}
	if u := b.add(mustPacket(t, tsPacket(0x100, 1, false, []byte{1}))); u != nil {
		t.Fatal("continuation returned a unit")
	}
	u := b.add(mustPacket(t, tsPacket(0x100, 2, true, unbounded)))
	if len(u) != 2*(PacketSize-4) {
		t.Errorf("flushed %d bytes, want %d", len(u), 2*(PacketSize-4))
	}
}

func TestPIDBuffer_Continuity(t *testing.T) {
	t.Parallel()

	unbounded := []byte{0, 0, 1, 0xE0, 0, 0, 0x80, 0, 0}
	var b pidBuffer
	b.add(mustPacket(t, tsPacket(0x100, 0, true, unbounded)))

	// Duplicate is dropped without affecting the unit.
	b.add(mustPacket(t, tsPacket(0x100, 0, false, nil)))
	if len(b.data) != PacketSize-4 {
		t.Fatalf("duplicate appended: %d bytes", len(b.data))
	}

	// A gap discards the partial unit; the following continuation is
	// ignored until the next start.
	if u := b.add(mustPacket(t, tsPacket(0x100, 5, false, nil))); u != nil {
		t.Fatal("gap produced a unit")
	}
	if b.started {
		t.Error("partial unit kept across a continuity gap")
	}
	if u := b.add(mustPacket(t, tsPacket(0x100, 6, true, unbounded))); u != nil {
		t.Error("start after gap flushed discarded data")
	}
}

func TestPIDBuffer_TransportError(t *testing.T) {
	t.Parallel()

	var b pidBuffer
	b.add(mustPacket(t, tsPacket(0x100, 0, true, []byte{0, 0, 1, 0xE0, 0, 0})))
	bad := tsPacket(0x100, 1, false, nil)
	bad[1] |= 0x80
	b.add(mustPacket(t, bad))
	if b.flush() != nil {
		t.Error("transport error did not discard the unit")
	}
}

func TestPIDBuffer_PSI(t *testing.T) {
	t.Parallel()

	b := pidBuffer{psi: true}
	u := b.add(mustPacket(t, tsPacket(0, 0, true, psiPayload(patSection(Program{Number: 1, PMTPID: 0x1000})))))
	if u == nil {
		t.Fatal("complete PAT not returned")
	}
}

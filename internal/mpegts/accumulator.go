package mpegts

// maxUnit bounds a payload unit that never sees its end.
const maxUnit = 1 << 20

// pidBuffer reassembles the payload units (PSI sections or PES packets) of
// one PID. A unit is returned as soon as it is known to be complete: on the
// next payload_unit_start_indicator, when a PSI section is whole, or when a
// PES packet reaches its declared length.
type pidBuffer struct {
	psi     bool
	lastCC  uint8
	started bool
	data    []byte
}

func (b *pidBuffer) reset() {
	b.started = false
	b.data = nil
}

func (b *pidBuffer) add(p Packet) (unit []byte) {
	if p.TEI {
		b.reset()
		return nil
	}
	if !p.HasPayload {
		return nil
	}

	if b.started && !p.Discontinuity {
		if p.CC == b.lastCC {
			return nil // duplicate
		}
		if p.CC != (b.lastCC+1)&0x0F {
			b.reset()
		}
	}
	b.lastCC = p.CC

	switch {
	case p.Start:
		if b.started && len(b.data) > 0 {
			unit = b.data
		}
		b.data = append([]byte(nil), p.Payload...)
		b.started = true
	case b.started:
		b.data = append(b.data, p.Payload...)
		if len(b.data) > maxUnit {
			b.reset()
			return nil
		}
	default:
		return nil
	}

	if unit == nil && b.complete() {
		unit = b.data
		b.reset()
	}
	return unit
}

func (b *pidBuffer) complete() bool {
	if b.psi {
		return psiComplete(b.data)
	}
	if !isPES(b.data) || len(b.data) < 6 {
		return false
	}
	n := int(b.data[4])<<8 | int(b.data[5])
	return n > 0 && len(b.data) >= 6+n
}

func (b *pidBuffer) flush() []byte {
	if !b.started || len(b.data) == 0 {
		return nil
	}
	unit := b.data
	b.reset()
	return unit
}

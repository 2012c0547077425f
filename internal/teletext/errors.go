package teletext

import (
	"errors"
	"fmt"

	"github.com/zsiec/ttx/internal/hamming"
)

// Sentinel errors returned by Feed.
var (
	ErrPacketSize = errors.New("teletext: packet is not 42 bytes")
	ErrHamming    = fmt.Errorf("teletext: %w", hamming.ErrUncorrectable)
)

// PacketError reports a codeword failure in a required packet field. It
// never aborts decoding; the packet is dropped and accumulation continues.
type PacketError struct {
	Magazine int
	Packet   int
	Field    string
	Err      error
}

func (e *PacketError) Error() string {
	if e.Packet < 0 {
		return fmt.Sprintf("teletext: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("teletext: %d/%d %s: %v", e.Magazine, e.Packet, e.Field, e.Err)
}

func (e *PacketError) Unwrap() error {
	return e.Err
}

func hammingError(mag, packet int, field string) error {
	return &PacketError{Magazine: mag, Packet: packet, Field: field, Err: ErrHamming}
}

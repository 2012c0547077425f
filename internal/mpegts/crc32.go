package mpegts

import "errors"

var errCRC = errors.New("mpegts: CRC32 mismatch")

// crcTable is the MPEG-2 CRC32 table, polynomial 0x04C11DB7, MSB first.
var crcTable = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&(1<<31) != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func crc32(b []byte) uint32 {
	c := ^uint32(0)
	for _, v := range b {
		c = c<<8 ^ crcTable[byte(c>>24)^v]
	}
	return c
}

// checkCRC verifies a section whose last four bytes are its CRC32.
func checkCRC(section []byte) error {
	if len(section) < 4 || crc32(section) != 0 {
		return errCRC
	}
	return nil
}

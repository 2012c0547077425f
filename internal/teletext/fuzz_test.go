package teletext

import (
	"testing"

	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/vt"
)

func FuzzFeed(f *testing.F) {
	for _, p := range motPackets() {
		f.Add(p)
	}
	for _, p := range gpopPackets() {
		f.Add(p)
	}
	f.Add(headerPacket(0x100, 0x3F7F, vt.FlagErase|vt.FlagSubtitle, 5, "fuzz"))
	f.Add(enhPacket(1, 0, vt.Triplet{Address: 41, Mode: 0x11, Data: 0x7F}))
	f.Add(linkPacket(1, true, [6]vt.Link{}))
	f.Add(broadcastPacket(0x1234, "status"))

	f.Fuzz(func(t *testing.T, data []byte) {
		d := New(Config{})
		feedAll(t, d, motPackets()...)
		feedAll(t, d, gpopPackets()...)
		feedAll(t, d, headerPacket(0x100, 0, 0, 0, ""))

		p := make([]byte, PacketSize)
		copy(p, data)
		_ = d.Feed(p)
		_ = d.Feed(timeFiller(0x100))

		for _, pgno := range d.Pages() {
			for _, lvl := range []vt.Level{vt.Level1, vt.Level25, vt.Level35} {
				if _, err := d.Format(pgno, vt.AnySubno, format.Options{Level: lvl, Navigation: true}); err != nil {
					t.Fatalf("format %03x: %v", pgno, err)
				}
			}
		}
	})
}

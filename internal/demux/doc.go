// Package demux extracts 42-byte Teletext packets from their carriers: DVB
// transport streams (EN 300 472 data units in PES on teletext PIDs) and
// T42 capture files holding raw packets back to back.
//
// Both carriers implement [Source]: Run produces [Packet] values on the
// channel returned by Packets until the input ends or the context is
// cancelled.
package demux

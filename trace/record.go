// Package trace records the ordered update stream of an output into an
// append-only file, and replays it. A trace is the audit trail for the
// in-order delivery obligation: replaying it into a hwc.Remote must
// reproduce the occupancy the local mirror had when the trace was cut.
package trace

import (
	"encoding/binary"

	hwc "github.com/NezukoOS/frameworks-native"
)

// Record layout, little endian:
// seq uint64 | buffer id uint64 | slot uint32 | flags uint8
const recordSize = 8 + 8 + 4 + 1

const flagTransfer = 1 << 0

func encodeRecord(b *[recordSize]byte, u hwc.Update) {
	binary.LittleEndian.PutUint64(b[0:], u.Seq)
	binary.LittleEndian.PutUint64(b[8:], u.BufferID)
	binary.LittleEndian.PutUint32(b[16:], u.Slot)
	b[20] = 0
	if u.Transfer {
		b[20] = flagTransfer
	}
}

func decodeRecord(b *[recordSize]byte) hwc.Update {
	return hwc.Update{
		Seq:      binary.LittleEndian.Uint64(b[0:]),
		BufferID: binary.LittleEndian.Uint64(b[8:]),
		Slot:     binary.LittleEndian.Uint32(b[16:]),
		Transfer: b[20]&flagTransfer != 0,
	}
}

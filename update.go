package hwc

import (
	"fmt"

	"github.com/NezukoOS/frameworks-native/buffer"
)

// Update is one protocol event: buffer identity BufferID now occupies Slot
// on both sides. Transfer reports whether the handle itself must be sent;
// when false the far cache already holds it and only the slot number
// travels.
//
// Seq is assigned in Present call order, starting at 1. Sinks must deliver
// updates in strictly increasing Seq order; reordering silently diverges
// the two caches.
type Update struct {
	Seq      uint64
	Slot     uint32
	BufferID uint64
	Transfer bool
	// Buffer is the handle to transfer. Set only on the Present path when
	// Transfer is true; decoded trace records carry identity alone.
	Buffer *buffer.Buffer
}

func (u Update) GoString() string {
	return fmt.Sprintf("{seq:%v, slot:%v, buffer:%v, transfer:%v}",
		u.Seq, u.Slot, u.BufferID, u.Transfer)
}

// UpdateSink consumes updates in order. Implementations must not retain
// u.Buffer past the call.
type UpdateSink interface {
	HandleUpdate(u Update) error
}

type SinkFunc func(Update) error

func (f SinkFunc) HandleUpdate(u Update) error { return f(u) }

// Tee fans an update out to every sink in order, stopping at the first
// error. Useful to feed a transport and a trace writer the same stream.
func Tee(sinks ...UpdateSink) UpdateSink {
	return SinkFunc(func(u Update) error {
		for _, s := range sinks {
			if err := s.HandleUpdate(u); err != nil {
				return err
			}
		}
		return nil
	})
}

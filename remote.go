package hwc

import (
	"github.com/facebookgo/stackerr"

	"github.com/NezukoOS/frameworks-native/slotcache"
)

// Remote models the far side of the protocol: a slot table that evolves
// only by applying updates, with the same recency rule the local mirror
// uses. It detects the two protocol violations the real compositor cannot
// report back: out-of-order delivery and a no-transfer update for a buffer
// it does not hold.
type Remote struct {
	slots   []remoteSlot
	counter uint64
	lastSeq uint64
}

type remoteSlot struct {
	recency  uint64
	bufferID uint64
	occupied bool
}

func NewRemote(conf Config) *Remote {
	slots := conf.Slots
	if slots == 0 {
		slots = slotcache.DefaultSlots
	}
	return &Remote{
		slots:   make([]remoteSlot, slots),
		counter: 1,
	}
}

var _ UpdateSink = (*Remote)(nil)

func (r *Remote) HandleUpdate(u Update) error { return r.Apply(u) }

// Apply consumes one update. Updates must arrive in strictly increasing
// Seq order; gaps are legal (trace rotation compacts history) but
// reordering is not.
func (r *Remote) Apply(u Update) error {
	if u.Seq <= r.lastSeq {
		return stackerr.Newf("update out of order: seq %v after %v", u.Seq, r.lastSeq)
	}
	if int(u.Slot) >= len(r.slots) {
		return stackerr.Newf("slot %v out of range [0, %v)", u.Slot, len(r.slots))
	}
	s := &r.slots[u.Slot]
	if !u.Transfer && (!s.occupied || s.bufferID != u.BufferID) {
		return stackerr.Newf("cache divergence: no-transfer update for buffer %v, slot %v holds %#v",
			u.BufferID, u.Slot, *s)
	}
	s.bufferID = u.BufferID
	s.occupied = true
	s.recency = r.next()
	r.lastSeq = u.Seq
	return nil
}

func (r *Remote) next() uint64 {
	v := r.counter
	r.counter++
	return v
}

// BufferAt returns the identity held at slot, if any.
func (r *Remote) BufferAt(slot uint32) (uint64, bool) {
	if int(slot) >= len(r.slots) {
		return 0, false
	}
	s := r.slots[slot]
	return s.bufferID, s.occupied
}

// MirrorOf verifies that the remote holds, at every slot the local cache
// ever assigned, the identity the local cache last put there. This is the
// convergence check the real protocol can never run; tests and the
// simulator run it after replaying an update stream.
func (r *Remote) MirrorOf(c *slotcache.Cache) error {
	if c.Slots() != len(r.slots) {
		return stackerr.Newf("capacity mismatch: local %v, remote %v", c.Slots(), len(r.slots))
	}
	for _, e := range c.Snapshot() {
		id := e.Occupant.ID()
		if id == 0 {
			// Never assigned locally; the remote slot must be empty too.
			if r.slots[e.Slot].occupied {
				return stackerr.Newf("cache divergence: slot %v empty locally, remote holds %v",
					e.Slot, r.slots[e.Slot].bufferID)
			}
			continue
		}
		held, ok := r.BufferAt(e.Slot)
		if !ok || held != id {
			return stackerr.Newf("cache divergence at slot %v: local %v, remote %v (occupied %v)",
				e.Slot, id, held, ok)
		}
	}
	return nil
}

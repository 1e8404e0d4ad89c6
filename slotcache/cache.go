package slotcache

import (
	"github.com/NezukoOS/frameworks-native/buffer"
	"github.com/NezukoOS/frameworks-native/log"
)

// DefaultSlots is the remote cache capacity agreed with the far side.
// It must match the compositor's slot count for each target.
const DefaultSlots = 64

type Config struct {
	// Slots overrides DefaultSlots. Must match the far cache capacity.
	Slots int
}

// Invariants, checked in debug builds after every mutation:
// * len(slots) is fixed at construction and never changes.
// * at most one slot resolves to a given live buffer identity.
// * every slot recency is less than counter.
// * counter never decreases.
type Cache struct {
	log       log.Logger
	slots     []slot
	counter   uint64
	evictions uint64
}

// slot value indices are the externally visible protocol identifiers, so
// the table is a fixed array and never rearranged.
type slot struct {
	recency  uint64
	occupant buffer.Handle
}

func New(l log.Logger, conf Config) *Cache {
	if conf.Slots == 0 {
		conf.Slots = DefaultSlots
	}
	if conf.Slots < 0 {
		panic("negative slot count")
	}
	return &Cache{
		log:     l,
		slots:   make([]slot, conf.Slots),
		counter: 1,
	}
}

// Resolve returns the slot the far cache associates with buf, and the
// buffer to actually transfer. A nil transfer means the far side already
// holds buf at that slot and only the slot number needs to be sent.
func (c *Cache) Resolve(buf *buffer.Buffer) (slotIndex uint32, transfer *buffer.Buffer) {
	defer c.checkInvariants()
	if i, ok := c.lookup(buf); ok {
		c.slots[i].recency = c.next()
		c.log.Debugf("Buffer %v hit slot %v.", buf.ID(), i)
		return i, nil
	}
	i := c.lruSlot()
	if evicted := c.slots[i].occupant.ID(); evicted != 0 {
		c.evictions++
		c.log.Debugf("Buffer %v evicts %v from slot %v.", buf.ID(), evicted, i)
	}
	c.slots[i] = slot{recency: c.next(), occupant: buf.Handle()}
	c.log.Debugf("Buffer %v misses, takes slot %v.", buf.ID(), i)
	return i, buf
}

// Evictions returns how many misses overwrote a previously assigned slot.
// A first fill of a never assigned slot is not an eviction.
func (c *Cache) Evictions() uint64 { return c.evictions }

// lookup scans all slots for a live occupant identical to buf.
// O(n), which doubles as the occupancy scan eviction relies on; the table
// is small and fixed, so a hash index would buy nothing.
func (c *Cache) lookup(buf *buffer.Buffer) (uint32, bool) {
	for i := range c.slots {
		if o, ok := c.slots[i].occupant.Get(); ok && o == buf {
			return uint32(i), true
		}
	}
	return 0, false
}

// lruSlot picks the eviction victim: minimum recency, ties to the lowest
// index. The far side runs the same rule over the same update sequence, so
// the choice must stay deterministic. Dead occupants get no special
// priority; recency alone governs selection, because the far side has no
// concept of local buffer lifetime.
func (c *Cache) lruSlot() uint32 {
	var victim uint32
	min := c.slots[0].recency
	for i := 1; i < len(c.slots); i++ {
		if c.slots[i].recency < min {
			min = c.slots[i].recency
			victim = uint32(i)
		}
	}
	return victim
}

// next returns the current counter value and increments it. Called exactly
// once per Resolve, hit or miss, so every access ages all other slots.
func (c *Cache) next() uint64 {
	v := c.counter
	c.counter++
	return v
}

// Slots returns the fixed capacity.
func (c *Cache) Slots() int { return len(c.slots) }

// Entry is the observable state of one slot.
type Entry struct {
	Slot     uint32
	Recency  uint64
	Occupant buffer.Handle
}

// Snapshot returns the current table state in slot order. Entries with a
// zero occupant handle were never assigned.
func (c *Cache) Snapshot() []Entry {
	entries := make([]Entry, len(c.slots))
	for i := range c.slots {
		entries[i] = Entry{
			Slot:     uint32(i),
			Recency:  c.slots[i].recency,
			Occupant: c.slots[i].occupant,
		}
	}
	return entries
}

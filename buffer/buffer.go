package buffer

import (
	"fmt"
	"sync/atomic"
)

// Buffer represents an externally owned graphics buffer. It carries no
// pixel data, only a stable identity and an owner reference count.
// Identity is reference identity: two *Buffer values are the same buffer
// iff they are the same pointer, and ID is a stable process-unique alias
// of that identity for use across the transport boundary.
type Buffer struct {
	registry *Registry
	id       uint64
	refs     int32 // Atomic. Owner references; 0 means destroyed.
}

func (b *Buffer) ID() uint64 { return b.id }

// Live reports whether some owner still holds the buffer.
func (b *Buffer) Live() bool {
	return atomic.LoadInt32(&b.refs) > 0
}

// Retain adds an owner reference.
func (b *Buffer) Retain() {
	if atomic.LoadInt32(&b.refs) <= 0 {
		panic("retain of destroyed buffer")
	}
	atomic.AddInt32(&b.refs, 1)
}

// Release drops an owner reference. After the last release the buffer is
// dead: handles to it stop resolving, but remain valid values.
func (b *Buffer) Release() {
	refs := atomic.AddInt32(&b.refs, -1)
	if refs < 0 {
		panic("release of destroyed buffer")
	}
}

// Handle returns a non-owning reference to the buffer. Handles never keep
// the buffer alive and must tolerate it dying between calls.
func (b *Buffer) Handle() Handle {
	return Handle{buf: b}
}

func (b *Buffer) GoString() string {
	return fmt.Sprintf("{id:%v, refs:%v}", b.id, atomic.LoadInt32(&b.refs))
}

// Handle is a liveness-checkable weak reference.
// The zero Handle is empty and never resolves.
type Handle struct {
	buf *Buffer
}

// Get resolves the handle. It returns the buffer only while it is live.
func (h Handle) Get() (*Buffer, bool) {
	if h.buf == nil || !h.buf.Live() {
		return nil, false
	}
	return h.buf, true
}

// ID returns the identity the handle was taken from, dead or live.
// Zero for the empty handle.
func (h Handle) ID() uint64 {
	if h.buf == nil {
		return 0
	}
	return h.buf.id
}

// Package buffer provides identity and lifetime bookkeeping for graphics
// buffers that are allocated and owned elsewhere. The package never touches
// buffer contents; a Buffer is an identity plus a reference count, and a
// Handle is a non-owning view of it that can be asked for liveness.
package buffer

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// Registry issues buffers with process-unique identities.
// The zero identity is reserved for the zero Handle.
type Registry struct {
	leakCallback LeakCallback
	lastID       uint64 // Atomic.
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register creates a buffer owned by the caller with one owner reference.
// The caller must release it when the underlying graphics buffer is
// destroyed.
func (r *Registry) Register() *Buffer {
	b := &Buffer{
		registry: r,
		id:       atomic.AddUint64(&r.lastID, 1),
		refs:     1,
	}
	if r.leakCallback != nil {
		runtime.SetFinalizer(b, checkLeakFinalizer(r.leakCallback))
	}
	return b
}

type LeakCallback func(*Buffer)

// SetLeakCallback sets a callback, which is called before GC of a buffer
// that was never released.
// Note: this is for test and debug purpose only.
func (r *Registry) SetLeakCallback(cb LeakCallback) {
	r.leakCallback = cb
}

func NotifyOnLeak(leak chan<- *Buffer) LeakCallback {
	return func(b *Buffer) {
		select {
		case leak <- b:
		case <-time.After(5 * time.Second):
			panic("Nobody is listening for leak notification")
		}
	}
}

var PanicOnLeak LeakCallback = func(b *Buffer) {
	panic(fmt.Sprintf("buffer.Buffer leaked: %#v.", b))
}
var WarnOnLeak LeakCallback = func(b *Buffer) {
	println("WARN: buffer.Buffer leaked.")
}

func checkLeakFinalizer(cb LeakCallback) func(*Buffer) {
	return func(b *Buffer) {
		if b.Live() {
			cb(b)
		}
	}
}

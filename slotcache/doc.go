// Package slotcache mirrors, on the client side, the fixed-capacity buffer
// cache a remote hardware compositor keeps for each display target and
// layer. When a buffer is handed to the compositor we have the option to
// send the buffer handle over, or to ask the far side to reuse the handle
// it already holds in one of its slots. The latter is cheaper since it
// eliminates the overhead of transferring the handle and of the far side
// cloning and retaining it.
//
// The far cache has no query interface, so the mirror is kept consistent
// structurally: both sides run the identical slot selection rule (least
// recently used, ties to the lowest slot index) over the identical update
// sequence. The transport layer must deliver updates in the order Resolve
// was called, or the two caches silently diverge.
//
// A Cache is not internally synchronized. It is meant for one producer
// sequence per output target; concurrent callers must serialize access.
package slotcache

// Package hwc is the composition-facing surface over the slot cache
// mirror: per-output Resolve plus an ordered update stream toward the
// remote compositor.
//
// An Output wraps one slotcache.Cache for one display target or layer. Each
// Present call produces an Update carrying a sequence number, the slot, and
// either the buffer to transfer or the no-transfer marker. The UpdateSink
// receiving those updates is the transport boundary; it must deliver them
// in sequence order, since the far cache co-evolves with the local one only
// by deterministic replay of the same updates in the same order.
//
// Remote models the far side of that protocol. It is not the compositor
// itself (the real one lives across the transport and cannot be queried);
// it exists so tests, trace replay, and the simulator can audit that a
// given update stream keeps both caches convergent.
package hwc

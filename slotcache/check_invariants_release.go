//go:build !debug

package slotcache

func (c *Cache) checkInvariants() {}

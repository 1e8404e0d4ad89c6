//go:build debug

// Gomega should not be a dependency in non-debug builds.

package slotcache

import (
	"errors"
	"log"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var _ = func() (_ struct{}) {
	RegisterFailHandler(GomegaFailHandler)
	return
}()

func GomegaFailHandler(message string, callerSkip ...int) {
	skip := callerSkip[0] + 1
	log.Fatal("FATAL: invariants are broken:", stackerr.WrapSkip(errors.New(message), skip))
}

func (c *Cache) checkInvariants() {
	seen := make(map[uint64]uint32, len(c.slots))
	for i := range c.slots {
		Expect(c.slots[i].recency).To(BeNumerically("<", c.counter))
		o, ok := c.slots[i].occupant.Get()
		if !ok {
			continue
		}
		prev, dup := seen[o.ID()]
		Expect(dup).To(BeFalse(), "buffer %v occupies slots %v and %v", o.ID(), prev, i)
		seen[o.ID()] = uint32(i)
	}
}

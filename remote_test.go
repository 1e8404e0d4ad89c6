package hwc

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NezukoOS/frameworks-native/buffer"
	"github.com/NezukoOS/frameworks-native/log"
)

var _ = Describe("Remote", func() {
	var remote *Remote
	BeforeEach(func() {
		remote = NewRemote(Config{Slots: testSlots})
	})
	transfer := func(seq uint64, slot uint32, id uint64) Update {
		return Update{Seq: seq, Slot: slot, BufferID: id, Transfer: true}
	}
	cached := func(seq uint64, slot uint32, id uint64) Update {
		return Update{Seq: seq, Slot: slot, BufferID: id}
	}

	It("stores transferred buffers", func() {
		Expect(remote.Apply(transfer(1, 2, 7))).To(Succeed())
		id, ok := remote.BufferAt(2)
		Expect(ok).To(BeTrue())
		Expect(id).To(BeEquivalentTo(7))
	})

	It("accepts a no-transfer update for a held buffer", func() {
		Expect(remote.Apply(transfer(1, 0, 7))).To(Succeed())
		Expect(remote.Apply(cached(2, 0, 7))).To(Succeed())
	})

	It("rejects a no-transfer update for an empty slot", func() {
		Expect(remote.Apply(cached(1, 0, 7))).NotTo(Succeed())
	})

	It("rejects a no-transfer update for the wrong buffer", func() {
		Expect(remote.Apply(transfer(1, 0, 7))).To(Succeed())
		Expect(remote.Apply(cached(2, 0, 8))).NotTo(Succeed())
	})

	It("rejects out of order delivery", func() {
		Expect(remote.Apply(transfer(2, 0, 7))).To(Succeed())
		Expect(remote.Apply(transfer(1, 1, 8))).NotTo(Succeed())
		Expect(remote.Apply(transfer(2, 1, 8))).NotTo(Succeed())
	})

	It("accepts sequence gaps", func() {
		// Trace rotation compacts history, leaving gaps.
		Expect(remote.Apply(transfer(3, 0, 7))).To(Succeed())
		Expect(remote.Apply(transfer(9, 1, 8))).To(Succeed())
	})

	It("rejects a slot past the agreed capacity", func() {
		Expect(remote.Apply(transfer(1, testSlots, 7))).NotTo(Succeed())
	})

	Describe("MirrorOf", func() {
		It("flags occupancy the local cache does not have", func() {
			reg := buffer.NewRegistry()
			out := NewOutput(log.NewLogger(log.DebugLevel, GinkgoWriter), "test", nil, Config{Slots: testSlots})
			out.Present(reg.Register())

			Expect(remote.MirrorOf(out.Cache())).NotTo(Succeed(), "slot 0 never transferred")
			Expect(remote.Apply(transfer(1, 0, 999))).To(Succeed())
			Expect(remote.MirrorOf(out.Cache())).NotTo(Succeed(), "wrong identity at slot 0")
		})

		It("flags a capacity mismatch", func() {
			small := NewOutput(log.NewLogger(log.DebugLevel, GinkgoWriter), "test", nil, Config{Slots: testSlots - 1})
			Expect(remote.MirrorOf(small.Cache())).NotTo(Succeed())
		})
	})
})

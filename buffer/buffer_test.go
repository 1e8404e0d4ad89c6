package buffer

import (
	"runtime"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var r *Registry
	BeforeEach(func() {
		r = NewRegistry()
	})

	It("assigns distinct non-zero identities", func() {
		a, b := r.Register(), r.Register()
		Expect(a.ID()).NotTo(BeZero())
		Expect(b.ID()).NotTo(Equal(a.ID()))
	})

	Describe("lifetime", func() {
		var b *Buffer
		BeforeEach(func() { b = r.Register() })

		It("is live until released", func() {
			Expect(b.Live()).To(BeTrue())
			b.Release()
			Expect(b.Live()).To(BeFalse())
		})

		It("stays live while any owner reference remains", func() {
			b.Retain()
			b.Release()
			Expect(b.Live()).To(BeTrue())
			b.Release()
			Expect(b.Live()).To(BeFalse())
		})

		It("panics on release of a destroyed buffer", func() {
			b.Release()
			Expect(func() { b.Release() }).To(Panic())
		})

		It("panics on retain of a destroyed buffer", func() {
			b.Release()
			Expect(func() { b.Retain() }).To(Panic())
		})
	})

	Describe("Handle", func() {
		It("resolves only while the buffer is live", func() {
			b := r.Register()
			h := b.Handle()
			got, ok := h.Get()
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(b))

			b.Release()
			_, ok = h.Get()
			Expect(ok).To(BeFalse())
		})

		It("keeps the identity after death", func() {
			b := r.Register()
			h := b.Handle()
			b.Release()
			Expect(h.ID()).To(Equal(b.ID()))
		})

		It("zero handle never resolves", func() {
			var h Handle
			_, ok := h.Get()
			Expect(ok).To(BeFalse())
			Expect(h.ID()).To(BeZero())
		})
	})

	Describe("leak detection", func() {
		var leak chan *Buffer
		BeforeEach(func() {
			leak = make(chan *Buffer, 1)
			r.SetLeakCallback(NotifyOnLeak(leak))
		})

		It("reports a buffer collected without release", func() {
			r.Register()
			Eventually(func() chan *Buffer {
				runtime.GC()
				return leak
			}).Should(Receive())
		})

		It("stays silent for released buffers", func() {
			r.Register().Release()
			runtime.GC()
			Consistently(leak).ShouldNot(Receive())
		})
	})
})

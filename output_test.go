package hwc

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/NezukoOS/frameworks-native/buffer"
	"github.com/NezukoOS/frameworks-native/log"
	"github.com/NezukoOS/frameworks-native/testutil"
)

const testSlots = 4

var _ = Describe("Output", func() {
	var (
		reg    *buffer.Registry
		remote *Remote
		out    *Output
		buf    []*buffer.Buffer
	)
	NewTestOutput := func(sink UpdateSink) *Output {
		return NewOutput(log.NewLogger(log.DebugLevel, GinkgoWriter), "test", sink, Config{Slots: testSlots})
	}
	BeforeEach(func() {
		reg = buffer.NewRegistry()
		remote = NewRemote(Config{Slots: testSlots})
		out = NewTestOutput(remote)
		buf = nil
		for i := 0; i < 3*testSlots; i++ {
			buf = append(buf, reg.Register())
		}
	})

	It("stamps sequence numbers in call order", func() {
		for i := 0; i < 3; i++ {
			u, err := out.Present(buf[i])
			Expect(err).To(BeNil())
			Expect(u.Seq).To(Equal(uint64(i + 1)))
		}
	})

	It("emits transfer on miss and no-transfer on hit", func() {
		u, err := out.Present(buf[0])
		Expect(err).To(BeNil())
		Expect(u.Transfer).To(BeTrue())
		Expect(u.Buffer).To(BeIdenticalTo(buf[0]))
		Expect(u.BufferID).To(Equal(buf[0].ID()))

		u, err = out.Present(buf[0])
		Expect(err).To(BeNil())
		Expect(u.Transfer).To(BeFalse())
		Expect(u.Buffer).To(BeNil())
	})

	It("keeps the remote convergent over a random workload", func() {
		for i := 0; i < 20*testSlots; i++ {
			b := buf[testutil.Rand.Intn(len(buf))]
			if !b.Live() {
				continue
			}
			_, err := out.Present(b)
			Expect(err).To(BeNil())
			Expect(remote.MirrorOf(out.Cache())).To(Succeed())
			if testutil.Rand.Intn(10) == 0 {
				// Owners destroy buffers at arbitrary times.
				victim := testutil.Rand.Intn(len(buf))
				if buf[victim].Live() {
					testutil.Byf("destroying buffer %v", buf[victim].ID())
					buf[victim].Release()
					buf[victim] = reg.Register()
				}
			}
		}
	})

	It("counts hits, misses and evictions", func() {
		counter := func(name string) int64 {
			c := out.Metrics().Get(name)
			ExpectWithOffset(1, c).NotTo(BeNil())
			return c.(interface{ Count() int64 }).Count()
		}
		out.Present(buf[0])
		out.Present(buf[0])
		out.Present(buf[1])
		Expect(counter("hits")).To(BeEquivalentTo(1))
		Expect(counter("misses")).To(BeEquivalentTo(2))
		Expect(counter("evictions")).To(BeZero())

		// Fill the remaining slots, then one more to force an eviction.
		for i := 2; i <= testSlots; i++ {
			out.Present(buf[i])
		}
		Expect(counter("evictions")).To(BeEquivalentTo(1))
	})

	Context("sink errors", func() {
		var sink *MockSink
		sinkErr := errors.New("transport down")
		BeforeEach(func() {
			sink = &MockSink{}
			out = NewTestOutput(sink)
		})

		It("propagates them with the emitted update", func() {
			sink.On("HandleUpdate", mock.Anything).Return(sinkErr).Once()
			u, err := out.Present(buf[0])
			Expect(err).To(HaveOccurred())
			Expect(u.Slot).To(Equal(uint32(0)))
			sink.AssertExpectations(GinkgoT())
		})
	})

	It("tees updates to every sink in order", func() {
		var got []uint64
		record := func(tag uint64) UpdateSink {
			return SinkFunc(func(u Update) error {
				got = append(got, tag)
				return nil
			})
		}
		out = NewTestOutput(Tee(record(1), record(2)))
		out.Present(buf[0])
		Expect(got).To(Equal([]uint64{1, 2}))
	})
})

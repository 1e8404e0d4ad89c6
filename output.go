package hwc

import (
	"github.com/facebookgo/stackerr"
	"github.com/rcrowley/go-metrics"

	"github.com/NezukoOS/frameworks-native/buffer"
	"github.com/NezukoOS/frameworks-native/log"
	"github.com/NezukoOS/frameworks-native/slotcache"
)

type Config struct {
	// Slots is the far cache capacity for this target.
	// Zero means slotcache.DefaultSlots.
	Slots int
}

// Output owns the slot cache mirror for one display target or layer and
// hands ordered updates to its sink. Like the cache it wraps, an Output is
// not internally synchronized: all Present calls for a target must come
// from a single producer sequence, or be serialized by the caller.
type Output struct {
	log     log.Logger
	cache   *slotcache.Cache
	sink    UpdateSink
	seq     uint64
	metrics   metrics.Registry
	hits      metrics.Counter
	misses    metrics.Counter
	evictions metrics.Counter
}

// NewOutput creates the mirror for one target. sink may be nil when the
// caller forwards updates itself.
func NewOutput(l log.Logger, name string, sink UpdateSink, conf Config) *Output {
	l = l.WithFields(log.Fields{"output": name})
	r := metrics.NewRegistry()
	return &Output{
		log:     l,
		cache:   slotcache.New(l, slotcache.Config{Slots: conf.Slots}),
		sink:    sink,
		metrics:   r,
		hits:      metrics.NewRegisteredCounter("hits", r),
		misses:    metrics.NewRegisteredCounter("misses", r),
		evictions: metrics.NewRegisteredCounter("evictions", r),
	}
}

// Present resolves buf against the mirror and emits the resulting update
// to the sink. The returned update is the one emitted.
func (o *Output) Present(buf *buffer.Buffer) (Update, error) {
	evictions := o.cache.Evictions()
	slot, transfer := o.cache.Resolve(buf)
	o.seq++
	u := Update{
		Seq:      o.seq,
		Slot:     slot,
		BufferID: buf.ID(),
		Transfer: transfer != nil,
		Buffer:   transfer,
	}
	if u.Transfer {
		o.misses.Inc(1)
	} else {
		o.hits.Inc(1)
	}
	if o.cache.Evictions() > evictions {
		o.evictions.Inc(1)
	}
	o.log.Debugf("Present %#v.", u)
	if o.sink != nil {
		if err := o.sink.HandleUpdate(u); err != nil {
			return u, stackerr.Wrap(err)
		}
	}
	return u, nil
}

// Cache exposes the underlying mirror, e.g. for trace rotation snapshots.
func (o *Output) Cache() *slotcache.Cache { return o.cache }

// Metrics returns the per-output hit and miss counters.
func (o *Output) Metrics() metrics.Registry { return o.metrics }

package trace

import (
	"bufio"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"

	hwc "github.com/NezukoOS/frameworks-native"
	"github.com/NezukoOS/frameworks-native/log"
	"github.com/NezukoOS/frameworks-native/slotcache"
)

const MinSyncPeriod = 100 * time.Millisecond
const Perm = 0664

type Config struct {
	Name       string
	SyncPeriod time.Duration
	// RotateSize is the trace size, after which the file is compacted.
	// Zero disables rotation.
	RotateSize int64
	BufSize    int // 0 if no buffering.
	// Snapshot provides the current slot table for compaction.
	// Required when RotateSize is set.
	Snapshot func() []slotcache.Entry
}

// Writer appends every update it receives to the trace file.
// It implements hwc.UpdateSink.
type Writer struct {
	config Config
	log    log.Logger

	// lock protects fields below.
	lock    sync.Mutex
	writer  io.Writer
	flusher flusher
	file    *os.File
	size    int64
	stop    chan struct{}
}

var _ hwc.UpdateSink = (*Writer)(nil)

func Open(l log.Logger, conf Config) (w *Writer, err error) {
	if conf.RotateSize != 0 && conf.Snapshot == nil {
		panic("rotation configured without snapshot source")
	}
	w = &Writer{
		log:    l,
		config: conf,
	}
	err = w.init()
	if err != nil {
		return
	}
	if !w.isSyncEveryRecord() {
		w.startSync()
	}
	return
}

func (w *Writer) init() (err error) {
	var file *os.File
	file, err = os.OpenFile(w.config.Name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, Perm)
	if err != nil {
		return stackerr.Wrap(err)
	}
	stat, err := file.Stat()
	if err != nil {
		return stackerr.Wrap(err)
	}
	w.size = stat.Size()
	w.file = file

	if w.config.BufSize == 0 {
		w.writer = file
		w.flusher = nopFlusher{}
		return
	}
	bufWriter := bufio.NewWriterSize(w.file, w.config.BufSize)
	w.writer = bufWriter
	w.flusher = bufWriter
	w.log.Debug("Trace opened.")
	return
}

func (w *Writer) HandleUpdate(u hwc.Update) (err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.isClosed() {
		return stackerr.New("write to closed trace")
	}
	var rec [recordSize]byte
	encodeRecord(&rec, u)
	_, err = w.writer.Write(rec[:])
	if err != nil {
		return stackerr.Wrap(err)
	}
	w.size += recordSize
	if w.isSyncEveryRecord() {
		err = w.sync()
		if err != nil {
			return
		}
	}
	if w.config.RotateSize != 0 && w.size > w.config.RotateSize {
		err = w.rotate()
	}
	return
}

// rotate compacts history into a snapshot of the current slot table: one
// synthetic transfer record per occupied slot, in recency order. Replaying
// the compacted trace leaves a Remote in the same end state; recency values
// double as sequence numbers, so ordering stays strictly increasing across
// the rotation boundary.
func (w *Writer) rotate() (err error) {
	w.log.Debugf("Trace size %v over limit %v, rotating.", w.size, w.config.RotateSize)
	entries := w.config.Snapshot()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Recency < entries[j].Recency
	})
	tmpName := w.config.Name + ".rotate"
	tmp, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, Perm)
	if err != nil {
		return stackerr.Wrap(err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()
	bufW := bufio.NewWriter(tmp)
	var size int64
	for _, e := range entries {
		if e.Occupant.ID() == 0 {
			continue
		}
		var rec [recordSize]byte
		encodeRecord(&rec, hwc.Update{
			Seq:      e.Recency,
			Slot:     e.Slot,
			BufferID: e.Occupant.ID(),
			Transfer: true,
		})
		if _, err = bufW.Write(rec[:]); err != nil {
			return stackerr.Wrap(err)
		}
		size += recordSize
	}
	if err = bufW.Flush(); err != nil {
		return stackerr.Wrap(err)
	}
	if err = tmp.Sync(); err != nil {
		return stackerr.Wrap(err)
	}
	if err = tmp.Close(); err != nil {
		return stackerr.Wrap(err)
	}

	if err = w.flusher.Flush(); err != nil {
		return stackerr.Wrap(err)
	}
	if err = w.file.Close(); err != nil {
		return stackerr.Wrap(err)
	}
	if err = os.Rename(tmpName, w.config.Name); err != nil {
		return stackerr.Wrap(err)
	}
	w.file = nil
	if err = w.init(); err != nil {
		return
	}
	w.log.Debugf("Trace rotated to %v records.", size/recordSize)
	return
}

func (w *Writer) isSyncEveryRecord() bool {
	return w.config.SyncPeriod < MinSyncPeriod
}

func (w *Writer) sync() (err error) {
	err = w.flusher.Flush()
	if err != nil {
		return stackerr.Wrap(err)
	}
	err = w.file.Sync()
	return stackerr.Wrap(err)
}

func (w *Writer) startSync() {
	w.stop = make(chan struct{})
	go func() {
		t := time.NewTicker(w.config.SyncPeriod)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				w.lock.Lock()
				if w.isClosed() {
					w.lock.Unlock()
					return
				}
				err := w.sync()
				w.lock.Unlock()
				if err != nil {
					w.log.Error("Trace sync error: ", err)
				}
			case <-w.stop:
				return
			}
		}
	}()
}

// Sync flushes buffered records to stable storage.
func (w *Writer) Sync() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.isClosed() {
		return stackerr.New("sync of closed trace")
	}
	return w.sync()
}

func (w *Writer) isClosed() bool {
	return w.file == nil
}

func (w *Writer) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.isClosed() {
		return stackerr.New("second close of trace")
	}
	if w.stop != nil {
		close(w.stop)
	}
	w.flusher.Flush()
	err := w.file.Close()
	w.file = nil // Mark as closed.
	return stackerr.Wrap(err)
}

type flusher interface {
	Flush() error
}

type nopFlusher struct{}

func (nopFlusher) Flush() error { return nil }

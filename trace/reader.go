package trace

import (
	"bufio"
	"io"
	"os"

	"github.com/facebookgo/stackerr"

	hwc "github.com/NezukoOS/frameworks-native"
)

// Reader decodes trace records in write order.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next update. io.EOF marks a clean end of trace; a
// truncated record is a corruption error.
func (r *Reader) Next() (u hwc.Update, err error) {
	var rec [recordSize]byte
	_, err = io.ReadFull(r.r, rec[:])
	if err == io.EOF {
		return
	}
	if err != nil {
		err = stackerr.Newf("corrupted trace: truncated record: %v", err)
		return
	}
	u = decodeRecord(&rec)
	return
}

// Replay feeds every record of r into sink and returns the number of
// updates applied.
func Replay(r io.Reader, sink hwc.UpdateSink) (n int, err error) {
	tr := NewReader(r)
	for {
		var u hwc.Update
		u, err = tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return
		}
		err = sink.HandleUpdate(u)
		if err != nil {
			return
		}
		n++
	}
}

// ReplayFile replays the trace at name into sink.
func ReplayFile(name string, sink hwc.UpdateSink) (n int, err error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, stackerr.Wrap(err)
	}
	defer f.Close()
	return Replay(f, sink)
}

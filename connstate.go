package reactor

import (
	"github.com/eapache/queue"

	"github.com/corereactor/reactor/bytebuf"
)

// connState is the reactor's per-connection bookkeeping record, keyed by
// raw descriptor in the reactor's connection table.
//
// outq holds *bytebuf.Buffer chunks, oldest first. github.com/eapache/queue
// stores interface{} elements by reference, not by value, so Peek()
// returns the same pointer that was Add()-ed: the write-flush algorithm
// mutates the head chunk in place (bytebuf.Buffer.TrimPrefix) across
// partial writes without ever needing to push a remainder back onto the
// front of the queue, which the library's Add/Peek/Get/Remove (push-back,
// pop-front) API has no primitive for. A chunk is Remove()-d only once
// fully drained.
type connState struct {
	conn      *Connection
	outq      *queue.Queue
	wantWrite bool
	wantClose bool

	// closePendingIters counts dispatches to this descriptor that carried
	// an error or hangup event while wantWrite was still true. Consulted
	// by WithForceCloseAfter.
	closePendingIters int
}

func newConnState(c *Connection) *connState {
	return &connState{conn: c, outq: queue.New()}
}

func (st *connState) outqEmpty() bool { return st.outq.Length() == 0 }

// bufferFromBytes wraps b (already an owned copy) in a *bytebuf.Buffer for
// enqueueing onto outq.
func bufferFromBytes(b []byte) *bytebuf.Buffer {
	buf := bytebuf.New(len(b))
	buf.Append(b)
	return buf
}

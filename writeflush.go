package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/bytebuf"
	"github.com/corereactor/reactor/internal/rerr"
	"github.com/corereactor/reactor/internal/rio"
)

// maxGatherChunks bounds how many queued chunks a single flush iteration
// gathers into one writev(2) call.
const maxGatherChunks = 16

// flush processes st.outq in FIFO order, issuing a non-blocking send for
// the head chunk (or, when more than one chunk is queued, a scatter-write
// across up to maxGatherChunks chunks at once). Returns drained=true only
// once the queue is empty. A non-nil err means the send failed for a
// reason other than the kernel send buffer being full (EAGAIN); the
// caller should treat the connection as unrecoverable and close it rather
// than rearm it for another write attempt.
func (r *Reactor) flush(st *connState) (drained bool, err error) {
	for !st.outqEmpty() {
		if front, ok := st.outq.Peek().(*bytebuf.Buffer); ok && front.Empty() {
			st.outq.Remove()
			continue
		}

		iov := r.gatherChunks(st)
		total := 0
		for _, c := range iov {
			total += len(c)
		}

		var n int
		var sendErr error
		if len(iov) == 1 {
			n, sendErr = st.conn.rawSend(iov[0])
		} else {
			n, sendErr = rio.Writev(st.conn.FD(), iov)
		}

		if sendErr != nil {
			if sendErr == unix.EAGAIN || sendErr == unix.EWOULDBLOCK {
				return false, nil
			}
			wrapped := rerr.Wrap(rerr.ErrConnectionIO, sendErr)
			r.handler.OnException(wrapped)
			return false, wrapped
		}

		r.distributeWritten(st, n)

		if n < total {
			// Partial write: the kernel send buffer is full. trim in
			// place already happened inside distributeWritten.
			return false, nil
		}
	}
	return true, nil
}

// gatherChunks returns, without removing them, up to maxGatherChunks
// pending chunks' byte slices, oldest first.
func (r *Reactor) gatherChunks(st *connState) [][]byte {
	n := st.outq.Length()
	if n > maxGatherChunks {
		n = maxGatherChunks
	}
	iov := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		buf, ok := st.outq.Get(i).(*bytebuf.Buffer)
		if !ok || buf.Empty() {
			continue
		}
		iov = append(iov, buf.Bytes())
	}
	return iov
}

// distributeWritten accounts n written bytes against the queue's head
// chunks in order, trimming the first not-fully-sent chunk in place and
// popping every chunk that was sent in full.
func (r *Reactor) distributeWritten(st *connState, n int) {
	for n > 0 && !st.outqEmpty() {
		front, ok := st.outq.Peek().(*bytebuf.Buffer)
		if !ok {
			st.outq.Remove()
			continue
		}
		if front.Len() <= n {
			n -= front.Len()
			st.outq.Remove()
			continue
		}
		front.TrimPrefix(n)
		return
	}
}

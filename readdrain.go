package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/internal/rerr"
)

// readDrain issues non-blocking recv into a reusable staging buffer until
// the kernel reports "would block", delivering each non-empty chunk to
// OnMessage. A zero-length read (peer closed) or any non-EAGAIN error
// schedules a deferred close and stops draining immediately.
func (r *Reactor) readDrain(st *connState) {
	for !st.wantClose {
		n, err := st.conn.rawRecv(r.readBuf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			r.handler.OnException(rerr.Wrap(rerr.ErrConnectionIO, err))
			r.scheduleClose(st)
			return
		}
		if n == 0 {
			r.scheduleClose(st)
			return
		}
		r.handler.OnMessage(st.conn, r.readBuf[:n])
	}
}

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/internal/netpoll"
	"github.com/corereactor/reactor/internal/rerr"
	"github.com/corereactor/reactor/internal/rlog"
)

// Run enters the event loop: blocks the calling goroutine until Stop is
// invoked or a fatal multiplexer error occurs. Invokes OnListenSuccess
// before the first wait and OnShutdownSuccess before returning.
func (r *Reactor) Run(idleTimeoutMs int) error {
	r.handler.OnListenSuccess()

	var loopErr error
	for !r.stopFlag.Load() {
		r.handler.OnWaitingForActivity()

		events, err := r.poller.Wait(idleTimeoutMs)
		if err != nil {
			r.handler.OnException(rerr.Wrap(rerr.ErrFatalLoop, err))
			loopErr = err
			break
		}

		// Urgent cross-goroutine Send/Close calls are drained before
		// dispatching this batch's readiness records, so a call is
		// observed no later than the wait that follows its enqueue.
		r.drainTasks()

		for _, ev := range events {
			if r.hasListener && ev.Fd == r.listenerFd {
				r.acceptLoop()
				continue
			}
			st, ok := r.conns[ev.Fd]
			if !ok {
				continue
			}
			r.dispatchConn(st, ev)
		}

		if r.hasListener {
			r.acceptLoop()
		}
	}

	r.shutdownAllConns()
	r.handler.OnShutdownSuccess()
	return loopErr
}

// dispatchConn handles one descriptor's readiness event: first an
// opportunistic flush of anything already queued, then the event's own
// write/error/hangup/read bits in that order.
func (r *Reactor) dispatchConn(st *connState, ev netpoll.Event) {
	fd := st.conn.FD()

	if !st.outqEmpty() {
		drained, flushErr := r.flush(st)
		if flushErr != nil {
			r.closeAndErase(fd, flushErr)
			return
		}
		if drained {
			r.rearmForReadOnly(st)
		} else {
			r.rearmForWrite(st)
		}
	}
	if st.wantClose && !st.wantWrite {
		r.closeAndErase(fd, nil)
		return
	}

	if ev.Flags&netpoll.Write != 0 {
		drained, flushErr := r.flush(st)
		if flushErr != nil {
			r.closeAndErase(fd, flushErr)
			return
		}
		if drained {
			r.rearmForReadOnly(st)
		}
		if st.wantClose && !st.wantWrite {
			r.closeAndErase(fd, nil)
			return
		}
	}

	if ev.Flags&(netpoll.Err|netpoll.Hangup) != 0 {
		if !st.wantWrite {
			r.closeAndErase(fd, nil)
			return
		}
		if r.opts.ForceCloseAfter > 0 {
			st.closePendingIters++
			if st.closePendingIters >= r.opts.ForceCloseAfter {
				rlog.Warn(fmt.Sprintf("force-closing fd %d after %d pending iterations with outq unsent", fd, st.closePendingIters))
				r.closeAndErase(fd, rerr.Wrap(rerr.ErrConnectionIO, unix.ECONNRESET))
				return
			}
		}
	}

	if ev.Flags&netpoll.Read != 0 {
		r.readDrain(st)
		if st.wantClose && !st.wantWrite {
			r.closeAndErase(fd, nil)
		}
	}
}

// shutdownAllConns closes every descriptor still in the table. It runs
// before OnShutdownSuccess, so OnClosed still fires for each of them —
// no callback fires once OnShutdownSuccess has been invoked.
func (r *Reactor) shutdownAllConns() {
	for fd := range r.conns {
		r.closeAndErase(fd, rerr.Wrap(rerr.ErrServerShutdown, nil))
	}
}

package reactor

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/internal/rerr"
	"github.com/corereactor/reactor/internal/rlog"
	"github.com/corereactor/reactor/internal/socket"
)

// acceptLoop repeats non-blocking accept until it would block. EMFILE/
// ENFILE and other transient saturation are reported via OnException and
// stop the loop rather than being treated as fatal; Run retries accepting
// at the end of every iteration so the listener recovers once descriptors
// free up.
func (r *Reactor) acceptLoop() {
	for {
		connFd, sa, err := socket.AcceptNonblock(r.listenerFd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			r.handler.OnException(rerr.Wrap(rerr.ErrTransientAccept, os.NewSyscallError("accept4", err)))
			return
		}

		remote, err := endpoint.FromSockaddr(sa)
		if err != nil {
			_ = unix.Close(connFd)
			r.handler.OnException(err)
			continue
		}

		if r.opts.TCPKeepAliveSecs > 0 {
			if err := socket.SetKeepAlivePeriod(connFd, r.opts.TCPKeepAliveSecs); err != nil {
				rlog.Warn("set keepalive:", err)
			}
		}
		if r.opts.TCPNoDelay {
			if err := socket.SetNoDelay(connFd, true); err != nil {
				rlog.Warn("set nodelay:", err)
			}
		}

		if err := r.poller.AddRead(connFd); err != nil {
			_ = unix.Close(connFd)
			r.handler.OnException(rerr.Wrap(rerr.ErrRegisterFailed, err))
			continue
		}

		conn := newConnection(r, connFd, r.listenerEp, remote)
		r.conns[connFd] = newConnState(conn)
		r.handler.OnOpened(conn)
	}
}

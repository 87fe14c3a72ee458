// Package listener implements a bound, listening, non-blocking,
// close-on-exec TCP endpoint with SO_REUSEADDR, returned as a shared
// handle so both the reactor and the embedder can observe it.
package listener

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/fd"
	"github.com/corereactor/reactor/internal/rlog"
	"github.com/corereactor/reactor/internal/socket"
)

// Listener is a bound, listening, non-blocking TCP socket. It is a shared
// handle: both the Reactor (which registers it with the multiplexer) and
// the embedder (which may inspect Endpoint) hold a reference. Close is
// idempotent and safe to call from either side.
type Listener struct {
	once     sync.Once
	handle   fd.FD
	endpoint endpoint.Endpoint
	closeErr error
}

// Config collects the listener factory's inputs.
type Config struct {
	Endpoint endpoint.Endpoint
	Backlog  int // 0 selects the OS maximum.

	ReusePort        bool
	SocketRecvBuffer int
	SocketSendBuffer int
}

// New creates, binds, and listens a TCP socket per cfg. Failure at any step
// produces a ListenerSetupFailed error (via internal/socket.Listen).
func New(cfg Config) (*Listener, error) {
	var opts []socket.Option
	opts = append(opts, socket.ReuseAddr())
	if cfg.ReusePort {
		opts = append(opts, socket.ReusePort())
	}
	if cfg.SocketRecvBuffer > 0 {
		opts = append(opts, socket.RecvBuffer(cfg.SocketRecvBuffer))
	}
	if cfg.SocketSendBuffer > 0 {
		opts = append(opts, socket.SendBuffer(cfg.SocketSendBuffer))
	}

	rawFd, err := socket.Listen(cfg.Endpoint, cfg.Backlog, opts...)
	if err != nil {
		return nil, err
	}

	return &Listener{handle: fd.Wrap(rawFd), endpoint: cfg.Endpoint}, nil
}

// FD returns the raw descriptor, for registration with a Netpoller.
func (l *Listener) FD() int { return l.handle.Int() }

// Endpoint returns the bound (family, address, port).
func (l *Listener) Endpoint() endpoint.Endpoint { return l.endpoint }

// Close closes the underlying descriptor exactly once. Safe to call more
// than once; later calls observe the first call's result.
func (l *Listener) Close() error {
	l.once.Do(func() {
		v := l.handle.Take()
		if v < 0 {
			return
		}
		if err := unix.Close(v); err != nil {
			l.closeErr = os.NewSyscallError("close", err)
			rlog.Error("listener close:", l.closeErr)
			return
		}
		rlog.Debug("listener closed", l.endpoint.String())
	})
	return l.closeErr
}

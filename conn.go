package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/fd"
)

// Connection represents one accepted descriptor together with its local
// and remote endpoints and an open flag. Created by the reactor on
// successful accept, destroyed when the reactor removes it from the
// connection table. Shared by pointer between the reactor's table and
// embedder callbacks; the embedder must not retain a *Connection past
// OnClosed.
type Connection struct {
	handle fd.FD
	local  endpoint.Endpoint
	remote endpoint.Endpoint
	open   bool
	ctx    any

	r *Reactor
}

func newConnection(r *Reactor, rawFd int, local, remote endpoint.Endpoint) *Connection {
	return &Connection{handle: fd.Wrap(rawFd), local: local, remote: remote, open: true, r: r}
}

// FD returns the raw descriptor, used by the reactor as the connection
// table key.
func (c *Connection) FD() int { return c.handle.Int() }

// LocalAddr and RemoteAddr report the endpoints recorded at accept time.
func (c *Connection) LocalAddr() endpoint.Endpoint  { return c.local }
func (c *Connection) RemoteAddr() endpoint.Endpoint { return c.remote }

// Open reports whether the connection is still registered with the
// reactor. It flips to false just before on_closed is invoked.
func (c *Connection) Open() bool { return c.open }

// Context returns the embedder-supplied value set via SetContext, or nil.
func (c *Connection) Context() any { return c.ctx }

// SetContext attaches an arbitrary value to the connection, for embedder
// bookkeeping between callbacks.
func (c *Connection) SetContext(ctx any) { c.ctx = ctx }

// Send appends bytes to the connection's output queue and rearms the
// multiplexer to observe write-readiness. Safe to call from any
// goroutine: if called off the I/O goroutine it is marshaled onto it
// through the reactor's urgent task queue (see Reactor.Send).
func (c *Connection) Send(b []byte) {
	c.r.Send(c, b)
}

// Close marks the connection for deferred close: queued bytes are still
// flushed before the descriptor closes. Safe to call from any goroutine;
// idempotent.
func (c *Connection) Close() {
	c.r.Close(c)
}

// rawSend issues a single non-blocking send. The Go runtime ignores
// SIGPIPE on sockets by default, so a write to a reset peer surfaces as
// EPIPE rather than terminating the process. Used only by the reactor's
// write-flush path.
func (c *Connection) rawSend(b []byte) (int, error) {
	return unix.Write(c.handle.Int(), b)
}

// rawRecv issues a single non-blocking recv into buf. Used only by the
// reactor's read-drain path.
func (c *Connection) rawRecv(buf []byte) (int, error) {
	return unix.Read(c.handle.Int(), buf)
}

// rawClose closes the underlying descriptor. Called exactly once, by the
// reactor's closeAndErase, after OnClosed returns.
func (c *Connection) rawClose() error {
	v := c.handle.Take()
	if v < 0 {
		return nil
	}
	return unix.Close(v)
}

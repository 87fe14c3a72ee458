// Package reactor implements a reusable, high-concurrency TCP server
// runtime around an edge-triggered readiness multiplexer: a single I/O
// thread that accepts connections, drains inbound bytes as they arrive,
// and queues outbound bytes for asynchronous, backpressure-aware delivery.
// Application logic is supplied through the EventHandler callback surface.
package reactor

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/internal/netpoll"
	"github.com/corereactor/reactor/internal/rerr"
	"github.com/corereactor/reactor/internal/rlog"
	"github.com/corereactor/reactor/internal/taskqueue"
	"github.com/corereactor/reactor/listener"
)

// Reactor owns the readiness multiplexer, the listener, the
// per-connection table, and the embedder callbacks. It runs entirely on
// one goroutine once Run is called. Stop, Send, Close and CloseFD are safe
// to call from any goroutine; Send, Close and CloseFD marshal onto the
// Run goroutine.
type Reactor struct {
	poller      netpoll.Netpoller
	ln          *listener.Listener
	listenerFd  int
	listenerEp  endpoint.Endpoint
	hasListener bool

	conns   map[int]*connState
	handler EventHandler
	opts    *Options

	readBuf []byte

	tasks *taskqueue.Queue

	stopFlag atomic.Bool
}

// New constructs a Reactor: raises the process descriptor limit
// (non-fatal on failure), creates the multiplexer with close-on-exec, and
// allocates the initial event batch. Fails with ErrInitFailed iff the
// multiplexer cannot be created.
func New(handler EventHandler, opts ...OptionFunc) (*Reactor, error) {
	o := loadOptions(opts...)

	if o.MaxFDs > 0 {
		if err := raiseNoFileLimit(o.MaxFDs); err != nil {
			rlog.Warn("raise RLIMIT_NOFILE:", err)
		}
	}

	var p netpoll.Netpoller
	switch o.Poller {
	case PollerSelect:
		p = netpoll.NewSelecter()
	default:
		p = netpoll.NewEpoller()
	}
	if err := p.Init(o.EventBatchCap); err != nil {
		return nil, rerr.Wrap(rerr.ErrInitFailed, err)
	}

	return &Reactor{
		poller:  p,
		conns:   make(map[int]*connState),
		handler: handler,
		opts:    o,
		readBuf: make([]byte, o.ReadBufferCap),
		tasks:   taskqueue.New(),
	}, nil
}

// raiseNoFileLimit raises RLIMIT_NOFILE's soft limit to n, capped at the
// hard limit. A soft limit already at or above that value is left as is.
func raiseNoFileLimit(n uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return os.NewSyscallError("getrlimit", err)
	}
	want := n
	if rl.Max > 0 && want > rl.Max {
		want = rl.Max
	}
	if want <= rl.Cur {
		return nil
	}
	rl.Cur = want
	return os.NewSyscallError("setrlimit", unix.Setrlimit(unix.RLIMIT_NOFILE, &rl))
}

// Listen creates a listening socket for ep using the reactor's own
// Backlog, SocketRecvBuffer, and SocketSendBuffer options, and registers
// it. At most one listener per reactor.
func (r *Reactor) Listen(ep endpoint.Endpoint) (*listener.Listener, error) {
	l, err := listener.New(listener.Config{
		Endpoint:         ep,
		Backlog:          r.opts.Backlog,
		SocketRecvBuffer: r.opts.SocketRecvBuffer,
		SocketSendBuffer: r.opts.SocketSendBuffer,
	})
	if err != nil {
		return nil, err
	}
	if err := r.RegisterListener(l); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// RegisterListener registers l's descriptor with the multiplexer for
// read-readiness in edge-triggered mode. At most one listener per
// reactor. Use this instead of Listen when the embedder needs to build
// its own listener.Config (e.g. to set ReusePort).
func (r *Reactor) RegisterListener(l *listener.Listener) error {
	if r.hasListener {
		return rerr.Wrap(rerr.ErrRegisterFailed, fmt.Errorf("reactor: listener already registered"))
	}
	if err := r.poller.AddRead(l.FD()); err != nil {
		return rerr.Wrap(rerr.ErrRegisterFailed, err)
	}
	r.ln = l
	r.listenerFd = l.FD()
	r.listenerEp = l.Endpoint()
	r.hasListener = true
	return nil
}

// Destroy releases the listener, if one was registered, and the
// multiplexer. Call after Run returns.
func (r *Reactor) Destroy() error {
	if r.hasListener {
		if err := r.ln.Close(); err != nil {
			rlog.Warn("close listener:", err)
		}
	}
	return r.poller.Close()
}

// Stop sets the atomic stop flag and wakes a blocked wait. Safe to call
// from a signal handler or any goroutine; idempotent.
func (r *Reactor) Stop() {
	if r.stopFlag.CompareAndSwap(false, true) {
		if err := r.poller.Wake(); err != nil {
			rlog.Warn("wake on stop:", err)
		}
	}
}

// Send appends b to c's output queue and rearms the multiplexer for
// write-readiness. Safe to call from any goroutine: every call is
// marshaled onto the I/O thread through the urgent task queue.
func (r *Reactor) Send(c *Connection, b []byte) {
	if len(b) == 0 {
		return
	}
	cp := append([]byte(nil), b...)
	r.enqueueTask(func() { r.doSend(c.FD(), cp) })
}

// Close marks c for deferred close: any bytes already queued for it are
// still flushed before the descriptor closes.
func (r *Reactor) Close(c *Connection) {
	r.enqueueTask(func() { r.doClose(c.FD()) })
}

// CloseFD is Close by raw descriptor, for embedders that track fds
// directly instead of retaining *Connection values.
func (r *Reactor) CloseFD(fd int) {
	r.enqueueTask(func() { r.doClose(fd) })
}

func (r *Reactor) enqueueTask(t taskqueue.Task) {
	r.tasks.Enqueue(t)
	if err := r.poller.Wake(); err != nil {
		rlog.Warn("wake on task enqueue:", err)
	}
}

func (r *Reactor) drainTasks() {
	for {
		t := r.tasks.Dequeue()
		if t == nil {
			return
		}
		t()
	}
}

func (r *Reactor) doSend(fd int, b []byte) {
	st, ok := r.conns[fd]
	if !ok || st.wantClose {
		return
	}
	st.outq.Add(bufferFromBytes(b))
	r.rearmForWrite(st)
}

func (r *Reactor) doClose(fd int) {
	st, ok := r.conns[fd]
	if !ok {
		// The descriptor was already erased (e.g. the peer closed first);
		// nothing to do.
		return
	}
	if st.wantClose {
		return // idempotent: already scheduled.
	}
	st.wantClose = true
	if !st.wantWrite {
		r.closeAndErase(fd, nil)
	}
}

func (r *Reactor) scheduleClose(st *connState) {
	st.wantClose = true
}

func (r *Reactor) rearmForWrite(st *connState) {
	if !st.wantWrite {
		st.wantWrite = true
		if err := r.poller.ModReadWrite(st.conn.FD()); err != nil {
			r.handler.OnException(rerr.Wrap(rerr.ErrRegisterFailed, err))
		}
	}
}

func (r *Reactor) rearmForReadOnly(st *connState) {
	if st.wantWrite {
		st.wantWrite = false
		if err := r.poller.ModRead(st.conn.FD()); err != nil {
			r.handler.OnException(rerr.Wrap(rerr.ErrRegisterFailed, err))
		}
	}
}

// closeAndErase removes fd from the multiplexer and the connection table,
// invokes OnClosed, and then closes the descriptor. OnClosed fires before
// the descriptor is actually closed, so an embedder's callback still sees
// a valid fd number if it needs to log or compare it, though the
// connection is no longer usable by that point.
func (r *Reactor) closeAndErase(fd int, closeErr error) {
	st, ok := r.conns[fd]
	if !ok {
		return
	}
	delete(r.conns, fd)
	if err := r.poller.Remove(fd); err != nil {
		rlog.Warn("remove fd from poller:", err)
	}
	st.conn.open = false
	r.handler.OnClosed(st.conn, closeErr)
	if err := st.conn.rawClose(); err != nil {
		rlog.Warn("close fd:", err)
	}
}

package reactor

// Poller selects which Netpoller implementation backs a Reactor.
type Poller int

const (
	// PollerEpoll is the default: Linux epoll, edge-triggered.
	PollerEpoll Poller = iota
	// PollerSelect is the select(2)-backed fallback, for environments
	// where epoll_create1 is unavailable.
	PollerSelect
)

// Options configures a Reactor. Construct via loadOptions; zero value is
// not meant to be used directly.
type Options struct {
	// MaxFDs is the process descriptor-limit hint raised at construction.
	// 0 leaves the process limit untouched.
	MaxFDs uint64

	// Backlog is the listen backlog used by Reactor.Listen. 0 selects the
	// OS maximum. Has no effect on a listener registered directly via
	// RegisterListener.
	Backlog int

	// ReadBufferCap sizes the per-read staging buffer used by read_drain.
	ReadBufferCap int

	// EventBatchCap sizes the multiplexer's initial readiness batch
	// (doubles on saturation, never shrinks). Ignored by pollers with no
	// notion of a batch.
	EventBatchCap int

	// Poller selects the Netpoller implementation.
	Poller Poller

	// TCPNoDelay enables TCP_NODELAY on accepted sockets. Never applied to
	// the listener. Off by default.
	TCPNoDelay bool

	// TCPKeepAliveSecs enables SO_KEEPALIVE with this idle/probe interval,
	// in seconds, on accepted sockets when > 0.
	TCPKeepAliveSecs int

	// SocketRecvBuffer and SocketSendBuffer set SO_RCVBUF/SO_SNDBUF on a
	// listener created via Reactor.Listen, before bind. Have no effect on
	// a listener registered directly via RegisterListener.
	SocketRecvBuffer int
	SocketSendBuffer int

	// ForceCloseAfter, if > 0, force-closes a connection once this many
	// dispatches have reported an error or hangup while its outq still
	// awaited write-readiness, discarding unsent bytes. 0 disables the
	// grace period.
	ForceCloseAfter int
}

const (
	defaultReadBufferCap = 64 * 1024
	defaultEventBatchCap = 4096
)

func defaultOptions() *Options {
	return &Options{
		ReadBufferCap: defaultReadBufferCap,
		EventBatchCap: defaultEventBatchCap,
		Poller:        PollerEpoll,
	}
}

// OptionFunc mutates an Options in place.
type OptionFunc = func(*Options)

func loadOptions(opts ...OptionFunc) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMaxFDs raises RLIMIT_NOFILE to n at construction. Failure to raise
// it is logged and otherwise ignored.
func WithMaxFDs(n uint64) OptionFunc {
	return func(o *Options) { o.MaxFDs = n }
}

// WithBacklog sets the listen backlog used by Reactor.Listen. Has no
// effect on a listener registered directly via RegisterListener.
func WithBacklog(n int) OptionFunc {
	return func(o *Options) { o.Backlog = n }
}

func WithReadBufferCap(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.ReadBufferCap = n
		}
	}
}

// WithEventBatchCap sizes the multiplexer's initial readiness batch.
// Ignored by the select-backed poller, which has no notion of a batch.
func WithEventBatchCap(n int) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.EventBatchCap = n
		}
	}
}

func WithPoller(p Poller) OptionFunc {
	return func(o *Options) { o.Poller = p }
}

func WithTCPNoDelay(enable bool) OptionFunc {
	return func(o *Options) { o.TCPNoDelay = enable }
}

func WithTCPKeepAlive(secs int) OptionFunc {
	return func(o *Options) { o.TCPKeepAliveSecs = secs }
}

// WithSocketRecvBuffer sets SO_RCVBUF on a listener created via
// Reactor.Listen.
func WithSocketRecvBuffer(n int) OptionFunc {
	return func(o *Options) { o.SocketRecvBuffer = n }
}

// WithSocketSendBuffer sets SO_SNDBUF on a listener created via
// Reactor.Listen.
func WithSocketSendBuffer(n int) OptionFunc {
	return func(o *Options) { o.SocketSendBuffer = n }
}

func WithForceCloseAfter(iterations int) OptionFunc {
	return func(o *Options) { o.ForceCloseAfter = iterations }
}

package reactor

// EventHandler is the capability interface an embedder supplies to a
// Reactor. Every method is invoked synchronously on the reactor's single
// I/O goroutine; none may block. Callbacks report outcomes by calling
// Connection.Send, Connection.Close, or Reactor.Stop directly, rather
// than through a return value.
type EventHandler interface {
	// OnListenSuccess fires once, before the first multiplexer wait.
	OnListenSuccess()

	// OnShutdownSuccess fires once, after the loop exits, before run
	// returns.
	OnShutdownSuccess()

	// OnWaitingForActivity fires each loop iteration before the
	// multiplexer wait. Must not block; used for idle housekeeping.
	OnWaitingForActivity()

	// OnOpened fires once per connection, after accept succeeds and the
	// descriptor is registered with the multiplexer, before any OnMessage
	// for that connection.
	OnOpened(c *Connection)

	// OnMessage fires for each non-empty chunk returned by recv. b is a
	// read-only view valid only for the duration of the call; the
	// embedder must copy anything it needs to retain.
	OnMessage(c *Connection, b []byte)

	// OnClosed fires once per connection, after it is removed from the
	// multiplexer and the connection table, before its descriptor is
	// closed.
	OnClosed(c *Connection, err error)

	// OnException fires on recoverable errors or a fatal multiplexer
	// error. Advisory: the reactor decides on its own whether to continue.
	OnException(err error)
}

// BaseHandler implements EventHandler with no-ops, so an embedder can
// embed it and override only the callbacks it cares about.
type BaseHandler struct{}

func (BaseHandler) OnListenSuccess()              {}
func (BaseHandler) OnShutdownSuccess()            {}
func (BaseHandler) OnWaitingForActivity()         {}
func (BaseHandler) OnOpened(*Connection)          {}
func (BaseHandler) OnMessage(*Connection, []byte) {}
func (BaseHandler) OnClosed(*Connection, error)   {}
func (BaseHandler) OnException(error)             {}

var _ EventHandler = BaseHandler{}

package reactor

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/listener"
)

// testHandler records callback invocations for assertions and optionally
// runs a per-test hook on each one, so each scenario can assert its own
// sequence.
type testHandler struct {
	BaseHandler

	mu          sync.Mutex
	opened      []*Connection
	closed      []*Connection
	message     func(c *Connection, b []byte)
	onOpenHook  func(c *Connection)
	onCloseHook func(c *Connection, err error)
}

func (h *testHandler) OnOpened(c *Connection) {
	h.mu.Lock()
	h.opened = append(h.opened, c)
	h.mu.Unlock()
	if h.onOpenHook != nil {
		h.onOpenHook(c)
	}
}

func (h *testHandler) OnMessage(c *Connection, b []byte) {
	if h.message != nil {
		h.message(c, b)
	}
}

func (h *testHandler) OnClosed(c *Connection, err error) {
	h.mu.Lock()
	h.closed = append(h.closed, c)
	h.mu.Unlock()
	if h.onCloseHook != nil {
		h.onCloseHook(c, err)
	}
}

func startReactor(t *testing.T, handler EventHandler, port int, opts ...OptionFunc) (*Reactor, string) {
	t.Helper()

	ep, err := endpoint.New(endpoint.IPv4, "127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := listener.New(listener.Config{Endpoint: ep, Backlog: 128})
	if err != nil {
		t.Fatalf("listener.New: %v", err)
	}

	r, err := New(handler, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.RegisterListener(ln); err != nil {
		t.Fatalf("RegisterListener: %v", err)
	}

	go func() {
		_ = r.Run(200)
		_ = r.Destroy()
	}()

	return r, ep.String()
}

func TestEchoRoundTrip(t *testing.T) {
	h := &testHandler{}
	h.message = func(c *Connection, b []byte) {
		c.Send(b)
	}

	r, addr := startReactor(t, h, 18180)
	defer r.Stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(buf) != "ping\n" {
		t.Fatalf("got %q, want %q", buf, "ping\n")
	}
}

func TestBackpressurePreservesOrder(t *testing.T) {
	const chunkSize = 1 << 20
	const chunks = 10

	h := &testHandler{}
	opened := make(chan *Connection, 1)
	h.onOpenHook = func(c *Connection) { opened <- c }

	r, addr := startReactor(t, h, 18181)
	defer r.Stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := <-opened
	var want []byte
	for i := 0; i < chunks; i++ {
		chunk := make([]byte, chunkSize)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		want = append(want, chunk...)
		c.Send(chunk)
	}

	got := make([]byte, 0, chunkSize*chunks)
	buf := make([]byte, 64*1024)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for len(got) < len(want) {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v (got %d of %d bytes)", err, len(got), len(want))
		}
		got = append(got, buf[:n]...)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d (order not preserved)", i, got[i], want[i])
		}
	}
}

func TestDeferredCloseFlushesPendingWrites(t *testing.T) {
	const size = 64 * 1024

	h := &testHandler{}
	opened := make(chan *Connection, 1)
	h.onOpenHook = func(c *Connection) { opened <- c }

	r, addr := startReactor(t, h, 18182)
	defer r.Stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := <-opened
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}
	c.Send(payload)
	c.Close()

	got := make([]byte, 0, size)
	buf := make([]byte, 8192)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(got) < size {
		n, err := conn.Read(buf)
		if n > 0 {
			got = append(got, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	if len(got) != size {
		t.Fatalf("got %d bytes, want %d", len(got), size)
	}
}

func TestAbruptPeerReset(t *testing.T) {
	h := &testHandler{}
	closedCh := make(chan error, 1)
	h.onCloseHook = func(c *Connection, err error) { closedCh <- err }

	r, addr := startReactor(t, h, 18183)
	defer r.Stop()

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetLinger(0)
	_ = conn.Close()

	select {
	case <-closedCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for on_closed after abrupt reset")
	}
}

func TestGracefulShutdown(t *testing.T) {
	h := &testHandler{}
	r, addr := startReactor(t, h, 18184)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	r.Stop()
	r.Stop() // idempotent

	time.Sleep(300 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.opened) == 0 {
		t.Fatal("expected at least one OnOpened before shutdown")
	}
	if len(h.closed) != len(h.opened) {
		t.Fatalf("expected every opened connection to be closed by shutdown, opened=%d closed=%d", len(h.opened), len(h.closed))
	}
}

func TestAcceptStorm(t *testing.T) {
	const n = 200

	var mu sync.Mutex
	received := make(map[*Connection][]byte)

	h := &testHandler{}
	h.message = func(c *Connection, b []byte) {
		mu.Lock()
		received[c] = append(received[c], b...)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	h.onCloseHook = func(c *Connection, err error) { wg.Done() }
	wg.Add(n)

	r, addr := startReactor(t, h, 18185)
	defer r.Stop()

	for i := 0; i < n; i++ {
		go func() {
			conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
			if err != nil {
				wg.Done()
				return
			}
			_, _ = conn.Write([]byte("abcd"))
			_ = conn.Close()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for all connections to close")
	}

	h.mu.Lock()
	opened, closed := len(h.opened), len(h.closed)
	h.mu.Unlock()
	if opened != n || closed != n {
		t.Fatalf("opened=%d closed=%d, want %d each", opened, closed, n)
	}

	mu.Lock()
	defer mu.Unlock()
	for c, b := range received {
		if string(b) != "abcd" {
			t.Fatalf("connection %v: got %q, want %q", c, b, "abcd")
		}
	}
}

// Package socket implements TCP socket creation, SO_REUSEADDR/non-blocking/
// close-on-exec setup, bind, and listen, plus the socket-option helpers
// (keepalive and TCP_NODELAY for accepted connections, buffer sizing for
// the listener before bind).
package socket

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/endpoint"
	"github.com/corereactor/reactor/internal/rerr"
)

// BacklogMax reports the OS-configured maximum listen backlog
// (/proc/sys/net/core/somaxconn on Linux), falling back to SOMAXCONN.
func BacklogMax() int {
	f, err := os.Open("/proc/sys/net/core/somaxconn")
	if err != nil {
		return unix.SOMAXCONN
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return unix.SOMAXCONN
	}
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return unix.SOMAXCONN
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n == 0 {
		return unix.SOMAXCONN
	}
	return n
}

// Option configures a listening socket before bind.
type Option struct {
	Apply func(fd int) error
}

func ReuseAddr() Option {
	return Option{Apply: func(fd int) error { return setInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1) }}
}

func ReusePort() Option {
	return Option{Apply: func(fd int) error { return setInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1) }}
}

func NoDelay() Option {
	return Option{Apply: func(fd int) error { return setInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1) }}
}

func RecvBuffer(size int) Option {
	return Option{Apply: func(fd int) error { return setInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size) }}
}

func SendBuffer(size int) Option {
	return Option{Apply: func(fd int) error { return setInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size) }}
}

func setInt(fd, level, opt, value int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, level, opt, value))
}

// Listen creates, configures, binds, and listens a TCP socket for ep with
// the given backlog (0 selects BacklogMax()). The returned fd is
// non-blocking and close-on-exec.
func Listen(ep endpoint.Endpoint, backlog int, opts ...Option) (fd int, err error) {
	domain := unix.AF_INET
	if ep.Family() == endpoint.IPv6 {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, rerr.Wrap(rerr.ErrListenerSetupFailed, os.NewSyscallError("socket", err))
	}

	for _, opt := range opts {
		if err = opt.Apply(fd); err != nil {
			_ = unix.Close(fd)
			return -1, rerr.Wrap(rerr.ErrListenerSetupFailed, err)
		}
	}

	sa, err := ep.Sockaddr()
	if err != nil {
		_ = unix.Close(fd)
		return -1, rerr.Wrap(rerr.ErrListenerSetupFailed, err)
	}

	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, rerr.Wrap(rerr.ErrListenerSetupFailed, os.NewSyscallError("bind", err))
	}

	if backlog <= 0 {
		backlog = BacklogMax()
	}
	if err = unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, rerr.Wrap(rerr.ErrListenerSetupFailed, os.NewSyscallError("listen", err))
	}

	return fd, nil
}

// AcceptNonblock performs a non-blocking accept4 with SOCK_NONBLOCK and
// SOCK_CLOEXEC set atomically on the returned descriptor, avoiding the
// race a separate fcntl(F_SETFL)/ioctl(FIOCLEX) step would have between
// accept and the flag becoming effective.
func AcceptNonblock(listenerFd int) (connFd int, remote unix.Sockaddr, err error) {
	return unix.Accept4(listenerFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}

// SetKeepAlivePeriod enables TCP keepalive on fd with the given interval in
// seconds for both the idle and probe-retry periods.
func SetKeepAlivePeriod(fd int, secs int) error {
	if secs <= 0 {
		return rerr.Wrap(rerr.ErrConnectionIO, os.ErrInvalid)
	}
	if err := setInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if err := setInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return err
	}
	return setInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs)
}

// SetNoDelay toggles TCP_NODELAY on an already-accepted connection socket.
// Never applied to the listener.
func SetNoDelay(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return setInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/internal/rlog"
)

// Epoller is the default Netpoller, backed by Linux epoll. It maintains
// its own wakeup descriptor (an eventfd) registered for read-readiness
// alongside the fds the caller adds, so Wake can interrupt a blocked Wait
// from any goroutine.
type Epoller struct {
	epfd      int
	wakeFd    int
	wakeBuf   [8]byte
	eventsBuf []unix.EpollEvent
	out       []Event
}

// NewEpoller returns an uninitialized Epoller; call Init before use.
func NewEpoller() *Epoller {
	return &Epoller{epfd: -1, wakeFd: -1}
}

func (e *Epoller) Init(eventBatchCap int) error {
	if eventBatchCap <= 0 {
		eventBatchCap = initialBatchCap
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return os.NewSyscallError("epoll_create1", err)
	}
	e.epfd = epfd

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(e.epfd)
		return os.NewSyscallError("eventfd", err)
	}
	e.wakeFd = wakeFd

	if err := e.AddRead(e.wakeFd); err != nil {
		_ = unix.Close(e.epfd)
		_ = unix.Close(e.wakeFd)
		return err
	}

	e.eventsBuf = make([]unix.EpollEvent, eventBatchCap)
	e.out = make([]Event, 0, eventBatchCap)
	return nil
}

func (e *Epoller) ctl(op int, fd int, events uint32) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: events}
	if err := unix.EpollCtl(e.epfd, op, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (e *Epoller) AddRead(fd int) error      { return e.ctl(unix.EPOLL_CTL_ADD, fd, readEvents) }
func (e *Epoller) AddReadWrite(fd int) error { return e.ctl(unix.EPOLL_CTL_ADD, fd, readWriteEvents) }
func (e *Epoller) ModReadWrite(fd int) error { return e.ctl(unix.EPOLL_CTL_MOD, fd, readWriteEvents) }
func (e *Epoller) ModRead(fd int) error      { return e.ctl(unix.EPOLL_CTL_MOD, fd, readEvents) }

func (e *Epoller) Remove(fd int) error {
	return e.ctl(unix.EPOLL_CTL_DEL, fd, 0)
}

// Wait blocks for up to timeoutMs and returns the ready events. The event
// batch doubles, and never shrinks, whenever a call returns a full batch,
// so a burst of concurrent activity grows the batch to match instead of
// forcing repeated Wait calls to drain it.
func (e *Epoller) Wait(timeoutMs int) ([]Event, error) {
	for {
		n, err := unix.EpollWait(e.epfd, e.eventsBuf, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("epoll_wait", err)
		}

		saturated := n == len(e.eventsBuf)

		e.out = e.out[:0]
		for i := 0; i < n; i++ {
			fd := int(e.eventsBuf[i].Fd)
			if fd == e.wakeFd {
				_, _ = unix.Read(e.wakeFd, e.wakeBuf[:])
				continue
			}
			e.out = append(e.out, Event{Fd: fd, Flags: toPortable(e.eventsBuf[i].Events)})
		}

		if saturated {
			rlog.Warn("epoll event batch saturated, doubling capacity")
			e.eventsBuf = make([]unix.EpollEvent, len(e.eventsBuf)*2)
		}
		return e.out, nil
	}
}

var wakeToken = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

func (e *Epoller) Wake() error {
	_, err := unix.Write(e.wakeFd, wakeToken[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (e *Epoller) Close() error {
	err1 := unix.Close(e.epfd)
	err2 := unix.Close(e.wakeFd)
	if err1 != nil {
		return os.NewSyscallError("close", err1)
	}
	if err2 != nil {
		return os.NewSyscallError("close", err2)
	}
	return nil
}

var _ Netpoller = (*Epoller)(nil)

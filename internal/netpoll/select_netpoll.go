package netpoll

import (
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// Selecter is a supplemental Netpoller implementation backed by select(2),
// selectable via WithPoller(PollerSelect) for environments where
// epoll_create1 is unavailable. select(2) is level-triggered, but since
// the reactor always drains a descriptor to EAGAIN before returning to
// Wait, the distinction is invisible to it.
type Selecter struct {
	wakeFd  int
	wakeBuf [8]byte

	readFds  map[int]bool
	writeFds map[int]bool
}

// NewSelecter returns an uninitialized Selecter; call Init before use.
func NewSelecter() *Selecter {
	return &Selecter{wakeFd: -1, readFds: make(map[int]bool), writeFds: make(map[int]bool)}
}

// Init ignores eventBatchCap: select(2) has no notion of a growable batch.
func (s *Selecter) Init(eventBatchCap int) error {
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return os.NewSyscallError("eventfd", err)
	}
	s.wakeFd = wakeFd
	s.readFds[wakeFd] = true
	return nil
}

func (s *Selecter) AddRead(fd int) error {
	s.readFds[fd] = true
	delete(s.writeFds, fd)
	return nil
}

func (s *Selecter) AddReadWrite(fd int) error {
	s.readFds[fd] = true
	s.writeFds[fd] = true
	return nil
}

func (s *Selecter) ModReadWrite(fd int) error {
	s.readFds[fd] = true
	s.writeFds[fd] = true
	return nil
}

func (s *Selecter) ModRead(fd int) error {
	s.readFds[fd] = true
	delete(s.writeFds, fd)
	return nil
}

func (s *Selecter) Remove(fd int) error {
	delete(s.readFds, fd)
	delete(s.writeFds, fd)
	return nil
}

func fdSet(set *unix.FdSet, fd int) { set.Bits[fd/64] |= 1 << (uint(fd) % 64) }
func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// Wait rebuilds the fd sets and timeout on every attempt, including
// EINTR retries: select(2) overwrites its fd_set arguments in place with
// the ready subset, and on Linux also decrements the timeout to reflect
// time already slept, so reusing either across a retry would select on
// the wrong descriptors with the wrong remaining deadline.
func (s *Selecter) Wait(timeoutMs int) ([]Event, error) {
	for {
		var r, w unix.FdSet
		maxFd := s.wakeFd
		for fd := range s.readFds {
			fdSet(&r, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}
		for fd := range s.writeFds {
			fdSet(&w, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}

		var timeout *unix.Timeval
		if timeoutMs >= 0 {
			tv := unix.NsecToTimeval(int64(timeoutMs) * int64(1e6))
			timeout = &tv
		}

		n, err := unix.Select(maxFd+1, &r, &w, nil, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("select", err)
		}

		out := make([]Event, 0, n)
		if fdIsSet(&r, s.wakeFd) {
			_, _ = unix.Read(s.wakeFd, s.wakeBuf[:])
		}
		fds := make([]int, 0, len(s.readFds)+len(s.writeFds))
		seen := make(map[int]bool)
		for fd := range s.readFds {
			if fd != s.wakeFd && !seen[fd] {
				fds = append(fds, fd)
				seen[fd] = true
			}
		}
		for fd := range s.writeFds {
			if !seen[fd] {
				fds = append(fds, fd)
				seen[fd] = true
			}
		}
		sort.Ints(fds)
		for _, fd := range fds {
			var flags uint32
			if fdIsSet(&r, fd) {
				flags |= Read
			}
			if fdIsSet(&w, fd) {
				flags |= Write
			}
			if flags != 0 {
				out = append(out, Event{Fd: fd, Flags: flags})
			}
		}
		return out, nil
	}
}

func (s *Selecter) Wake() error {
	_, err := unix.Write(s.wakeFd, wakeToken[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (s *Selecter) Close() error {
	if err := unix.Close(s.wakeFd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

var _ Netpoller = (*Selecter)(nil)

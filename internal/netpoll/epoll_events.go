package netpoll

import "golang.org/x/sys/unix"

// Edge-triggered mode reports each state transition exactly once; the
// reactor must drain a descriptor until the kernel reports "would block"
// before returning to Wait, or it loses the next notification.

const (
	// errEvents are delivered by the kernel regardless of the requested
	// mask, except EPOLLRDHUP, which must be requested explicitly to make
	// a half-closed peer visible without waiting on a subsequent recv() to
	// discover it — so every mask below includes it.
	errEvents = unix.EPOLLRDHUP

	readEvents      = unix.EPOLLPRI | unix.EPOLLIN | unix.EPOLLET | errEvents
	writeEvents     = unix.EPOLLOUT | unix.EPOLLET | errEvents
	readWriteEvents = readEvents | writeEvents
)

const initialBatchCap = 4096

func toPortable(ev uint32) uint32 {
	var flags uint32
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		flags |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		flags |= Write
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		flags |= Hangup
	}
	if ev&unix.EPOLLERR != 0 {
		flags |= Err
	}
	return flags
}

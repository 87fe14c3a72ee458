// Package rio wraps the scatter-gather write syscall used to send several
// queued output chunks in a single call instead of one send() per chunk.
package rio

import "golang.org/x/sys/unix"

// Writev writes iov's chunks as a single gather-write. Returns the total
// number of bytes written, which may be less than the sum of chunk lengths
// on a partial write.
func Writev(fd int, iov [][]byte) (int, error) {
	if len(iov) == 0 {
		return 0, nil
	}
	return unix.Writev(fd, iov)
}

// Package bytebuf implements a growable, binary-safe byte container with
// append, size, clear, and copy-out operations. It backs the reactor's
// per-connection output queue chunks.
package bytebuf

// Buffer is a growable byte container. The zero value is an empty, usable
// buffer. Unlike a bytes.Buffer it exposes no reader cursor: it is purely
// an accumulate/snapshot/clear container.
type Buffer struct {
	data []byte
}

// New returns a Buffer pre-sized to hold at least capHint bytes without
// reallocating.
func New(capHint int) *Buffer {
	if capHint < 0 {
		capHint = 0
	}
	return &Buffer{data: make([]byte, 0, capHint)}
}

// FromBytes wraps a copy of b in a new Buffer.
func FromBytes(b []byte) *Buffer {
	buf := &Buffer{data: make([]byte, len(b))}
	copy(buf.data, b)
	return buf
}

// Append copies b onto the end of the buffer. May contain NUL bytes;
// the buffer is binary-safe.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int { return len(b.data) }

// Empty reports whether the buffer holds no bytes.
func (b *Buffer) Empty() bool { return len(b.data) == 0 }

// Clear discards all stored bytes but keeps the underlying array for reuse.
func (b *Buffer) Clear() { b.data = b.data[:0] }

// Bytes returns the buffer's contents as a byte slice. The slice aliases
// the buffer's internal storage and is only valid until the next mutating
// call.
func (b *Buffer) Bytes() []byte { return b.data }

// String copies the buffer's contents out as a string, independent of
// subsequent mutation of the buffer.
func (b *Buffer) String() string { return string(b.data) }

// TrimPrefix discards the first n bytes, shifting the remainder down. Used
// by the write-flush path to record a partial send.
func (b *Buffer) TrimPrefix(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.data) {
		b.Clear()
		return
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
}

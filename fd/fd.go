// Package fd is a move-only descriptor handle: a thin wrapper over a raw
// OS file descriptor that carries no close-on-drop behavior of its own.
// Ownership transfers by value; Take invalidates the source so a
// descriptor is never accidentally held by two owners at once. The
// reactor, not this type, is responsible for calling unix.Close.
package fd

const invalidValue = -1

// FD wraps a raw descriptor value. Construct one with Wrap or Invalid;
// the zero value wraps fd 0, a valid descriptor, so it is not a safe
// substitute for Invalid().
type FD struct {
	v int
}

// Wrap returns an FD owning v. v must be a valid descriptor or invalidValue.
func Wrap(v int) FD { return FD{v: v} }

// Invalid returns an FD that owns nothing.
func Invalid() FD { return FD{v: invalidValue} }

// Int returns the raw descriptor value, valid or not.
func (d FD) Int() int { return d.v }

// Valid reports whether d currently owns a descriptor.
func (d FD) Valid() bool { return d.v != invalidValue }

// Take returns the raw descriptor value and invalidates d, transferring
// ownership to the caller. Calling Take twice on the same FD returns
// invalidValue the second time.
func (d *FD) Take() int {
	v := d.v
	d.v = invalidValue
	return v
}

// Equal reports whether d and other wrap the same descriptor value.
func (d FD) Equal(other FD) bool { return d.v == other.v }

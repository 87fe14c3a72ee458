// Package endpoint implements a validated (family, address, port) value:
// an immutable triple that can materialize the kernel address structure
// used by bind/connect/accept on demand.
package endpoint

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/corereactor/reactor/internal/rerr"
)

// Family is the address family of an Endpoint.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Endpoint is an immutable (family, address, port) triple. address is a
// textual literal; construction does not validate that it parses as a
// well-formed IP — that responsibility belongs to the caller, and is
// enforced lazily by Sockaddr. port is validated to lie in [1, 65535].
type Endpoint struct {
	family  Family
	address string
	port    int
}

// New validates port and family and returns the resulting Endpoint.
func New(family Family, address string, port int) (Endpoint, error) {
	if port < 1 || port > 65535 {
		return Endpoint{}, rerr.Wrap(rerr.ErrInvalidPort, nil)
	}
	if family != IPv4 && family != IPv6 {
		return Endpoint{}, rerr.Wrap(rerr.ErrInvalidFamily, nil)
	}
	return Endpoint{family: family, address: address, port: port}, nil
}

func (e Endpoint) Family() Family  { return e.family }
func (e Endpoint) Address() string { return e.address }
func (e Endpoint) Port() int       { return e.port }

func (e Endpoint) String() string {
	return net.JoinHostPort(e.address, strconv.Itoa(e.port))
}

// Sockaddr materializes the kernel address structure for this Endpoint.
// The structure's concrete type depends on Family: SockaddrInet4 for IPv4,
// SockaddrInet6 for IPv6.
func (e Endpoint) Sockaddr() (unix.Sockaddr, error) {
	ip := net.ParseIP(e.address)
	if ip == nil {
		if e.address == "" {
			ip = net.IPv4zero
		} else {
			return nil, rerr.Wrap(rerr.ErrInvalidFamily, &net.AddrError{Err: "unparsable address", Addr: e.address})
		}
	}
	switch e.family {
	case IPv4:
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, rerr.Wrap(rerr.ErrInvalidFamily, &net.AddrError{Err: "non-IPv4 address", Addr: e.address})
		}
		var sa unix.SockaddrInet4
		sa.Port = e.port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	case IPv6:
		ip6 := ip.To16()
		if ip6 == nil {
			return nil, rerr.Wrap(rerr.ErrInvalidFamily, &net.AddrError{Err: "non-IPv6 address", Addr: e.address})
		}
		var sa unix.SockaddrInet6
		sa.Port = e.port
		copy(sa.Addr[:], ip6)
		return &sa, nil
	default:
		return nil, rerr.Wrap(rerr.ErrInvalidFamily, nil)
	}
}

// FromSockaddr decodes a kernel address structure (as returned by accept)
// back into an Endpoint value, the inverse of Sockaddr.
func FromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(sa.Addr[:])
		return Endpoint{family: IPv4, address: ip.String(), port: sa.Port}, nil
	case *unix.SockaddrInet6:
		ip := net.IP(sa.Addr[:])
		return Endpoint{family: IPv6, address: ip.String(), port: sa.Port}, nil
	default:
		return Endpoint{}, rerr.Wrap(rerr.ErrInvalidFamily, nil)
	}
}

package listener

import (
	"testing"

	"github.com/corereactor/reactor/endpoint"
)

func TestNewBindsEphemeralPort(t *testing.T) {
	ep, err := endpoint.New(endpoint.IPv4, "127.0.0.1", 18098)
	if err != nil {
		t.Fatal(err)
	}

	l, err := New(Config{Endpoint: ep, Backlog: 16})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	if l.FD() < 0 {
		t.Fatal("expected a valid fd")
	}
}

func TestCloseIdempotent(t *testing.T) {
	ep, err := endpoint.New(endpoint.IPv4, "127.0.0.1", 18099)
	if err != nil {
		t.Fatal(err)
	}
	l, err := New(Config{Endpoint: ep, Backlog: 16})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

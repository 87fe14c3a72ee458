package bytebuf

import "testing"

func TestAppendAndString(t *testing.T) {
	b := New(0)
	b.Append([]byte("ping"))
	b.Append([]byte("\n"))
	if got := b.String(); got != "ping\n" {
		t.Fatalf("got %q", got)
	}
	if b.Len() != 5 {
		t.Fatalf("len = %d", b.Len())
	}
}

func TestBinarySafe(t *testing.T) {
	b := New(0)
	b.Append([]byte{0x00, 0x01, 0x00})
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	if b.Bytes()[0] != 0 || b.Bytes()[2] != 0 {
		t.Fatalf("NUL bytes lost: %v", b.Bytes())
	}
}

func TestClear(t *testing.T) {
	b := New(0)
	b.Append([]byte("abc"))
	b.Clear()
	if !b.Empty() {
		t.Fatalf("want empty after Clear, got %q", b.String())
	}
}

func TestTrimPrefix(t *testing.T) {
	b := New(0)
	b.Append([]byte("hello world"))
	b.TrimPrefix(6)
	if got := b.String(); got != "world" {
		t.Fatalf("got %q", got)
	}
	b.TrimPrefix(100)
	if !b.Empty() {
		t.Fatalf("want empty after over-trim, got %q", b.String())
	}
}

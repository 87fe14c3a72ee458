package fd

import "testing"

func TestInvalidByDefault(t *testing.T) {
	var d FD
	if d.Valid() {
		t.Fatal("zero value FD should be invalid")
	}
}

func TestWrapValid(t *testing.T) {
	d := Wrap(42)
	if !d.Valid() || d.Int() != 42 {
		t.Fatalf("got %+v, want valid(42)", d)
	}
}

func TestTakeInvalidatesSource(t *testing.T) {
	d := Wrap(7)
	v := d.Take()
	if v != 7 {
		t.Fatalf("Take() = %d, want 7", v)
	}
	if d.Valid() {
		t.Fatal("source should be invalid after Take")
	}
	if d.Take() != invalidValue {
		t.Fatal("second Take should yield invalidValue")
	}
}

func TestEqual(t *testing.T) {
	if !Wrap(5).Equal(Wrap(5)) {
		t.Fatal("equal descriptors should compare equal")
	}
	if Wrap(5).Equal(Wrap(6)) {
		t.Fatal("distinct descriptors should not compare equal")
	}
}

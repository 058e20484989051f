package transport

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestAnyUnboundReturnsInvalidHandle(t *testing.T) {
	var a Any
	if a.Bound() {
		t.Fatal("zero-value Any should be unbound")
	}
	ctx := context.Background()

	if err := a.Open(ctx); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Open: %v", err)
	}
	if err := a.Close(); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.Accept(ctx); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := a.Read(ctx, nil); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Read: %v", err)
	}
	if _, err := a.Write(ctx, nil); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Write: %v", err)
	}
	if a.Name() != "UNBOUND" {
		t.Fatalf("Name() = %q", a.Name())
	}
	if a.MessageOriented() || a.Active() || a.Connected() {
		t.Fatal("unbound Any should report all predicates false")
	}
	if _, ok := a.Executor().(interface{ Go(func()) }); !ok {
		t.Fatal("unbound Any should still return a usable Executor")
	}
}

func TestAnyBoundForwardsToInner(t *testing.T) {
	ca, cb := net.Pipe()
	defer cb.Close()
	s := NewStream(ca, "inner", true, nil)
	a := NewAny(s)

	if !a.Bound() {
		t.Fatal("should be bound")
	}
	if a.Unwrap() != s {
		t.Fatal("Unwrap should return the wrapped Transport")
	}
	if a.Name() != "inner" {
		t.Fatalf("Name() = %q, want %q", a.Name(), "inner")
	}
	if !a.Connected() {
		t.Fatal("freshly wrapped stream should be connected")
	}
}

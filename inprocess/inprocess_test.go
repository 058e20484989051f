package inprocess

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	transport "code.hybscloud.com/transport"
)

func TestClientServerRoundTrip(t *testing.T) {
	var host Host
	server := host.NewServer("chan-a", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Open(ctx); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer server.Close()

	client := host.NewClient("chan-a", nil)
	if err := client.Open(ctx); err != nil {
		t.Fatalf("client Open: %v", err)
	}
	defer client.Close()

	accepted, err := server.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer accepted.Close()

	want := []byte("ping")
	if _, err := client.Write(ctx, want); err != nil {
		t.Fatalf("client Write: %v", err)
	}
	got := make([]byte, 64)
	n, err := accepted.Read(ctx, got)
	if err != nil {
		t.Fatalf("accepted Read: %v", err)
	}
	if !bytes.Equal(got[:n], want) {
		t.Fatalf("got %q, want %q", got[:n], want)
	}

	reply := []byte("pong")
	if _, err := accepted.Write(ctx, reply); err != nil {
		t.Fatalf("accepted Write: %v", err)
	}
	got2 := make([]byte, 64)
	n2, err := client.Read(ctx, got2)
	if err != nil {
		t.Fatalf("client Read: %v", err)
	}
	if !bytes.Equal(got2[:n2], reply) {
		t.Fatalf("got %q, want %q", got2[:n2], reply)
	}
}

func TestClientOpenFailsWithoutServer(t *testing.T) {
	var host Host
	client := host.NewClient("nowhere", nil)
	if err := client.Open(context.Background()); !errors.Is(err, transport.ErrAddressInUse) {
		t.Fatalf("Open = %v, want ErrAddressInUse", err)
	}
}

func TestServerDoubleOpenFails(t *testing.T) {
	var host Host
	s1 := host.NewServer("dup", nil)
	s2 := host.NewServer("dup", nil)
	ctx := context.Background()
	if err := s1.Open(ctx); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer s1.Close()
	if err := s2.Open(ctx); !errors.Is(err, transport.ErrAddressInUse) {
		t.Fatalf("second Open = %v, want ErrAddressInUse", err)
	}
}

func TestClientCloseSignalsAcceptedPeer(t *testing.T) {
	var host Host
	server := host.NewServer("chan-close", nil)
	ctx := context.Background()
	if err := server.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	client := host.NewClient("chan-close", nil)
	if err := client.Open(ctx); err != nil {
		t.Fatal(err)
	}
	accepted, err := server.Accept(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("client Close: %v", err)
	}

	n, err := accepted.Read(ctx, make([]byte, 16))
	if err != nil {
		t.Fatalf("accepted Read after peer close: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 (graceful close)", n)
	}
}

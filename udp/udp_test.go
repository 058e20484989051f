package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	transport "code.hybscloud.com/transport"
)

func TestActiveRoundTrip(t *testing.T) {
	server := Listen("127.0.0.1", "0", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Open(ctx); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer server.Close()
	_, port, err := net.SplitHostPort(server.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	client := Dial("127.0.0.1", port, nil)
	if err := client.Open(ctx); err != nil {
		t.Fatalf("client Open: %v", err)
	}
	defer client.Close()

	want := []byte("hello over udp")
	if _, err := client.Write(ctx, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	accepted, err := server.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer accepted.Close()

	got := make([]byte, 64)
	n, err := accepted.Read(ctx, got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got[:n], want) {
		t.Fatalf("got %q, want %q", got[:n], want)
	}

	reply := []byte("ack")
	if _, err := accepted.Write(ctx, reply); err != nil {
		t.Fatalf("reply Write: %v", err)
	}
	gotReply := make([]byte, 64)
	n, err = client.Read(ctx, gotReply)
	if err != nil {
		t.Fatalf("client Read: %v", err)
	}
	if !bytes.Equal(gotReply[:n], reply) {
		t.Fatalf("got reply %q, want %q", gotReply[:n], reply)
	}
}

func TestPassiveTransportDirectIOAccessDenied(t *testing.T) {
	server := Listen("127.0.0.1", "0", nil)
	ctx := context.Background()
	if err := server.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer server.Close()
	if _, err := server.Read(ctx, make([]byte, 1)); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Read = %v, want ErrAccessDenied", err)
	}
	if _, err := server.Write(ctx, []byte{0}); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Write = %v, want ErrAccessDenied", err)
	}
}

func TestActiveAcceptDenied(t *testing.T) {
	client := Dial("127.0.0.1", "9", nil)
	if _, err := client.Accept(context.Background()); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Accept = %v, want ErrAccessDenied", err)
	}
}

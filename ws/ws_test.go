package ws

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	transport "code.hybscloud.com/transport"
)

func TestDialAcceptRoundTrip(t *testing.T) {
	server := Listen("127.0.0.1:18732", "/ws", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Open(ctx); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer server.Close()
	time.Sleep(50 * time.Millisecond) // let ListenAndServe bind

	acceptDone := make(chan transport.Transport, 1)
	acceptErr := make(chan error, 1)
	go func() {
		peer, err := server.Accept(ctx)
		if err != nil {
			acceptErr <- err
			return
		}
		acceptDone <- peer
	}()

	client := Dial("ws://127.0.0.1:18732/ws", nil)
	if err := client.Open(ctx); err != nil {
		t.Fatalf("client Open: %v", err)
	}
	defer client.Close()

	var accepted transport.Transport
	select {
	case accepted = <-acceptDone:
	case err := <-acceptErr:
		t.Fatalf("Accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not complete")
	}
	defer accepted.Close()

	want := []byte("hello over websocket")
	if _, err := client.Write(ctx, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, 64)
	n, err := accepted.Read(ctx, got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got[:n], want) {
		t.Fatalf("got %q, want %q", got[:n], want)
	}
}

func TestTransportIsMessageOriented(t *testing.T) {
	tr := Dial("ws://127.0.0.1:0/ws", nil)
	if !tr.MessageOriented() {
		t.Fatal("websocket substrate must be message-oriented")
	}
	if !tr.Active() {
		t.Fatal("dial-mode transport should report Active")
	}
}

func TestReadWriteBeforeOpenDenied(t *testing.T) {
	tr := Dial("ws://127.0.0.1:0/ws", nil)
	ctx := context.Background()
	if _, err := tr.Read(ctx, make([]byte, 1)); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Read = %v, want ErrAccessDenied", err)
	}
	if _, err := tr.Write(ctx, []byte{0}); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Write = %v, want ErrAccessDenied", err)
	}
}

func TestPassiveAcceptDeniedWithoutListen(t *testing.T) {
	tr := Dial("ws://127.0.0.1:0/ws", nil)
	if _, err := tr.Accept(context.Background()); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Accept = %v, want ErrAccessDenied", err)
	}
}

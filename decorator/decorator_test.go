package decorator

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	transport "code.hybscloud.com/transport"
)

func newPipePair(t *testing.T) (a, b *transport.Stream) {
	t.Helper()
	ca, cb := net.Pipe()
	a = transport.NewStream(ca, "pipe-a", true, nil)
	b = transport.NewStream(cb, "pipe-b", true, nil)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestDelegatingForwardsEverything(t *testing.T) {
	ca, _ := newPipePair(t)
	d := NewDelegating(ca)
	if d.Name() != ca.Name() {
		t.Fatalf("Name() = %q, want %q", d.Name(), ca.Name())
	}
	if d.Connected() != ca.Connected() {
		t.Fatal("Connected() should forward to child")
	}
}

func TestDeferredGatesReadWriteUntilConnected(t *testing.T) {
	ca, cb := newPipePair(t)
	d := NewDeferred(ca)

	ctx := context.Background()
	if _, err := d.Write(ctx, []byte("x")); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Write before connect = %v, want ErrAccessDenied", err)
	}
	if _, err := d.Read(ctx, make([]byte, 1)); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Read before connect = %v, want ErrAccessDenied", err)
	}

	if err := d.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		n, err := cb.Read(ctx, buf)
		if err != nil {
			t.Error(err)
			return
		}
		if string(buf[:n]) != "hi" {
			t.Errorf("got %q", buf[:n])
		}
	}()

	if _, err := d.Write(ctx, []byte("hi")); err != nil {
		t.Fatalf("Write after connect: %v", err)
	}
	<-done

	d.SetConnected(false)
	if _, err := d.Write(ctx, []byte("x")); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Write after disconnect = %v, want ErrAccessDenied", err)
	}
}

func TestDeferredCloseRunsAdditionalHandlerOnce(t *testing.T) {
	ca, _ := newPipePair(t)
	d := NewDeferred(ca)
	_ = d.Open(context.Background())

	calls := 0
	var mu sync.Mutex
	d.SetAdditionalCloseHandler(func(err error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Fatalf("additional close handler called %d times, want 1", n)
	}
}

type fakeInterceptor struct {
	intercept bool
	n         int
	err       error
}

func (f fakeInterceptor) InterceptWrite(ctx context.Context, p []byte) (int, bool, error) {
	if !f.intercept {
		return 0, false, nil
	}
	return f.n, true, f.err
}

func TestInterceptingShortCircuitsWrite(t *testing.T) {
	ca, _ := newPipePair(t)
	it := NewIntercepting(ca, fakeInterceptor{intercept: true, n: 42})

	n, err := it.Write(context.Background(), []byte("ignored"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 42 {
		t.Fatalf("n = %d, want 42", n)
	}
}

func TestInterceptingPassesThroughWhenNotIntercepted(t *testing.T) {
	ca, cb := newPipePair(t)
	it := NewIntercepting(ca, fakeInterceptor{intercept: false})

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 16)
		n, err := cb.Read(ctx, buf)
		if err != nil {
			t.Error(err)
			return
		}
		if !bytes.Equal(buf[:n], []byte("real")) {
			t.Errorf("got %q", buf[:n])
		}
	}()

	if _, err := it.Write(ctx, []byte("real")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done
}

func TestWriteQueueSerializesConcurrentWrites(t *testing.T) {
	ca, cb := newPipePair(t)
	q := NewWriteQueue(ca, nil)

	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Write(ctx, []byte{0xAB}); err != nil {
				t.Error(err)
			}
		}()
	}

	received := 0
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 1)
		for received < n {
			if _, err := cb.Read(ctx, buf); err != nil {
				return
			}
			if buf[0] != 0xAB {
				t.Errorf("corrupted byte: %x", buf[0])
			}
			received++
		}
	}()

	wg.Wait()
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not receive all bytes")
	}
	if received != n {
		t.Fatalf("received %d, want %d", received, n)
	}
}

func TestMessageReceiverDeliversUntilClose(t *testing.T) {
	ca, cb := newPipePair(t)
	r := NewMessageReceiver(cb, 64)

	var got [][]byte
	var mu sync.Mutex
	runDone := make(chan error, 1)
	go func() {
		runDone <- r.Run(context.Background(), func(p []byte) {
			mu.Lock()
			got = append(got, append([]byte(nil), p...))
			mu.Unlock()
		})
	}()

	ctx := context.Background()
	_, _ = ca.Write(ctx, []byte("one"))
	_, _ = ca.Write(ctx, []byte("two"))
	time.Sleep(20 * time.Millisecond)
	_ = ca.Close()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after peer close")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected at least one delivered message")
	}
}

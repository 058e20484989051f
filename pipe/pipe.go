// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipe implements the named-pipe substrate: a byte-stream
// transport.Transport over a Windows named pipe (github.com/Microsoft/go-winio)
// or a Unix domain socket, selected by build tag, matching the
// original's PipeTransport (HANDLE-based named pipe, byte-oriented,
// always active from the client's perspective).
package pipe

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// deadlineSettable is implemented by most net.Listener concrete types
// (including *net.UnixListener); used to make Accept cancellable
// without assuming a specific listener type.
type deadlineSettable interface {
	SetDeadline(time.Time) error
}

// Transport is a named-pipe substrate in either active (dial) or
// passive (listen/accept) mode.
type Transport struct {
	path   string
	active bool
	exec   executor.Executor

	mu       sync.Mutex
	stream   *transport.Stream
	listener net.Listener
	closed   bool
}

// Dial returns an active Transport that connects to path on Open.
func Dial(path string, exec executor.Executor) *Transport {
	return &Transport{path: path, active: true, exec: exec}
}

// Listen returns a passive Transport that listens on path on Open.
func Listen(path string, exec executor.Executor) *Transport {
	return &Transport{path: path, active: false, exec: exec}
}

func newAccepted(conn net.Conn, exec executor.Executor) *Transport {
	t := &Transport{active: true, exec: exec}
	t.stream = transport.NewStream(conn, "PIPE", true, exec)
	return t
}

func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrConnectionClosed
	}
	if t.active {
		if t.stream != nil {
			return nil
		}
		conn, err := dialPipe(ctx, t.path)
		if err != nil {
			return fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		t.stream = transport.NewStream(conn, "PIPE", true, t.exec)
		return nil
	}
	if t.listener != nil {
		return nil
	}
	ln, err := listenPipe(t.path)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	t.listener = ln
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	t.closed = true
	stream, listener := t.stream, t.listener
	t.mu.Unlock()

	if stream != nil {
		return stream.Close()
	}
	if listener != nil {
		if err := listener.Close(); err != nil {
			return fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
	}
	return nil
}

func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()
	if listener == nil {
		return nil, transport.ErrAccessDenied
	}

	if ds, ok := listener.(deadlineSettable); ok && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = ds.SetDeadline(time.Unix(0, 1))
			case <-stop:
			}
		}()
		defer func() { _ = ds.SetDeadline(time.Time{}) }()
	}

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return newAccepted(conn, t.exec), nil
}

func (t *Transport) Read(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	stream := t.stream
	t.mu.Unlock()
	if stream == nil {
		return 0, transport.ErrAccessDenied
	}
	return stream.Read(ctx, p)
}

func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	stream := t.stream
	t.mu.Unlock()
	if stream == nil {
		return 0, transport.ErrAccessDenied
	}
	return stream.Write(ctx, p)
}

func (t *Transport) Name() string { return "PIPE:" + t.path }

func (t *Transport) MessageOriented() bool { return false }
func (t *Transport) Active() bool          { return t.active }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if t.stream != nil {
		return t.stream.Connected()
	}
	return t.listener != nil
}

func (t *Transport) Executor() executor.Executor {
	if t.exec == nil {
		return executor.Inline{}
	}
	return t.exec
}

var _ transport.Transport = (*Transport)(nil)

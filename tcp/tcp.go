// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcp implements the TCP substrate: an active (dial) and
// passive (listen/accept) transport.Transport over net.TCPConn.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Transport is a TCP substrate in either active (client, dials out) or
// passive (server, accepts) mode, mirroring the original's
// AsioTcpTransport's ActiveCore/PassiveCore split. Only one mode is
// live per instance: an active Transport's Read/Write forward to its
// dialed connection; a passive one's Accept hands out a fresh active
// Transport per accepted connection, and its own Read/Write return
// ErrAccessDenied, exactly like PassiveCore::Read/Write.
type Transport struct {
	host, service string
	active        bool
	exec          executor.Executor

	mu       sync.Mutex
	stream   *transport.Stream
	listener *net.TCPListener
	closed   bool
}

// Dial returns an active Transport that connects to host:service on Open.
func Dial(host, service string, exec executor.Executor) *Transport {
	return &Transport{host: host, service: service, active: true, exec: exec}
}

// Listen returns a passive Transport that listens on host:service on
// Open and hands out accepted connections from Accept.
func Listen(host, service string, exec executor.Executor) *Transport {
	return &Transport{host: host, service: service, active: false, exec: exec}
}

// newAccepted wraps an already-connected conn as an active Transport,
// the TCP analogue of ActiveCore's socket-already-in-hand constructor
// used for accepted peers.
func newAccepted(conn *net.TCPConn, exec executor.Executor) *Transport {
	t := &Transport{active: true, exec: exec}
	t.stream = transport.NewStream(conn, "TCP", true, exec)
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
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(t.host, t.service))
		if err != nil {
			return fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		t.stream = transport.NewStream(conn, "TCP", true, t.exec)
		return nil
	}
	if t.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(t.host, t.service))
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	tln, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return transport.ErrFailed
	}
	t.listener = tln
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

// Accept blocks until a peer connects or ctx is canceled, using the
// listener's deadline to make Accept cancellable (net.Listener has no
// native context-aware Accept, same trick as transport.Stream.Read).
func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()
	if listener == nil {
		return nil, transport.ErrAccessDenied
	}

	stop := make(chan struct{})
	defer close(stop)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = listener.SetDeadline(time.Unix(0, 1))
			case <-stop:
			}
		}()
		defer func() { _ = listener.SetDeadline(time.Time{}) }()
	}

	conn, err := listener.AcceptTCP()
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

func (t *Transport) Name() string { return "TCP" }

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

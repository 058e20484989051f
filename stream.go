// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"code.hybscloud.com/transport/executor"
)

// Stream turns any net.Conn into a byte-stream Transport. It is the Go
// analogue of the original's AsioTransport<IO> generic: for any I/O
// object that natively supports read/write, Stream implements Read
// (forward to the conn), Write (loop until all bytes are sent), and
// Close (idempotent, cancels pending operations by way of an immediate
// deadline). The tcp and pipe substrates hold a Stream per connection
// and provide Open/Accept themselves.
type Stream struct {
	conn   net.Conn
	name   string
	active bool
	exec   executor.Executor

	mu     sync.Mutex
	closed bool

	// Cleanup, if set, runs once under exec after the conn is closed,
	// for platform resource teardown.
	Cleanup func()
}

// NewStream wraps an already-connected conn. active is the value
// Active reports; the tcp and pipe substrates pass true for both dialed
// and accepted connections.
func NewStream(conn net.Conn, name string, active bool, exec executor.Executor) *Stream {
	if exec == nil {
		exec = executor.Inline{}
	}
	return &Stream{conn: conn, name: name, active: active, exec: exec}
}

func (s *Stream) Open(ctx context.Context) error {
	// Stream wraps an already-open net.Conn (substrates perform the
	// actual dial/listen); Open here only participates in the
	// Transport contract for composition with decorators.
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrConnectionClosed
	}
	s.closed = true
	s.mu.Unlock()

	err := s.conn.Close()
	if s.Cleanup != nil {
		cleanup := s.Cleanup
		s.exec.Go(cleanup)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return nil
}

func (s *Stream) Accept(ctx context.Context) (Transport, error) {
	return nil, ErrInvalidArgument
}

// Read forwards to the underlying conn, honoring ctx cancellation by
// racing the read against ctx.Done and forcing an immediate deadline
// to unblock it, since net.Conn has no native context-aware Read.
func (s *Stream) Read(ctx context.Context, p []byte) (int, error) {
	if s.Connected() == false {
		return 0, ErrConnectionClosed
	}
	return s.ioWithContext(ctx, func() (int, error) { return s.conn.Read(p) })
}

func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	if !s.Connected() {
		return 0, ErrConnectionClosed
	}
	total := 0
	for total < len(p) {
		n, err := s.ioWithContext(ctx, func() (int, error) { return s.conn.Write(p[total:]) })
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("%w: write made no progress", ErrFailed)
		}
	}
	return total, nil
}

// ioWithContext performs one blocking op, aborting early if ctx is
// canceled by forcing the conn's deadline into the past (the standard
// trick for giving net.Conn a cancellable read/write).
func (s *Stream) ioWithContext(ctx context.Context, op func() (int, error)) (int, error) {
	if ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		defer func() { _ = s.conn.SetDeadline(time.Time{}) }()
		go func() {
			select {
			case <-ctx.Done():
				_ = s.conn.SetDeadline(time.Unix(0, 1))
			case <-stop:
			}
		}()
	}
	n, err := op()
	if err != nil {
		if ctx.Err() != nil {
			return n, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return n, nil
}

func (s *Stream) Name() string          { return s.name }
func (s *Stream) MessageOriented() bool { return false }
func (s *Stream) Active() bool          { return s.active }

func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Stream) Executor() executor.Executor { return s.exec }

var _ Transport = (*Stream)(nil)

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Transport decorates a child transport.Transport to present a
// message-oriented interface, deframing it with a MessageReader. Only
// one outstanding Read is allowed at a time; a concurrent Read returns
// transport.ErrIOPending. Write is a pure pass-through: framing
// outgoing bytes is the caller's job.
type Transport struct {
	child  transport.Transport
	reader *MessageReader

	reading int32 // atomic guard: one outstanding Read at a time

	mu     sync.Mutex
	closed bool
}

// New wraps child, deframing it with reader. reader is owned by the
// returned Transport from this point on.
func New(child transport.Transport, reader *MessageReader) *Transport {
	return &Transport{child: child, reader: reader}
}

func (t *Transport) Open(ctx context.Context) error {
	return t.child.Open(ctx)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	t.closed = true
	t.mu.Unlock()
	t.reader.Reset()
	return t.child.Close()
}

func (t *Transport) markClosed() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Accept wraps the child's accepted transport in a freshly cloned
// reader, per the spec's Clone-on-accept requirement.
func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	child, err := t.child.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return New(child, t.reader.Clone()), nil
}

// Read implements the spec §4.2 algorithm: pop a complete message from
// the assembly buffer if one is ready; otherwise pull more raw bytes
// from the child and retry, applying byte-skipping error correction on
// a protocol violation if enabled.
func (t *Transport) Read(ctx context.Context, p []byte) (int, error) {
	if t.isClosed() {
		return 0, transport.ErrConnectionClosed
	}
	if !atomic.CompareAndSwapInt32(&t.reading, 0, 1) {
		return 0, transport.ErrIOPending
	}
	defer atomic.StoreInt32(&t.reading, 0)

	for {
		n, need, err := t.reader.Pop(p)
		if err != nil {
			if need == Invalid && t.reader.ErrorCorrection() && errors.Is(err, ErrProtocolViolation) {
				if t.reader.TryCorrect() {
					continue
				}
			}
			t.markClosed()
			return 0, err
		}
		if need == Complete {
			// A legitimate zero-length message is indistinguishable from
			// graceful close at the transport.Transport boundary (both
			// return (0, nil)); callers whose wire format allows empty
			// messages must not rely on Read's return value alone to
			// detect peer close. The session protocol sidesteps this by
			// never sending an empty payload.
			return n, nil
		}

		// Composite-datagram rejection: a message-oriented child already
		// delivers one whole datagram per Read; if the assembly buffer
		// still holds unconsumed bytes from a prior Read, it means that
		// datagram ended mid-message. Policy forbids silently buffering
		// across datagram boundaries.
		if t.reader.buf.Size() > 0 && t.child.MessageOriented() {
			t.markClosed()
			return 0, ErrPartialMessage
		}

		read, err := t.child.Read(ctx, t.reader.PrepareSlice())
		if err != nil {
			t.markClosed()
			return 0, err
		}
		if read == 0 {
			t.markClosed()
			if t.reader.buf.Size() > 0 {
				return 0, fmt.Errorf("%w: connection closed mid-message", transport.ErrFailed)
			}
			return 0, nil
		}
		t.reader.BytesRead(read)
	}
}

// Write passes data through unchanged.
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	return t.child.Write(ctx, p)
}

func (t *Transport) Name() string { return fmt.Sprintf("MSG:%s", t.child.Name()) }

func (t *Transport) MessageOriented() bool { return true }
func (t *Transport) Active() bool          { return t.child.Active() }
func (t *Transport) Connected() bool       { return t.child.Connected() && !t.isClosed() }

func (t *Transport) Executor() executor.Executor { return t.child.Executor() }

var _ transport.Transport = (*Transport)(nil)

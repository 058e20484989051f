// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport provides a uniform asynchronous byte- and
// message-oriented I/O contract over several underlying substrates
// (TCP, UDP, serial, named pipes, WebSocket, in-process channels),
// plus composable decorators (message framing, interception, write
// queuing, deferred binding) and a reliable session protocol layered
// on top of any of them.
//
// Every operation is a context-aware call: cancellation is expressed
// by canceling the context, matching the original's "drop the awaiting
// coroutine" model. Within one Transport, operations are serialized by
// its Executor (see package executor); a Read and a Write may be
// outstanding concurrently (they target disjoint half-streams) but
// concurrent Reads (or Writes) on the same Transport are the caller's
// responsibility to serialize, see decorator.WriteQueue.
package transport

import (
	"context"

	"code.hybscloud.com/transport/executor"
)

// Transport is the sum type of capabilities shared by every substrate
// and decorator in this module. An active transport moves through
// unopened -> opening -> connected -> closed. A passive transport moves
// through unopened -> listening -> closed and produces accepted
// children, each in its own lifecycle.
type Transport interface {
	// Open connects (active) or binds and starts listening (passive).
	// Returns ErrInvalidArgument on bad parameters, ErrAddressInUse if
	// already open/bound, or a wrapped substrate error.
	Open(ctx context.Context) error

	// Close releases resources. Idempotent in the sense that a second
	// call returns ErrConnectionClosed rather than panicking or hanging.
	Close() error

	// Accept produces one accepted child per call; valid only on
	// passive transports. Returns ErrInvalidArgument otherwise.
	Accept(ctx context.Context) (Transport, error)

	// Read fills up to len(p) bytes for stream transports; for
	// message-oriented transports it reads exactly one whole message,
	// failing ErrInvalidArgument if p is smaller than the next message.
	// Returns (0, nil) iff the peer closed gracefully.
	Read(ctx context.Context, p []byte) (int, error)

	// Write writes all of p, returning len(p) on success. Returns
	// ErrConnectionClosed if the transport is not connected.
	Write(ctx context.Context, p []byte) (int, error)

	// Name is a short human-readable identifier, e.g. "TCP".
	Name() string

	// MessageOriented reports whether Read/Write operate on whole
	// messages (true) or raw byte streams (false).
	MessageOriented() bool

	// Active reports whether this is a client (true) or listener (false).
	Active() bool

	// Connected reports whether Read/Write are currently permitted.
	Connected() bool

	// Executor returns the strand this transport's operations are
	// sequenced on. Fixed at construction.
	Executor() executor.Executor
}

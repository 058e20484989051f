// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package executor provides a single-threaded cooperative scheduling
// handle, the Go analogue of a boost::asio strand: one goroutine owns a
// world of mutable state, and every operation touching that state is
// funneled through Go so it executes in submission order with no
// additional locking required by the owner.
//
// The pattern is grounded in the same shape smux uses for its Session:
// one goroutine per concern (recvLoop, sendLoop, shaperLoop) owning its
// own state and communicating over channels rather than sharing memory
// under a mutex.
package executor

import (
	"sync"

	"github.com/rs/zerolog"
)

// Executor sequences operations on a transport. A transport's executor
// is fixed at construction; all mutating operations on that transport
// must run on it.
type Executor interface {
	// Go enqueues fn to run on the strand and returns immediately.
	// Calls queued from any goroutine preserve relative submission
	// order (FIFO). Safe to call reentrantly from a function already
	// running on this strand: the call never blocks the caller, so a
	// task that enqueues more work on itself cannot deadlock the loop.
	Go(fn func())

	// Close stops accepting new work. Work already queued still runs;
	// Close does not block waiting for it. Close is idempotent.
	Close()
}

// Strand is the concrete, general-purpose Executor implementation. It
// keeps a growable FIFO queue behind a mutex/condvar rather than a
// fixed-capacity channel, so Go never blocks the caller even when
// called reentrantly from inside a running task.
type Strand struct {
	logger zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewStrand starts a new Strand with its own loop goroutine.
func NewStrand() *Strand {
	s := &Strand{done: make(chan struct{}), logger: zerolog.Nop()}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// WithLogger attaches structured logging to a Strand, for visibility
// into tasks silently dropped after Close.
func WithLogger(s *Strand, logger zerolog.Logger) *Strand {
	s.logger = logger
	return s
}

func (s *Strand) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Go implements Executor.
func (s *Strand) Go(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn().Msg("strand closed, dropping queued task")
		return
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
	s.cond.Signal()
}

// Close implements Executor. It marks the strand closed; the loop
// goroutine drains whatever is already queued and exits.
func (s *Strand) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Wait blocks until the loop goroutine has drained its queue and
// exited after Close, so a caller need not race outstanding
// continuations. In this module only tests call it.
func (s *Strand) Wait() {
	<-s.done
}

// Inline is a trivial Executor that runs everything synchronously on
// the calling goroutine. Useful for tests and for substrates (such as
// the in-process transport under unit tests) that don't need their own
// loop.
type Inline struct{}

func (Inline) Go(fn func()) { fn() }
func (Inline) Close()       {}

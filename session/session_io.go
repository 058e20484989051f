// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"sync/atomic"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/decorator"
	"code.hybscloud.com/transport/executor"
)

func (s *Session) currentTransport() (transport.Transport, *decorator.WriteQueue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tr, s.wq, s.connected
}

func (s *Session) parentSnapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

func (s *Session) listenerSnapshot() Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

func (s *Session) infoSnapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// State reports the session's current lifecycle stage.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID reports the session's identifier, the zero ID before the first
// CREATE/OPEN exchange completes.
func (s *Session) ID() ID {
	return s.idSnapshot()
}

// Info reports the user id/rights the peer granted on accept or restore.
func (s *Session) Info() Info {
	return s.infoSnapshot()
}

// Stats returns a point-in-time snapshot of the session's transfer
// counters.
func (s *Session) Stats() Stats {
	return Stats{
		BytesReceived:    atomic.LoadUint64(&s.stats.BytesReceived),
		BytesSent:        atomic.LoadUint64(&s.stats.BytesSent),
		MessagesReceived: atomic.LoadUint64(&s.stats.MessagesReceived),
		MessagesSent:     atomic.LoadUint64(&s.stats.MessagesSent),
	}
}

// Ping sends an application-level TEST keepalive probe; the peer
// answers with TEST|RESPONSE, which handleFrame accepts without further
// action.
func (s *Session) Ping() {
	s.exec.Go(func() { s.writeFrame(encodeTest(false)) })
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// onTransportError handles a failed dial or a readPump failure, ported
// from Session::OnTransportError. openResult is non-nil only on the
// very first connect attempt of a client session.
func (s *Session) onTransportError(err error, openResult chan error) {
	s.logger.Warn().Err(err).Msg("session transport error")

	s.mu.Lock()
	s.tr, s.wq, s.binding = nil, nil, nil
	s.connected = false
	state := s.state
	s.mu.Unlock()

	if state == StateOpened {
		if l := s.listenerSnapshot(); l != nil {
			l.SessionTransportError(err)
		}
		return
	}
	if openResult != nil {
		openResult <- err
	}
	s.onClosed(err)
}

func (s *Session) onReadPumpError(err error) {
	s.onTransportError(err, nil)
}

func (s *Session) onClosed(err error) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("session fatal error")
	}
	if s.markClosed() {
		return
	}
	s.teardown(err)
}

// markClosed sets closed under s.mu and reports whether it was already
// set, giving Close/onClosed exactly-once teardown regardless of which
// path (explicit Close, a protocol error, or a transport failure) gets
// there first.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.closed
	s.closed = true
	return already
}

// teardown notifies the peer (if the transport is still live),
// unregisters from the parent's tables, stops the timer, cancels the
// run context, and closes the underlying transport. Called at most once
// per session, guarded by markClosed.
func (s *Session) teardown(err error) {
	s.mu.Lock()
	wasOpened := s.state == StateOpened
	parent := s.parent
	id := s.id
	tr := s.tr
	pending := s.pendingOpenResult
	s.pendingOpenResult = nil
	s.state = StateClosed
	s.mu.Unlock()

	if parent != nil {
		parent.mu.Lock()
		if wasOpened {
			delete(parent.acceptedByID, id)
		}
		delete(parent.childSessions, s)
		parent.mu.Unlock()
	}

	if pending != nil {
		ec := err
		if ec == nil {
			ec = transport.ErrConnectionClosed
		}
		pending <- ec
	}

	if tr != nil && tr.Active() && tr.Connected() {
		s.writeFrame(encodeClose())
	}
	close(s.timerStop)
	s.runCancel()
	if s.listenTr != nil {
		_ = s.listenTr.Close()
	}
	if tr != nil {
		_ = tr.Close()
	}
	// s.acceptCh and s.delivered are deliberately never closed: onCreate
	// (on a child's own strand) and deliver (on this session's strand)
	// can still be mid-send into them from a frame that was already in
	// flight when teardown ran, and a send on a closed channel panics
	// even behind a select's default case. Accept/Read instead notice
	// shutdown via runCtx, which is canceled above.
}

// Close shuts the session down, notifying the peer with CLOSE when the
// transport is still live. A second call returns ErrConnectionClosed.
func (s *Session) Close() error {
	if s.markClosed() {
		return transport.ErrConnectionClosed
	}
	s.teardown(nil)
	return nil
}

// Accept returns the next child session that has completed CREATE.
// Only valid on a session returned by NewServer.
func (s *Session) Accept(ctx context.Context) (transport.Transport, error) {
	if s.acceptCh == nil {
		return nil, transport.ErrAccessDenied
	}
	select {
	case child, ok := <-s.acceptCh:
		if !ok {
			return nil, transport.ErrConnectionClosed
		}
		return child, nil
	case <-s.runCtx.Done():
		return nil, transport.ErrConnectionClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

// Read returns the next reassembled application message. It is denied
// on a server session, which has no data stream of its own.
func (s *Session) Read(ctx context.Context, p []byte) (int, error) {
	if s.acceptCh != nil {
		return 0, transport.ErrAccessDenied
	}
	select {
	case msg, ok := <-s.delivered:
		if !ok {
			return 0, transport.ErrConnectionClosed
		}
		if len(msg) > len(p) {
			return 0, transport.ErrInvalidArgument
		}
		return copy(p, msg), nil
	case <-s.runCtx.Done():
		return 0, transport.ErrConnectionClosed
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

// Write queues p for reliable delivery at normal priority, matching
// Session::Write: it returns as soon as the message is queued, not once
// it has actually reached the peer.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	if s.acceptCh != nil {
		return 0, transport.ErrAccessDenied
	}
	if s.isClosed() {
		return 0, transport.ErrConnectionClosed
	}
	if len(p) == 0 {
		return 0, transport.ErrInvalidArgument
	}
	s.Send(p, 0)
	return len(p), nil
}

func (s *Session) Name() string { return "Session" }

func (s *Session) MessageOriented() bool { return true }

func (s *Session) Active() bool { return s.active }

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tr != nil && s.connected
}

func (s *Session) Executor() executor.Executor { return s.exec }

var _ transport.Transport = (*Session)(nil)

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import "time"

// timerLoop drives ack coalescing and reconnection checks, ported from
// Session::OnTimer's 50ms repeating timer. It runs for every client and
// accepted-child session, not for a server's listening parent.
func (s *Session) timerLoop() {
	ticker := time.NewTicker(timerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.exec.Go(func() { s.onTimer() })
		case <-s.timerStop:
			return
		case <-s.runCtx.Done():
			return
		}
	}
}

// onTimer coalesces pending acknowledgements (by count or by the 1s
// timeout) and, for a disconnected client session, triggers the next
// reconnection attempt once reconnectionPeriod has elapsed.
func (s *Session) onTimer() {
	s.mu.RLock()
	closed := s.closed
	accepted := s.accepted
	state := s.state
	connected := s.tr != nil && s.connected
	connecting := s.connecting
	connectStart := s.connectStart
	reconnectionPeriod := s.reconnectionPeriod
	s.mu.RUnlock()

	if closed {
		return
	}

	if !connected && !connecting && !accepted && state == StateOpened &&
		time.Since(connectStart) >= reconnectionPeriod {
		s.startConnect(nil)
		return
	}
	if !connected {
		return
	}
	if s.numRecv > 0 && (s.numRecv >= maxAcknowledgeCount || time.Since(s.receiveTime) >= ackCoalesceTimeout) {
		s.receiveTime = time.Now()
		s.numRecv = 0
		s.writeFrame(encodeAck(s.recvID))
	}
}

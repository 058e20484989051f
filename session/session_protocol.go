// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"sync/atomic"
	"time"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/bytemsg"
	"code.hybscloud.com/transport/decorator"
)

// handleFrame parses and dispatches one complete wire frame, ported
// from Session::OnMessageReceived. It always runs on s.exec.
func (s *Session) handleFrame(raw []byte) {
	atomic.AddUint64(&s.stats.BytesReceived, uint64(len(raw)))
	atomic.AddUint64(&s.stats.MessagesReceived, 1)

	m := bytemsg.Wrap(raw)
	if _, err := m.ReadUint16(order); err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	opByte, err := m.ReadByte()
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}

	switch opcode(opByte) {
	case opCreate:
		s.onCreate(m)
	case opOpen:
		s.onOpen(m)
	case opClose:
		s.logger.Warn().Msg("close session request")
		s.onClosed(nil)
	case opCreate | opResponse:
		s.onCreateResponse(m)
	case opOpen | opResponse:
		s.onOpenResponse(m)
	case opMessage:
		s.onData(false, m)
	case opSequence:
		s.onData(true, m)
	case opAck:
		ack, err := m.ReadUint16(order)
		if err != nil {
			s.onClosed(transport.ErrFailed)
			return
		}
		s.processSessionAck(ack)
	case opTest:
		s.writeFrame(encodeTest(true))
	case opTest | opResponse:
		// Liveness probe answered; nothing further to do.
	default:
		s.logger.Error().Uint8("opcode", opByte).Msg("unknown session message")
		s.onClosed(transport.ErrFailed)
	}
}

func (s *Session) onData(seq bool, m *bytemsg.Message) {
	id, err := m.ReadUint16(order)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	ack, err := m.ReadUint16(order)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	s.processSessionMessage(id, seq, m.Remaining())
	s.processSessionAck(ack)
}

// processSessionMessage reassembles and delivers one application
// message, ported from Session::ProcessSessionMessage. The sequence
// buffer is capped at maxSequenceBuffer: the original accumulates
// sequence_message_ without any bound, which this module's spec
// explicitly forbids reproducing.
func (s *Session) processSessionMessage(id uint16, seq bool, data []byte) {
	if id != s.recvID {
		return
	}
	s.recvID++
	if s.numRecv == 0 {
		s.receiveTime = time.Now()
	}
	s.numRecv++

	switch {
	case seq:
		if len(s.seqBuf)+len(data) > maxSequenceBuffer {
			s.onClosed(transport.ErrFailed)
			return
		}
		s.seqBuf = append(s.seqBuf, data...)
	case len(s.seqBuf) > 0:
		if len(s.seqBuf)+len(data) > maxSequenceBuffer {
			s.onClosed(transport.ErrFailed)
			return
		}
		full := append(s.seqBuf, data...)
		s.seqBuf = nil
		s.deliver(full)
	default:
		s.deliver(append([]byte(nil), data...))
	}
}

func (s *Session) deliver(msg []byte) {
	select {
	case s.delivered <- msg:
	case <-s.runCtx.Done():
	}
}

// processSessionAck drops acknowledged in-flight messages and tops up
// the send window, ported from Session::ProcessSessionAck.
func (s *Session) processSessionAck(ack uint16) {
	for len(s.sendingMessages) > 0 && idLess(s.sendingMessages[0].sendID, ack) {
		s.sendingMessages = s.sendingMessages[1:]
	}
	s.sendQueuedMessage()
}

// sendQueuedMessage drains the priority send queues into the
// in-flight window, ported from Session::SendQueuedMessage.
func (s *Session) sendQueuedMessage() {
	_, wq, connected := s.currentTransport()
	if wq == nil || !connected {
		return
	}

	if s.repeatSending {
		s.repeatSending = false
		for _, m := range s.sendingMessages {
			s.sendDataMessage(m)
		}
	}

	for len(s.sendingMessages) < maxSendingCount {
		q := s.nextQueue()
		if q == nil {
			return
		}
		msg := (*q)[0]
		*q = (*q)[1:]

		sm := sendingMessage{seq: msg.seq, sendID: s.sendID, data: msg.data}
		s.sendID++
		s.sendingMessages = append(s.sendingMessages, sm)
		s.numRecv = 0 // this outgoing frame also carries the current ack.

		s.sendDataMessage(sm)
	}
}

func (s *Session) nextQueue() *[]queuedMessage {
	for i := range s.sendQueues {
		if len(s.sendQueues[i]) > 0 {
			return &s.sendQueues[i]
		}
	}
	return nil
}

func (s *Session) sendDataMessage(m sendingMessage) {
	s.writeFrame(encodeData(m.seq, m.sendID, s.recvID, m.data))
}

// postMessage enqueues one already-bounded chunk, ported from
// Session::PostMessage. Always runs on s.exec.
func (s *Session) postMessage(data []byte, seq bool, priority int) {
	q := 0
	if priority != 0 {
		q = 1
	}
	s.sendQueues[q] = append(s.sendQueues[q], queuedMessage{seq: seq, data: data})
	s.sendQueuedMessage()
}

// Send queues data for delivery, splitting it into maxProtocolMessage
// chunks (all but the last marked SEQUENCE) when it doesn't fit in one
// frame, ported from Session::Send.
func (s *Session) Send(data []byte, priority int) {
	if len(data) <= maxProtocolMessage {
		msg := append([]byte(nil), data...)
		s.exec.Go(func() { s.postMessage(msg, false, priority) })
		return
	}

	var chunks [][]byte
	for len(data) > 0 {
		n := maxProtocolMessage
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	s.exec.Go(func() {
		for i, chunk := range chunks {
			s.postMessage(chunk, i != len(chunks)-1, priority)
		}
	})
}

func (s *Session) writeFrame(b []byte) {
	_, wq, _ := s.currentTransport()
	if wq == nil {
		return
	}
	atomic.AddUint64(&s.stats.BytesSent, uint64(len(b)))
	atomic.AddUint64(&s.stats.MessagesSent, 1)
	wq.BlindWrite(b)
}

// onCreate handles an inbound CREATE request on a freshly accepted,
// not-yet-identified child session, ported from Session::OnCreate.
func (s *Session) onCreate(m *bytemsg.Message) {
	name, err1 := m.ReadString(order)
	password, err2 := m.ReadString(order)
	forceByte, err3 := m.ReadByte()
	if err1 != nil || err2 != nil || err3 != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	info := CreateInfo{Name: name, Password: password, Force: forceByte != 0}
	s.logger.Info().Str("name", info.Name).Bool("force", info.Force).Msg("create session request")

	s.mu.Lock()
	s.createInfo = info
	parent := s.parent
	s.mu.Unlock()

	var errCode uint32
	var sessionInfo Info
	var newID ID

	switch {
	case parent == nil || parent.acceptor == nil:
		errCode = uint32(transport.ErrFailed)
	default:
		result, err := parent.acceptor(s, info)
		if err != nil {
			errCode = errCodeOf(err)
			break
		}

		parent.mu.Lock()
		for {
			newID = NewID()
			if _, exists := parent.acceptedByID[newID]; !exists {
				parent.acceptedByID[newID] = s
				break
			}
		}
		delete(parent.childSessions, s)
		parent.mu.Unlock()

		s.mu.Lock()
		s.state = StateOpened
		s.info = result
		s.id = newID
		s.mu.Unlock()

		sessionInfo = result
	}

	s.writeFrame(encodeCreateResponse(errCode, newID, sessionInfo))

	if errCode != 0 {
		return
	}
	s.sendQueuedMessage()
	select {
	case parent.acceptCh <- s:
	default:
		s.logger.Warn().Msg("accept queue full, dropping accepted session")
	}
}

// onOpen handles an inbound OPEN (restore) request on a freshly
// accepted, not-yet-identified session, ported from Session::OnRestore.
// Unlike the original (whose DetachTransport is an unimplemented
// assert(false)), the transport hand-off to the pre-existing target
// session is fully implemented here.
func (s *Session) onOpen(m *bytemsg.Message) {
	idBytes, err := m.ReadN(16)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	requestedID := decodeID(idBytes)
	s.logger.Info().Msg("restore session request")

	parent := s.parentSnapshot()
	if parent == nil {
		s.writeFrame(encodeOpenResponse(uint32(transport.ErrFailed), Info{}))
		return
	}

	parent.mu.Lock()
	target, ok := parent.acceptedByID[requestedID]
	if ok {
		delete(parent.childSessions, s)
	}
	parent.mu.Unlock()

	if !ok {
		s.writeFrame(encodeOpenResponse(uint32(transport.ErrConnectionClosed), Info{}))
		return
	}

	tr, wq, b := s.detach()
	b.rebind(target)
	target.exec.Go(func() {
		target.mu.Lock()
		target.tr, target.wq, target.binding = tr, wq, b
		target.connected = tr.Connected()
		target.repeatSending = true
		target.mu.Unlock()

		target.writeFrame(encodeOpenResponse(0, target.infoSnapshot()))
		target.sendQueuedMessage()
		if l := target.listenerSnapshot(); l != nil {
			l.SessionRecovered()
		}
	})
}

// onCreateResponse handles the reply to a CREATE request this (client)
// session sent, ported from the NETS_CREATE|NETS_RESPONSE case.
func (s *Session) onCreateResponse(m *bytemsg.Message) {
	errCode, err := m.ReadUint32(order)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	if errCode != 0 {
		s.onClosed(transport.Error(errCode))
		return
	}
	idBytes, err := m.ReadN(16)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	userID, err1 := m.ReadUint32(order)
	userRights, err2 := m.ReadUint32(order)
	if err1 != nil || err2 != nil {
		s.onClosed(transport.ErrFailed)
		return
	}

	s.mu.Lock()
	s.id = decodeID(idBytes)
	s.info = Info{UserID: userID, UserRights: userRights}
	s.state = StateOpened
	pending := s.pendingOpenResult
	s.pendingOpenResult = nil
	s.mu.Unlock()

	if pending != nil {
		pending <- nil
	}
	s.sendQueuedMessage()
}

// onOpenResponse handles the reply to an OPEN (restore) request this
// (client) session sent, ported from the NETS_OPEN|NETS_RESPONSE case.
func (s *Session) onOpenResponse(m *bytemsg.Message) {
	errCode, err := m.ReadUint32(order)
	if err != nil {
		s.onClosed(transport.ErrFailed)
		return
	}
	if errCode != 0 {
		s.onClosed(transport.Error(errCode))
		return
	}
	if l := s.listenerSnapshot(); l != nil {
		l.SessionRecovered()
	}
}

func errCodeOf(err error) uint32 {
	var te transport.Error
	if errors.As(err, &te) {
		return uint32(te)
	}
	return uint32(transport.ErrFailed)
}

func (s *Session) detach() (transport.Transport, *decorator.WriteQueue, *binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, wq, b := s.tr, s.wq, s.binding
	s.tr, s.wq, s.binding = nil, nil, nil
	return tr, wq, b
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"encoding/binary"
	"time"

	"code.hybscloud.com/transport/bytemsg"
	"code.hybscloud.com/transport/framing"
)

// opcode identifies a session wire frame, ported from message_code.h's
// NETS_* enum.
type opcode uint8

const (
	opCreate   opcode = 1
	opOpen     opcode = 2
	opClose    opcode = 3
	opMessage  opcode = 4
	opAck      opcode = 5
	opTest     opcode = 6
	opSequence opcode = 7

	opResponse opcode = 0x80
)

// wire order, matching session.cpp's ByteBuffer/ByteMessage accessors.
var order = binary.LittleEndian

const (
	// maxMessage is the largest single wire frame, including the
	// session's own 2-byte length header (session.h's kMaxMessage).
	maxMessage = 1024
	// maxProtocolMessage bounds one application payload chunk before
	// Send splits it into SEQUENCE/MESSAGE fragments (kMaxProtocolMessage).
	maxProtocolMessage = maxMessage - 64
	// maxSendingCount bounds the in-flight unacknowledged window
	// (kMaxSendingCount).
	maxSendingCount = 50
	// maxAcknowledgeCount is the ack-coalescing threshold by frame count
	// (kMaxAcknowledgeCount); the other half of coalescing is the 1s
	// timeout applied in onTimer.
	maxAcknowledgeCount = 8
	// maxSequenceFragments bounds the reassembly buffer at N x
	// maxProtocolMessage, per the spec's fix for the original's
	// unbounded sequence_message_ accumulation.
	maxSequenceFragments = 16
	maxSequenceBuffer    = maxSequenceFragments * maxProtocolMessage

	ackCoalesceTimeout = time.Second
	timerInterval      = 50 * time.Millisecond
)

// CreateInfo is the CREATE request payload: requested session name,
// password, and the restart-eviction flag, ported from
// session_info.h's CreateSessionInfo.
type CreateInfo struct {
	Name     string
	Password string
	Force    bool
}

// Info is the session-level information returned to a newly created or
// restored session, ported from session_info.h's SessionInfo.
type Info struct {
	UserID     uint32
	UserRights uint32
}

// bytesExpected is this package's framing predicate, ported from
// SessionMessageReader::GetBytesExpected: a 2-byte little-endian length
// header giving the size of everything after it, capped at maxMessage.
// It is used to wrap a byte-oriented substrate with package framing so
// Session's own wire format (header included) is substrate-agnostic:
// the same frame bytes are produced whether the child transport needed
// deframing or was already message-oriented.
func bytesExpected(buf []byte) (int, framing.Need) {
	if len(buf) < 2 {
		return 0, framing.Incomplete
	}
	size := order.Uint16(buf[:2])
	if int(size) > maxMessage-2 {
		return 0, framing.Invalid
	}
	return 2 + int(size), framing.Complete
}

func newReader() *framing.MessageReader {
	return framing.NewMessageReader(maxMessage, bytesExpected)
}

// frame starts a new message buffer with the 2-byte length placeholder
// already reserved, mirroring SendCreate/SendOpen/SendAck/SendDataMessage's
// shared ByteBuffer idiom.
func frame() *bytemsg.Message {
	m := bytemsg.New(maxMessage)
	m.Write([]byte{0, 0})
	return m
}

// finish patches the length header with the number of bytes written
// after it and returns the complete frame.
func finish(m *bytemsg.Message) []byte {
	b := m.Bytes()
	order.PutUint16(b[:2], uint16(len(b)-2))
	return b
}

func encodeCreate(info CreateInfo) []byte {
	m := frame()
	m.WriteByte(byte(opCreate))
	m.WriteString(order, info.Name)
	m.WriteString(order, info.Password)
	if info.Force {
		m.WriteByte(1)
	} else {
		m.WriteByte(0)
	}
	return finish(m)
}

func encodeCreateResponse(errCode uint32, id ID, info Info) []byte {
	m := frame()
	m.WriteByte(byte(opCreate | opResponse))
	m.WriteUint32(order, errCode)
	m.Write(id[:])
	m.WriteUint32(order, info.UserID)
	m.WriteUint32(order, info.UserRights)
	return finish(m)
}

func encodeOpen(id ID) []byte {
	m := frame()
	m.WriteByte(byte(opOpen))
	m.Write(id[:])
	return finish(m)
}

func encodeOpenResponse(errCode uint32, info Info) []byte {
	m := frame()
	m.WriteByte(byte(opOpen | opResponse))
	m.WriteUint32(order, errCode)
	m.WriteUint32(order, info.UserID)
	m.WriteUint32(order, info.UserRights)
	return finish(m)
}

func encodeClose() []byte {
	m := frame()
	m.WriteByte(byte(opClose))
	return finish(m)
}

func encodeData(seq bool, sendID, ackID uint16, payload []byte) []byte {
	m := frame()
	op := opMessage
	if seq {
		op = opSequence
	}
	m.WriteByte(byte(op))
	m.WriteUint16(order, sendID)
	m.WriteUint16(order, ackID)
	m.Write(payload)
	return finish(m)
}

func encodeAck(ackID uint16) []byte {
	m := frame()
	m.WriteByte(byte(opAck))
	m.WriteUint16(order, ackID)
	return finish(m)
}

func encodeTest(response bool) []byte {
	m := frame()
	op := opTest
	if response {
		op |= opResponse
	}
	m.WriteByte(byte(op))
	return finish(m)
}

// idLess implements modulo-2^16 sequence ordering: a < b iff
// (b - a) mod 2^16 is in (0, 2^15), matching session.cpp's
// MessageIdLess/MessageIdLessEq pair.
func idLessEq(a, b uint16) bool {
	return uint16(b-a) < 1<<15
}

func idLess(a, b uint16) bool {
	return a != b && idLessEq(a, b)
}

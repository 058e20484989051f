// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framing implements the message-framing transport: a
// length-prefixed (or otherwise protocol-driven) deframer that adapts
// an arbitrary child transport, stream or datagram, to a
// message-oriented interface.
package framing

import "code.hybscloud.com/transport/bytemsg"

// MessageReader is a bounded assembly buffer plus a protocol-specific
// BytesExpectedFunc. It is the internal state of Transport; callers
// with their own wire format (such as package session) build one with
// their own predicate and hand it to New.
type MessageReader struct {
	buf             *bytemsg.Message
	bytesExpected   BytesExpectedFunc
	errorCorrection bool
}

// NewMessageReader allocates a MessageReader with the given assembly
// buffer capacity (the largest single message it can hold) and
// predicate.
func NewMessageReader(capacity int, bytesExpected BytesExpectedFunc) *MessageReader {
	return &MessageReader{
		buf:           bytemsg.New(capacity),
		bytesExpected: bytesExpected,
	}
}

// SetErrorCorrection enables or disables byte-skipping resync on a
// protocol violation (Invalid).
func (r *MessageReader) SetErrorCorrection(on bool) { r.errorCorrection = on }

// ErrorCorrection reports whether byte-skipping resync is enabled.
func (r *MessageReader) ErrorCorrection() bool { return r.errorCorrection }

// PrepareSlice returns the unused capacity region to read more raw
// bytes into.
func (r *MessageReader) PrepareSlice() []byte { return r.buf.Free() }

// BytesRead commits n freshly-read bytes (written into the slice
// PrepareSlice returned) as populated.
func (r *MessageReader) BytesRead(n int) { r.buf.Grow(n) }

// Reset discards any partially-assembled message.
func (r *MessageReader) Reset() { r.buf.Clear() }

// TryCorrect skips the leading byte of the assembly buffer and
// reports whether that was possible (the buffer was non-empty). Used
// when ErrorCorrection is enabled and bytes_expected reports Invalid.
func (r *MessageReader) TryCorrect() bool {
	if r.buf.Size() == 0 {
		return false
	}
	r.buf.PopFrontN(1)
	return true
}

// Pop attempts to extract one complete message into dst. It returns:
//
//	(n, Complete, nil)    — a message of n bytes was popped into dst
//	(0, Incomplete, nil)  — more bytes are needed; call BytesRead first
//	(0, Invalid, err)     — the buffer can never complete under the
//	                        current predicate (a protocol violation)
//
// On Complete, Pop consumes the message from the assembly buffer so
// the next Pop starts fresh. dst must be at least as large as the
// message; ErrTooLong is returned otherwise (the buffer is left
// consumed in this case since the data is unrecoverable without a
// larger destination).
func (r *MessageReader) Pop(dst []byte) (int, Need, error) {
	expected, need := r.bytesExpected(r.buf.Bytes())
	switch need {
	case Incomplete:
		return 0, Incomplete, nil
	case Invalid:
		return 0, Invalid, ErrProtocolViolation
	}

	if expected > r.buf.Capacity() {
		r.Reset()
		return 0, Invalid, ErrTooLong
	}
	if expected > r.buf.Size() {
		return 0, Incomplete, nil
	}

	if expected > len(dst) {
		r.Reset()
		return 0, Invalid, ErrTooLong
	}

	n := copy(dst, r.buf.Bytes()[:expected])
	r.buf.PopFrontN(expected)
	return n, Complete, nil
}

// Clone returns a fresh MessageReader with the same capacity,
// predicate and error-correction setting but an empty buffer.
// Transport.Accept calls it for every accepted child so each child
// gets its own independent assembly state.
func (r *MessageReader) Clone() *MessageReader {
	return &MessageReader{
		buf:             bytemsg.New(r.buf.Capacity()),
		bytesExpected:   r.bytesExpected,
		errorCorrection: r.errorCorrection,
	}
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import "errors"

var (
	// ErrInvalidArgument reports an invalid configuration or nil reader/writer.
	ErrInvalidArgument = errors.New("framing: invalid argument")

	// ErrTooLong reports that a frame length exceeds the MessageReader's
	// capacity, the destination buffer passed to Pop, or the wire
	// format's supported range.
	ErrTooLong = errors.New("framing: message too long")

	// ErrProtocolViolation reports that bytes_expected rejected the
	// current buffer contents outright (not merely incomplete).
	ErrProtocolViolation = errors.New("framing: protocol violation")

	// ErrPartialMessage reports that a composite datagram from a
	// message-oriented child contained a trailing partial message.
	// Policy forbids silently buffering across datagrams from a
	// boundary-preserving substrate.
	ErrPartialMessage = errors.New("framing: partial message in datagram")
)

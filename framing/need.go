// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

// Need is the result of evaluating a BytesExpectedFunc against the
// bytes assembled so far.
//
// The original C++ MessageReader::Pop conflated "need more data" with
// "message size 0" by returning a bare byte count of zero for both.
// That collides with a legitimate empty message. Need keeps the two
// apart: Incomplete always means "call again after more bytes arrive",
// Complete(n) always means exactly n bytes (possibly zero) make one
// whole message, and Invalid means the buffer can never be completed
// under this predicate (a protocol violation, not a short read).
type Need int

const (
	// Incomplete: more bytes are required before a message can be
	// extracted; n is meaningless.
	Incomplete Need = iota
	// Complete: exactly n bytes (from the start of the buffer) make one
	// whole message. n may be zero.
	Complete
	// Invalid: the buffer's current contents can never resolve to a
	// valid message under this predicate; a decoding/protocol error.
	Invalid
)

// BytesExpectedFunc computes, from the bytes assembled so far (buf),
// how many bytes make up the next whole message. It corresponds to the
// spec's pluggable "bytes_expected(buf, len) -> (expected, ok)"
// predicate. Implementations must be pure functions of buf's contents.
type BytesExpectedFunc func(buf []byte) (n int, need Need)

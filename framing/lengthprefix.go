// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import (
	"encoding/binary"

	"code.hybscloud.com/transport/framing/internal/bo"
)

// Wire format (stream mode), ported unchanged from the teacher's
// length-prefix scheme: a 1-byte header followed by optional extended
// length bytes and then the payload. Let L be the payload length in
// bytes:
//
//	0 <= L <= 253:           header[0] = L            (no extended length)
//	254 <= L <= 65535:       header[0] = 0xFE, next 2 bytes encode L
//	65536 <= L <= 2^56-1:    header[0] = 0xFF, next 7 bytes encode the
//	                         lower 56 bits of L
//
// Maximum supported payload is 2^56-1; larger values produce ErrTooLong.
const (
	extendedLen16Marker = 0xFE
	extendedLen56Marker = 0xFF
	maxShortLen         = 0xFE - 1 // 253
	maxLen16            = 1<<16 - 1
	maxLen56            = 1<<56 - 1
)

// LengthPrefix builds a BytesExpectedFunc implementing the wire format
// above, with multi-byte length fields encoded in order. This is the
// default predicate used by stream substrates (TCP, Unix, named pipes)
// whose Transport.MessageOriented() is false. A nil order defaults to
// the host's native byte order, appropriate when the framed bytes never
// leave the machine (a same-host pipe or Unix socket); a cross-network
// substrate should always pass an explicit order instead.
func LengthPrefix(order binary.ByteOrder) BytesExpectedFunc {
	if order == nil {
		order = bo.Native()
	}
	return func(buf []byte) (int, Need) {
		if len(buf) == 0 {
			return 0, Incomplete
		}
		switch buf[0] {
		case extendedLen16Marker:
			if len(buf) < 3 {
				return 0, Incomplete
			}
			l := order.Uint16(buf[1:3])
			return 3 + int(l), Complete
		case extendedLen56Marker:
			if len(buf) < 8 {
				return 0, Incomplete
			}
			var b8 [8]byte
			var l uint64
			if order == binary.BigEndian {
				copy(b8[1:], buf[1:8])
				l = binary.BigEndian.Uint64(b8[:])
			} else {
				copy(b8[:7], buf[1:8])
				l = binary.LittleEndian.Uint64(b8[:])
			}
			if l > maxLen56 {
				return 0, Invalid
			}
			return 8 + int(l), Complete
		default:
			return 1 + int(buf[0]), Complete
		}
	}
}

// EncodeLengthPrefix encodes payload using the LengthPrefix wire
// format. Framing of outgoing bytes is the caller's responsibility
// (Transport.Write is a pure pass-through); this helper
// is what a caller uses to produce bytes a LengthPrefix reader on the
// other end can deframe. A nil order defaults to the host's native byte
// order, matching LengthPrefix's default.
func EncodeLengthPrefix(order binary.ByteOrder, payload []byte) ([]byte, error) {
	if order == nil {
		order = bo.Native()
	}
	l := len(payload)
	switch {
	case l <= maxShortLen:
		out := make([]byte, 1+l)
		out[0] = byte(l)
		copy(out[1:], payload)
		return out, nil
	case l <= maxLen16:
		out := make([]byte, 3+l)
		out[0] = extendedLen16Marker
		order.PutUint16(out[1:3], uint16(l))
		copy(out[3:], payload)
		return out, nil
	case l <= maxLen56:
		out := make([]byte, 8+l)
		out[0] = extendedLen56Marker
		var b8 [8]byte
		if order == binary.BigEndian {
			binary.BigEndian.PutUint64(b8[:], uint64(l))
			copy(out[1:8], b8[1:])
		} else {
			binary.LittleEndian.PutUint64(b8[:], uint64(l))
			copy(out[1:8], b8[:7])
		}
		copy(out[8:], payload)
		return out, nil
	default:
		return nil, ErrTooLong
	}
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bytemsg provides a bounded mutable byte buffer with three
// cursors (capacity, size, pos) used both as the framer's assembly
// buffer and as an ad-hoc packet encoder for the session wire protocol.
//
// Byte order is explicit at each typed accessor rather than fixed per
// buffer, since the session protocol is little-endian throughout while
// other wire formats (length-prefix framing) are configurable.
package bytemsg

import (
	"encoding/binary"
	"fmt"
)

// Message is a bounded mutable byte buffer. Invariant: 0 <= pos <= size
// <= capacity.
type Message struct {
	data []byte // len(data) == capacity
	size int
	pos  int
}

// New allocates a Message with the given fixed capacity.
func New(capacity int) *Message {
	return &Message{data: make([]byte, capacity)}
}

// Wrap adapts an existing slice as a Message buffer; capacity is
// cap(buf), size starts at len(buf).
func Wrap(buf []byte) *Message {
	return &Message{data: buf[:cap(buf)], size: len(buf)}
}

func (m *Message) Capacity() int { return cap(m.data) }
func (m *Message) Size() int     { return m.size }
func (m *Message) Pos() int      { return m.pos }

// Bytes returns the populated region [0:size).
func (m *Message) Bytes() []byte { return m.data[:m.size] }

// Remaining returns the unread region [pos:size).
func (m *Message) Remaining() []byte { return m.data[m.pos:m.size] }

// Free returns the unused capacity region [size:capacity), suitable as
// a destination for the next Read call.
func (m *Message) Free() []byte { return m.data[m.size:cap(m.data)] }

// Clear resets size and pos to zero without releasing the backing array.
func (m *Message) Clear() {
	m.size = 0
	m.pos = 0
}

// Grow marks n additional bytes (already written into Free()) as
// populated. Panics if it would exceed capacity: callers must bound n
// by len(Free()) first, matching the original's ByteBuffer::Write
// contract.
func (m *Message) Grow(n int) {
	if m.size+n > cap(m.data) {
		panic(fmt.Sprintf("bytemsg: grow %d exceeds capacity %d", n, cap(m.data)))
	}
	m.size += n
}

// Write appends p, growing size. Panics if it would exceed capacity.
func (m *Message) Write(p []byte) {
	n := copy(m.Free(), p)
	if n < len(p) {
		panic("bytemsg: write exceeds capacity")
	}
	m.Grow(n)
}

// PopFrontN rotates count bytes off the front of the populated region,
// shrinking size and clamping pos. Used by the framer's byte-skipping
// error-correction path and by the length-prefix codec to drop a
// consumed header/payload.
func (m *Message) PopFrontN(count int) {
	if count <= 0 {
		return
	}
	if count >= m.size {
		m.Clear()
		return
	}
	copy(m.data, m.data[count:m.size])
	m.size -= count
	if m.pos > m.size {
		m.pos = m.size
	} else if m.pos >= count {
		m.pos -= count
	} else {
		m.pos = 0
	}
}

// ReadByte reads one byte at pos and advances it.
func (m *Message) ReadByte() (byte, error) {
	if m.pos >= m.size {
		return 0, fmt.Errorf("bytemsg: read byte past size")
	}
	b := m.data[m.pos]
	m.pos++
	return b, nil
}

// WriteByte appends one byte.
func (m *Message) WriteByte(b byte) { m.Write([]byte{b}) }

// ReadUint16 reads a 2-byte integer at pos in the given order.
func (m *Message) ReadUint16(order binary.ByteOrder) (uint16, error) {
	if m.pos+2 > m.size {
		return 0, fmt.Errorf("bytemsg: read uint16 past size")
	}
	v := order.Uint16(m.data[m.pos : m.pos+2])
	m.pos += 2
	return v, nil
}

// WriteUint16 appends a 2-byte integer.
func (m *Message) WriteUint16(order binary.ByteOrder, v uint16) {
	var b [2]byte
	order.PutUint16(b[:], v)
	m.Write(b[:])
}

// ReadUint32 reads a 4-byte integer at pos in the given order.
func (m *Message) ReadUint32(order binary.ByteOrder) (uint32, error) {
	if m.pos+4 > m.size {
		return 0, fmt.Errorf("bytemsg: read uint32 past size")
	}
	v := order.Uint32(m.data[m.pos : m.pos+4])
	m.pos += 4
	return v, nil
}

// WriteUint32 appends a 4-byte integer.
func (m *Message) WriteUint32(order binary.ByteOrder, v uint32) {
	var b [4]byte
	order.PutUint32(b[:], v)
	m.Write(b[:])
}

// ReadString reads a length-prefixed (uint16 length) string, matching
// the session protocol's message_utils ReadMessageString/WriteMessageString.
func (m *Message) ReadString(order binary.ByteOrder) (string, error) {
	n, err := m.ReadUint16(order)
	if err != nil {
		return "", err
	}
	if m.pos+int(n) > m.size {
		return "", fmt.Errorf("bytemsg: read string past size")
	}
	s := string(m.data[m.pos : m.pos+int(n)])
	m.pos += int(n)
	return s, nil
}

// WriteString appends a length-prefixed (uint16 length) string.
func (m *Message) WriteString(order binary.ByteOrder, s string) {
	m.WriteUint16(order, uint16(len(s)))
	m.Write([]byte(s))
}

// ReadN reads n raw bytes at pos, returning a view (not a copy) into
// the buffer. Callers that retain the result beyond the next mutation
// must copy it themselves.
func (m *Message) ReadN(n int) ([]byte, error) {
	if m.pos+n > m.size {
		return nil, fmt.Errorf("bytemsg: read %d bytes past size", n)
	}
	b := m.data[m.pos : m.pos+n]
	m.pos += n
	return b, nil
}

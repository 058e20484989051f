// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"github.com/google/uuid"
)

// ID is a session identifier, the Go analogue of the original's
// string-typed SessionID (boost::uuids::to_string). It is carried on
// the wire as its raw 16 bytes rather than the original's
// hyphenated-string form, which is a pure wire-format economy: 16
// bytes against the 36-byte string the original quotes, with no change
// in the value space.
type ID [16]byte

// NewID generates a random session id, grounded on the original's
// CreateSessionID (boost::uuids::random_generator) and backed here by
// google/uuid, version 4.
func NewID() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value, used to distinguish an
// unassigned session id from a generated one.
func (id ID) IsZero() bool {
	return id == ID{}
}

func decodeID(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}

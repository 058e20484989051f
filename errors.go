// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

// Error is the package's sentinel error taxonomy. Decorators never
// swallow a child's Error; they surface it unchanged unless the spec
// calls for a more specific code (see framing.ErrTooLong, for example).
type Error uint32

const (
	// ErrOK is never returned as an error; it exists so Error has a
	// documented success sentinel matching spec's taxonomy.
	ErrOK Error = iota
	ErrFailed
	ErrAborted
	ErrInvalidArgument
	ErrAccessDenied
	ErrAddressInUse
	ErrConnectionClosed
	ErrInvalidHandle
	ErrIOPending
	ErrNotImplemented
	ErrTimedOut
)

var errorText = map[Error]string{
	ErrOK:               "ok",
	ErrFailed:           "failed",
	ErrAborted:          "aborted",
	ErrInvalidArgument:  "invalid argument",
	ErrAccessDenied:     "access denied",
	ErrAddressInUse:     "address in use",
	ErrConnectionClosed: "connection closed",
	ErrInvalidHandle:    "invalid handle",
	ErrIOPending:        "io pending",
	ErrNotImplemented:   "not implemented",
	ErrTimedOut:         "timed out",
}

func (e Error) Error() string {
	if s, ok := errorText[e]; ok {
		return "transport: " + s
	}
	return "transport: unknown error"
}

// Errors are compared with errors.Is; wrap with fmt.Errorf("...: %w", err)
// at call sites, as code.hybscloud.com/iox's ErrWouldBlock/ErrMore are
// compared throughout the teacher's test suite.

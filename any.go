// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"

	"code.hybscloud.com/transport/executor"
)

// Any is an owning wrapper that forwards every Transport operation to
// an inner Transport, tolerating an empty (unbound) state by
// translating every call into ErrInvalidHandle. It lets callers pass
// "maybe nothing yet" around as a plain Transport value, e.g. the
// not-yet-accepted slot in a passive accept loop.
type Any struct {
	inner Transport
}

// NewAny wraps an already-constructed Transport. Passing nil produces a
// valid, empty Any.
func NewAny(t Transport) Any { return Any{inner: t} }

// Bound reports whether an inner Transport has been set.
func (a Any) Bound() bool { return a.inner != nil }

// Unwrap returns the inner Transport, or nil if unbound.
func (a Any) Unwrap() Transport { return a.inner }

func (a Any) Open(ctx context.Context) error {
	if a.inner == nil {
		return ErrInvalidHandle
	}
	return a.inner.Open(ctx)
}

func (a Any) Close() error {
	if a.inner == nil {
		return ErrInvalidHandle
	}
	return a.inner.Close()
}

func (a Any) Accept(ctx context.Context) (Transport, error) {
	if a.inner == nil {
		return nil, ErrInvalidHandle
	}
	return a.inner.Accept(ctx)
}

func (a Any) Read(ctx context.Context, p []byte) (int, error) {
	if a.inner == nil {
		return 0, ErrInvalidHandle
	}
	return a.inner.Read(ctx, p)
}

func (a Any) Write(ctx context.Context, p []byte) (int, error) {
	if a.inner == nil {
		return 0, ErrInvalidHandle
	}
	return a.inner.Write(ctx, p)
}

func (a Any) Name() string {
	if a.inner == nil {
		return "UNBOUND"
	}
	return a.inner.Name()
}

func (a Any) MessageOriented() bool { return a.inner != nil && a.inner.MessageOriented() }
func (a Any) Active() bool         { return a.inner != nil && a.inner.Active() }
func (a Any) Connected() bool      { return a.inner != nil && a.inner.Connected() }

func (a Any) Executor() executor.Executor {
	if a.inner == nil {
		return executor.Inline{}
	}
	return a.inner.Executor()
}

var _ Transport = Any{}

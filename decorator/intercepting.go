// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decorator

import (
	"context"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Interceptor can short-circuit a Write before it reaches the child
// transport. InterceptWrite returns ok=false to let the write proceed
// normally. Used by tests that want to observe or fake outgoing bytes
// without standing up a real peer.
type Interceptor interface {
	InterceptWrite(ctx context.Context, p []byte) (n int, ok bool, err error)
}

// Intercepting wraps a child transport.Transport, routing every Write
// through an Interceptor first. Every other method passes through
// unchanged.
type Intercepting struct {
	child       transport.Transport
	interceptor Interceptor
}

// NewIntercepting wraps child, consulting interceptor on every Write.
func NewIntercepting(child transport.Transport, interceptor Interceptor) *Intercepting {
	return &Intercepting{child: child, interceptor: interceptor}
}

func (t *Intercepting) Open(ctx context.Context) error { return t.child.Open(ctx) }
func (t *Intercepting) Close() error                   { return t.child.Close() }

func (t *Intercepting) Read(ctx context.Context, p []byte) (int, error) {
	return t.child.Read(ctx, p)
}

func (t *Intercepting) Write(ctx context.Context, p []byte) (int, error) {
	if n, ok, err := t.interceptor.InterceptWrite(ctx, p); ok {
		return n, err
	}
	return t.child.Write(ctx, p)
}

func (t *Intercepting) Accept(ctx context.Context) (transport.Transport, error) {
	return t.child.Accept(ctx)
}

func (t *Intercepting) Name() string { return t.child.Name() }

func (t *Intercepting) MessageOriented() bool { return t.child.MessageOriented() }
func (t *Intercepting) Active() bool          { return t.child.Active() }
func (t *Intercepting) Connected() bool       { return t.child.Connected() }

func (t *Intercepting) Executor() executor.Executor { return t.child.Executor() }

var _ transport.Transport = (*Intercepting)(nil)

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decorator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Deferred gates a child transport.Transport behind an explicit
// connected flag, independent of the child's own lifecycle. It lets an
// owner bind a transport immediately but withhold Read/Write access
// until some later readiness condition is met (and revoke it again
// without tearing the child down), mirroring the original's
// DeferredTransport/set_connected split between object lifetime and
// logical connectedness.
type Deferred struct {
	child  transport.Transport
	logger zerolog.Logger

	mu                  sync.Mutex
	connected           bool
	additionalCloseFunc func(error)
}

// NewDeferred wraps child, starting in the disconnected state.
func NewDeferred(child transport.Transport) *Deferred {
	return &Deferred{child: child, logger: zerolog.Nop()}
}

// WithLogger attaches structured logging to a Deferred, for visibility
// into the additional close handler's outcome.
func WithLogger(d *Deferred, logger zerolog.Logger) *Deferred {
	d.logger = logger
	return d
}

// SetConnected flips the gate. Intended for active transports whose
// owner wants to delay Read/Write availability after Open succeeds.
func (d *Deferred) SetConnected(connected bool) {
	d.mu.Lock()
	d.connected = connected
	d.mu.Unlock()
}

// SetAdditionalCloseHandler registers a callback run once, after Close
// tears down the child, in addition to whatever the caller does with
// Close's return value. Matches the original's additional_close_handler_,
// used when something besides the direct caller of Close also needs to
// observe it (e.g. an owning Session removing this transport from its
// accept table).
func (d *Deferred) SetAdditionalCloseHandler(fn func(error)) {
	d.mu.Lock()
	d.additionalCloseFunc = fn
	d.mu.Unlock()
}

func (d *Deferred) isConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Deferred) Open(ctx context.Context) error {
	d.SetConnected(true)
	if d.child.Connected() {
		return nil
	}
	return d.child.Open(ctx)
}

func (d *Deferred) Close() error {
	d.mu.Lock()
	fn := d.additionalCloseFunc
	d.connected = false
	d.additionalCloseFunc = nil
	d.mu.Unlock()

	err := d.child.Close()
	if fn != nil {
		if err != nil {
			d.logger.Warn().Err(err).Msg("deferred transport close handler notified of error")
		}
		fn(err)
	}
	return err
}

func (d *Deferred) Accept(ctx context.Context) (transport.Transport, error) {
	if !d.isConnected() {
		return nil, transport.ErrAccessDenied
	}
	return d.child.Accept(ctx)
}

func (d *Deferred) Read(ctx context.Context, p []byte) (int, error) {
	if !d.isConnected() {
		return 0, transport.ErrAccessDenied
	}
	return d.child.Read(ctx, p)
}

func (d *Deferred) Write(ctx context.Context, p []byte) (int, error) {
	if !d.isConnected() {
		return 0, transport.ErrAccessDenied
	}
	return d.child.Write(ctx, p)
}

func (d *Deferred) Name() string { return d.child.Name() }

func (d *Deferred) MessageOriented() bool { return d.child.MessageOriented() }
func (d *Deferred) Active() bool          { return d.child.Active() }
func (d *Deferred) Connected() bool       { return d.isConnected() }

func (d *Deferred) Executor() executor.Executor { return d.child.Executor() }

var _ transport.Transport = (*Deferred)(nil)

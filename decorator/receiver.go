// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decorator

import (
	"context"

	transport "code.hybscloud.com/transport"
)

// MessageReceiver repeatedly reads whole messages from a transport and
// hands each one to a handler, until the transport closes, errors, or
// ctx is canceled. It owns its read buffer so the handler never has to
// reason about buffer lifetime beyond the call it's given.
type MessageReceiver struct {
	transport      transport.Transport
	maxMessageSize int
}

// NewMessageReceiver wraps transport, sizing its read buffer to
// maxMessageSize.
func NewMessageReceiver(t transport.Transport, maxMessageSize int) *MessageReceiver {
	return &MessageReceiver{transport: t, maxMessageSize: maxMessageSize}
}

// Run blocks, delivering messages to handler until ctx is canceled, the
// transport returns an error, or a zero-length Read signals graceful
// close. It returns nil in the close/cancel case and the underlying
// error otherwise.
func (r *MessageReceiver) Run(ctx context.Context, handler func([]byte)) error {
	buf := make([]byte, r.maxMessageSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.transport.Read(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
		handler(buf[:n])
	}
}

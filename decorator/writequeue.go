// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decorator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	transport "code.hybscloud.com/transport"
)

// WriteQueue serializes Write calls onto a child transport.Transport so
// concurrent callers never interleave bytes mid-message. Each Write
// waits for the previous one queued ahead of it to finish before
// issuing its own, the same chained-channel-handoff structure as the
// original's WriteQueue (a shared_ptr<Channel> swapped under
// std::exchange, with the new caller awaiting the old one).
type WriteQueue struct {
	transport transport.Transport

	mu   sync.Mutex
	last chan struct{}

	// limiter, if set, paces the writes BlindWrite issues. It does not
	// bound how many BlindWrite tasks wait on the executor.
	limiter *rate.Limiter
}

// NewWriteQueue wraps transport. limiter may be nil, in which case
// BlindWrite is unthrottled.
func NewWriteQueue(t transport.Transport, limiter *rate.Limiter) *WriteQueue {
	return &WriteQueue{transport: t, limiter: limiter}
}

// Write enqueues data behind any Write already in flight and returns
// once this call's bytes have been written (or failed).
func (q *WriteQueue) Write(ctx context.Context, data []byte) (int, error) {
	mine := make(chan struct{})
	q.mu.Lock()
	prev := q.last
	q.last = mine
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			close(mine)
			return 0, ctx.Err()
		}
	}

	n, err := q.transport.Write(ctx, data)
	close(mine)
	return n, err
}

// BlindWrite hands data to the transport's own Executor and does not
// report the write's result. Whether the caller waits depends on that
// executor: a Strand runs the write, and any rate-limiter wait, on its
// own goroutine, while executor.Inline (the default of most substrates)
// runs both on the caller's goroutine before BlindWrite returns.
func (q *WriteQueue) BlindWrite(data []byte) {
	buf := append([]byte(nil), data...)
	q.transport.Executor().Go(func() {
		ctx := context.Background()
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}
		_, _ = q.Write(ctx, buf)
	})
}

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"

	transport "code.hybscloud.com/transport"
)

// readPump pulls whole frames off tr (already deframed if it wasn't
// natively message-oriented) and delivers them through b, so a
// restore-triggered hand-off to a different owning Session needs no
// restart of this loop. It exits once tr reports closed or errors.
func readPump(ctx context.Context, tr transport.Transport, b *binding) {
	buf := make([]byte, maxMessage)
	for {
		n, err := tr.Read(ctx, buf)
		if err != nil {
			b.transportClosed(fmt.Errorf("%w: %v", transport.ErrFailed, err))
			return
		}
		if n == 0 {
			b.transportClosed(transport.ErrConnectionClosed)
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		b.deliver(frame)
	}
}

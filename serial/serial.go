// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package serial implements the serial-port substrate: a byte-stream
// transport.Transport over a physical or virtual serial line, always
// active (a serial port has no listen/accept concept), matching the
// original's SerialTransport.
package serial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// pollInterval bounds how long a single underlying Read blocks before
// this package re-checks ctx; the serial library has no native
// cancellable read, so cancellation is polling-based rather than
// interrupt-based (unlike transport.Stream's SetDeadline trick over
// net.Conn).
const pollInterval = 100 * time.Millisecond

// Config carries the DSL's ByteSize/Parity/StopBits/FlowControl
// parameters through to tarm/serial's Config, ported from
// transport_factory.cpp's DCB assembly (ParseParity/ParseStopBits).
// FlowControl has no tarm/serial equivalent and is accepted but ignored,
// same as the original silently drops unsupported DCB fields on
// non-Windows builds.
type Config struct {
	Name        string
	Baud        int
	Size        byte
	Parity      serial.Parity
	StopBits    serial.StopBits
	FlowControl string
}

// Transport wraps a serial.Port as a transport.Transport. It is always
// active: Active() is unconditionally true, matching the original
// (a serial line has one end, not a listener/acceptor pair).
type Transport struct {
	cfg  Config
	exec executor.Executor

	mu     sync.Mutex
	port   *serial.Port
	closed bool
}

// Dial returns a Transport bound to the named serial device (e.g.
// "/dev/ttyUSB0", "COM3") at the given baud rate, with default framing
// (8N1, no flow control).
func Dial(name string, baud int, exec executor.Executor) *Transport {
	return DialConfig(Config{Name: name, Baud: baud}, exec)
}

// DialConfig returns a Transport with the full DSL-addressable framing
// parameters set.
func DialConfig(cfg Config, exec executor.Executor) *Transport {
	return &Transport{cfg: cfg, exec: exec}
}

func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrConnectionClosed
	}
	if t.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        t.cfg.Name,
		Baud:        t.cfg.Baud,
		Size:        t.cfg.Size,
		Parity:      t.cfg.Parity,
		StopBits:    t.cfg.StopBits,
		ReadTimeout: pollInterval,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	t.port = port
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	t.closed = true
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return nil
}

func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	return nil, transport.ErrAccessDenied
}

// Read polls the underlying port in pollInterval-sized slices so a
// canceled ctx is noticed promptly even though the library itself
// can't be interrupted mid-call.
func (t *Transport) Read(ctx context.Context, p []byte) (int, error) {
	port := t.currentPort()
	if port == nil {
		return 0, transport.ErrConnectionClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", transport.ErrAborted, err)
		}
		n, err := port.Read(p)
		if err != nil {
			return n, fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		if n > 0 {
			return n, nil
		}
		// ReadTimeout elapsed with no data: loop and recheck ctx.
	}
}

func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	port := t.currentPort()
	if port == nil {
		return 0, transport.ErrConnectionClosed
	}
	total := 0
	for total < len(p) {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("%w: %v", transport.ErrAborted, err)
		}
		n, err := port.Write(p[total:])
		if err != nil {
			return total, fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		total += n
	}
	return total, nil
}

func (t *Transport) currentPort() *serial.Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

func (t *Transport) Name() string { return "SERIAL:" + t.cfg.Name }

func (t *Transport) MessageOriented() bool { return false }
func (t *Transport) Active() bool          { return true }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil && !t.closed
}

func (t *Transport) Executor() executor.Executor {
	if t.exec == nil {
		return executor.Inline{}
	}
	return t.exec
}

var _ transport.Transport = (*Transport)(nil)

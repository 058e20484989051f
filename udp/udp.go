// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package udp implements the UDP substrate: a message-oriented
// transport.Transport over net.UDPConn. In active mode it behaves like
// a connected socket to one peer. In passive mode it is a demultiplexer
// over a single bound socket, handing out one accepted transport per
// distinct remote address, matching the original's AsioUdpTransport
// (UdpCore / UdpPassiveCore / AcceptedTransport split).
package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Transport is the UDP substrate, either a connected active socket or
// a passive demultiplexing listener.
type Transport struct {
	host, service string
	active        bool
	exec          executor.Executor
	logger        zerolog.Logger

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool

	// passive-only demultiplexing state.
	peers  map[string]*acceptedTransport
	accept chan *acceptedTransport
}

// Dial returns an active Transport connected to host:service.
func Dial(host, service string, exec executor.Executor) *Transport {
	return &Transport{host: host, service: service, active: true, exec: exec, logger: zerolog.Nop()}
}

// Listen returns a passive Transport bound to host:service, demuxing
// datagrams from distinct remote addresses into separate accepted
// transports.
func Listen(host, service string, exec executor.Executor) *Transport {
	return &Transport{
		host: host, service: service, exec: exec, logger: zerolog.Nop(),
		peers:  make(map[string]*acceptedTransport),
		accept: make(chan *acceptedTransport, 64),
	}
}

// WithLogger attaches structured logging to a Transport built by Dial
// or Listen, for visibility into the background readLoop goroutine a
// passive Transport runs.
func WithLogger(t *Transport, logger zerolog.Logger) *Transport {
	t.logger = logger
	return t
}

func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrConnectionClosed
	}
	if t.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(t.host, t.service))
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	if t.active {
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		t.conn = conn
		return nil
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	t.conn = conn
	go t.readLoop(conn)
	return nil
}

func (t *Transport) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			t.logger.Warn().Err(err).Msg("udp read error, continuing")
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		t.dispatch(addr, datagram)
	}
}

func (t *Transport) dispatch(addr *net.UDPAddr, datagram []byte) {
	key := addr.String()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	peer, ok := t.peers[key]
	if !ok {
		peer = newAcceptedTransport(t, addr)
		t.peers[key] = peer
	}
	t.mu.Unlock()
	if !ok {
		select {
		case t.accept <- peer:
		default:
			t.logger.Warn().Str("peer", key).Msg("accept queue full, dropping new peer")
			t.mu.Lock()
			delete(t.peers, key)
			t.mu.Unlock()
			return
		}
	}
	peer.deliver(datagram)
}

func (t *Transport) writeTo(addr *net.UDPAddr, p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()
	if closed || conn == nil {
		return 0, transport.ErrConnectionClosed
	}
	n, err := conn.WriteToUDP(p, addr)
	if err != nil {
		return n, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return n, nil
}

func (t *Transport) removePeer(addr *net.UDPAddr) {
	t.mu.Lock()
	delete(t.peers, addr.String())
	t.mu.Unlock()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	t.closed = true
	conn := t.conn
	peers := make([]*acceptedTransport, 0, len(t.peers))
	for _, peer := range t.peers {
		peers = append(peers, peer)
	}
	t.peers = nil
	if t.accept != nil {
		close(t.accept)
	}
	t.mu.Unlock()

	// Tearing down a busy demultiplexer can mean closing hundreds of
	// per-peer accepted transports; fan them out and report the first
	// failure rather than serializing the teardown.
	var g errgroup.Group
	for _, peer := range peers {
		peer := peer
		g.Go(func() error { return peer.closeFromParent() })
	}
	closeErr := g.Wait()

	if conn == nil {
		return closeErr
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return closeErr
}

func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	t.mu.Lock()
	ch := t.accept
	t.mu.Unlock()
	if ch == nil {
		return nil, transport.ErrAccessDenied
	}
	select {
	case peer, ok := <-ch:
		if !ok {
			return nil, transport.ErrConnectionClosed
		}
		return peer, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

// Read is only meaningful on an active Transport; a passive
// (demultiplexing) Transport has no single stream to read and returns
// ErrAccessDenied (the original's UdpPassiveCore::Read returned
// ERR_FAILED).
func (t *Transport) Read(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	conn, active := t.conn, t.active
	t.mu.Unlock()
	if !active {
		return 0, transport.ErrAccessDenied
	}
	if conn == nil {
		return 0, transport.ErrConnectionClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	n, err := conn.Read(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return n, nil
}

func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	conn, active := t.conn, t.active
	t.mu.Unlock()
	if !active {
		return 0, transport.ErrAccessDenied
	}
	if conn == nil {
		return 0, transport.ErrConnectionClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	n, err := conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return n, nil
}

func (t *Transport) Name() string { return "UDP" }

func (t *Transport) MessageOriented() bool { return true }
func (t *Transport) Active() bool          { return t.active }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.closed
}

func (t *Transport) Executor() executor.Executor {
	if t.exec == nil {
		return executor.Inline{}
	}
	return t.exec
}

var _ transport.Transport = (*Transport)(nil)

// acceptedTransport is one passive-side peer, identified by its remote
// address, handed out of Transport.Accept. Unlike the original's
// AcceptedTransport (whose Read was left unimplemented, returning
// ERR_FAILED unconditionally), this Read actually delivers the
// datagrams the demultiplexer routes to it.
type acceptedTransport struct {
	parent *Transport
	addr   *net.UDPAddr
	exec   executor.Executor

	mu     sync.Mutex
	closed bool
	recv   chan []byte
}

func newAcceptedTransport(parent *Transport, addr *net.UDPAddr) *acceptedTransport {
	return &acceptedTransport{parent: parent, addr: addr, exec: parent.exec, recv: make(chan []byte, 64)}
}

// deliver and the close paths below share a.mu so a datagram can never
// be sent into a.recv after it's been closed: closing and dispatching
// are mutually exclusive, not just racing against a best-effort flag.
func (a *acceptedTransport) deliver(datagram []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.recv <- datagram:
	default:
	}
}

func (a *acceptedTransport) closeFromParent() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.recv)
	return nil
}

func (a *acceptedTransport) Open(ctx context.Context) error { return nil }

func (a *acceptedTransport) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	a.closed = true
	close(a.recv)
	a.mu.Unlock()
	a.parent.removePeer(a.addr)
	return nil
}

func (a *acceptedTransport) Accept(ctx context.Context) (transport.Transport, error) {
	return nil, transport.ErrAccessDenied
}

func (a *acceptedTransport) Read(ctx context.Context, p []byte) (int, error) {
	select {
	case datagram, ok := <-a.recv:
		if !ok {
			return 0, nil
		}
		return copy(p, datagram), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

func (a *acceptedTransport) Write(ctx context.Context, p []byte) (int, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return 0, transport.ErrConnectionClosed
	}
	return a.parent.writeTo(a.addr, p)
}

func (a *acceptedTransport) Name() string { return "UDP" }

func (a *acceptedTransport) MessageOriented() bool { return true }
func (a *acceptedTransport) Active() bool          { return false }

func (a *acceptedTransport) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

func (a *acceptedTransport) Executor() executor.Executor {
	if a.exec == nil {
		return executor.Inline{}
	}
	return a.exec
}

var _ transport.Transport = (*acceptedTransport)(nil)

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package inprocess implements the in-process substrate: message-oriented
// transports that connect within one process via a named channel
// registry, with no syscalls or serialization involved.
package inprocess

import (
	"context"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

// Host is the channel-name registry a process's in-process transports
// share, the Go analogue of the original's InprocessTransportHost
// (listeners_ map keyed by channel name). The zero value is ready to
// use.
type Host struct {
	mu      sync.Mutex
	servers map[string]*Server
}

// NewServer returns a passive transport.Transport bound to channelName.
// Open registers it with the host; Accept hands out one endpoint per
// client that successfully opens a matching Client.
func (h *Host) NewServer(channelName string, exec executor.Executor) *Server {
	return &Server{host: h, channelName: channelName, exec: exec, accept: make(chan *endpoint, 16)}
}

// NewClient returns an active transport.Transport that connects to
// channelName on Open.
func (h *Host) NewClient(channelName string, exec executor.Executor) *Client {
	return &Client{host: h, channelName: channelName, exec: exec}
}

func (h *Host) register(name string, s *Server) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.servers == nil {
		h.servers = make(map[string]*Server)
	}
	if _, exists := h.servers[name]; exists {
		return transport.ErrAddressInUse
	}
	h.servers[name] = s
	return nil
}

func (h *Host) unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.servers, name)
}

func (h *Host) find(name string) *Server {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.servers[name]
}

// endpoint is one side of a connected pair: messages written to it
// arrive as messages read from its peer, and vice versa. Client and the
// value Server.Accept hands out are both *endpoint values wired
// crosswise, replacing the original's Client/AcceptedClient pair with
// one shared implementation.
type endpoint struct {
	name string
	exec executor.Executor

	recv chan []byte
	send chan []byte

	mu     sync.Mutex
	closed bool
	peer   *endpoint
}

// newPair names each side with a short, log-friendly connection token
// appended to the channel name, so concurrent connections to the same
// channel are distinguishable in logs without a full UUID's width.
func newPair(clientName, serverName string, exec executor.Executor) (client, accepted *endpoint) {
	token := shortuuid.New()
	c2s := make(chan []byte, 64)
	s2c := make(chan []byte, 64)
	client = &endpoint{name: clientName + "#" + token, exec: exec, send: c2s, recv: s2c}
	accepted = &endpoint{name: serverName + "#" + token, exec: exec, send: s2c, recv: c2s}
	client.peer, accepted.peer = accepted, client
	return client, accepted
}

func (e *endpoint) Open(ctx context.Context) error { return nil }

func (e *endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	e.closed = true
	e.mu.Unlock()

	if e.peer != nil {
		e.peer.mu.Lock()
		peerClosed := e.peer.closed
		e.peer.closed = true
		e.peer.mu.Unlock()
		if !peerClosed {
			close(e.peer.recv)
		}
	}
	return nil
}

func (e *endpoint) Accept(ctx context.Context) (transport.Transport, error) {
	return nil, transport.ErrAccessDenied
}

func (e *endpoint) Read(ctx context.Context, p []byte) (int, error) {
	select {
	case msg, ok := <-e.recv:
		if !ok {
			return 0, nil
		}
		return copy(p, msg), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

func (e *endpoint) Write(ctx context.Context, p []byte) (int, error) {
	if e.isClosed() {
		return 0, transport.ErrConnectionClosed
	}
	msg := append([]byte(nil), p...)
	select {
	case e.send <- msg:
		return len(p), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

func (e *endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *endpoint) Name() string { return e.name }

func (e *endpoint) MessageOriented() bool { return true }

func (e *endpoint) Active() bool { return true }

func (e *endpoint) Connected() bool { return !e.isClosed() }

func (e *endpoint) Executor() executor.Executor {
	if e.exec == nil {
		return executor.Inline{}
	}
	return e.exec
}

var _ transport.Transport = (*endpoint)(nil)

// Server listens on a channel name; each successfully opened Client
// produces one accepted endpoint delivered from Accept.
type Server struct {
	host        *Host
	channelName string
	exec        executor.Executor

	mu     sync.Mutex
	opened bool

	accept chan *endpoint
}

func (s *Server) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return transport.ErrAddressInUse
	}
	if err := s.host.register(s.channelName, s); err != nil {
		return err
	}
	s.opened = true
	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	s.opened = false
	s.mu.Unlock()
	s.host.unregister(s.channelName)
	return nil
}

func (s *Server) Accept(ctx context.Context) (transport.Transport, error) {
	select {
	case accepted := <-s.accept:
		return accepted, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

// acceptClient is called by a Client's Open on successful lookup.
func (s *Server) acceptClient(acceptedEp *endpoint) error {
	select {
	case s.accept <- acceptedEp:
		return nil
	default:
		return transport.ErrFailed
	}
}

func (s *Server) Read(ctx context.Context, p []byte) (int, error) { return 0, transport.ErrAccessDenied }
func (s *Server) Write(ctx context.Context, p []byte) (int, error) {
	return 0, transport.ErrAccessDenied
}

func (s *Server) Name() string { return "server:" + s.channelName }

func (s *Server) MessageOriented() bool { return true }
func (s *Server) Active() bool          { return false }

func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Server) Executor() executor.Executor {
	if s.exec == nil {
		return executor.Inline{}
	}
	return s.exec
}

var _ transport.Transport = (*Server)(nil)

// Client connects to a Server registered under the same channel name.
type Client struct {
	host        *Host
	channelName string
	exec        executor.Executor

	mu sync.Mutex
	ep *endpoint
}

func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ep != nil {
		return transport.ErrAddressInUse
	}
	server := c.host.find(c.channelName)
	if server == nil {
		return transport.ErrAddressInUse
	}
	clientEp, acceptedEp := newPair(
		fmt.Sprintf("client:%s", c.channelName),
		fmt.Sprintf("server:%s", c.channelName),
		c.exec,
	)
	if err := server.acceptClient(acceptedEp); err != nil {
		return err
	}
	c.ep = clientEp
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	ep := c.ep
	c.mu.Unlock()
	if ep == nil {
		return transport.ErrConnectionClosed
	}
	return ep.Close()
}

func (c *Client) Accept(ctx context.Context) (transport.Transport, error) {
	return nil, transport.ErrAccessDenied
}

func (c *Client) Read(ctx context.Context, p []byte) (int, error) {
	ep := c.current()
	if ep == nil {
		return 0, transport.ErrConnectionClosed
	}
	return ep.Read(ctx, p)
}

func (c *Client) Write(ctx context.Context, p []byte) (int, error) {
	ep := c.current()
	if ep == nil {
		return 0, transport.ErrConnectionClosed
	}
	return ep.Write(ctx, p)
}

func (c *Client) current() *endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep
}

func (c *Client) Name() string { return "client:" + c.channelName }

func (c *Client) MessageOriented() bool { return true }
func (c *Client) Active() bool          { return true }

func (c *Client) Connected() bool {
	ep := c.current()
	return ep != nil && ep.Connected()
}

func (c *Client) Executor() executor.Executor {
	if c.exec == nil {
		return executor.Inline{}
	}
	return c.exec
}

var _ transport.Transport = (*Client)(nil)

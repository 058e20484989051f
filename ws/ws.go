// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ws implements the WebSocket substrate: a message-oriented
// transport.Transport over github.com/gorilla/websocket, treating the
// handshake as an implementation detail and each WebSocket message as
// one Transport.Read/Write unit, per the original's
// WebSocketTransport::Connection (IsMessageOriented() == true).
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport is a WebSocket substrate in active (dial) or passive
// (listen/accept) mode.
type Transport struct {
	url    string // active: the ws:// or wss:// URL to dial
	addr   string // passive: the listen address
	path   string // passive: the HTTP path to upgrade
	active bool
	exec   executor.Executor

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex

	server *http.Server
	accept chan *Transport
}

// Dial returns an active Transport that connects to url (ws:// or
// wss://) on Open.
func Dial(url string, exec executor.Executor) *Transport {
	return &Transport{url: url, active: true, exec: exec}
}

// Listen returns a passive Transport that serves WebSocket upgrades at
// path on addr, handing each accepted connection out of Accept.
func Listen(addr, path string, exec executor.Executor) *Transport {
	return &Transport{addr: addr, path: path, exec: exec, accept: make(chan *Transport, 16)}
}

func newAccepted(conn *websocket.Conn, exec executor.Executor) *Transport {
	return &Transport{active: true, exec: exec, conn: conn}
}

func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrConnectionClosed
	}
	if t.active {
		if t.conn != nil {
			return nil
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", transport.ErrFailed, err)
		}
		t.conn = conn
		return nil
	}
	if t.server != nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case t.accept <- newAccepted(conn, t.exec):
		default:
			_ = conn.Close()
		}
	})
	srv := &http.Server{Addr: t.addr, Handler: mux}
	t.server = srv
	go srv.ListenAndServe()
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	t.closed = true
	conn, srv := t.conn, t.server
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	if srv != nil {
		if serr := srv.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return nil
}

func (t *Transport) Accept(ctx context.Context) (transport.Transport, error) {
	t.mu.Lock()
	ch := t.accept
	t.mu.Unlock()
	if ch == nil {
		return nil, transport.ErrAccessDenied
	}
	select {
	case accepted := <-ch:
		return accepted, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

func (t *Transport) Read(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, transport.ErrAccessDenied
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return copy(p, data), nil
}

func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, transport.ErrAccessDenied
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return len(p), nil
}

func (t *Transport) Name() string { return "WS" }

func (t *Transport) MessageOriented() bool { return true }
func (t *Transport) Active() bool          { return t.active }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	return t.conn != nil || t.server != nil
}

func (t *Transport) Executor() executor.Executor {
	if t.exec == nil {
		return executor.Inline{}
	}
	return t.exec
}

var _ transport.Transport = (*Transport)(nil)

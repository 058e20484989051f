// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session implements a reliable, ordered, reconnecting,
// multi-stream message session on top of any transport.Transport, the
// Go port of Session from session.h/session.cpp: a small wire protocol
// (CREATE/OPEN/CLOSE/MESSAGE/SEQUENCE/ACK/TEST), sliding-window
// acknowledgement, automatic reconnection with session-restore, long
// message fragmentation, two priority send queues, and an accept-side
// table of live child sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/decorator"
	"code.hybscloud.com/transport/executor"
	"code.hybscloud.com/transport/framing"
)

// State is the session's lifecycle stage, ported from session.h's
// CLOSED/OPENING/OPENED enum.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpened
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	default:
		return "unknown"
	}
}

// Listener receives session-level transport events that don't fit the
// Read/Write data path, ported from Session::SessionTransportObserver.
type Listener interface {
	// SessionRecovered fires once a lost transport has been replaced
	// and the peer confirmed the session restore.
	SessionRecovered()
	// SessionTransportError fires on a transient transport failure
	// while the session is opened; the session will keep retrying to
	// reconnect until closed.
	SessionTransportError(err error)
}

// Acceptor decides whether to admit a newly CREATE-d child session,
// ported from the original's handlers_.on_accept callback. It returns
// the Info to report back to the peer, or an error to refuse (surfaced
// to the peer as the CREATE response's error code).
type Acceptor func(child *Session, info CreateInfo) (Info, error)

// Stats mirrors session.cpp's num_bytes_sent_/num_bytes_received_/
// num_messages_sent_/num_messages_received_ counters.
type Stats struct {
	BytesReceived    uint64
	BytesSent        uint64
	MessagesReceived uint64
	MessagesSent     uint64
}

type queuedMessage struct {
	seq  bool
	data []byte
}

type sendingMessage struct {
	seq    bool
	sendID uint16
	data   []byte
}

// binding indirects a readPump goroutine's frame delivery through a
// swappable owner, so a transport accepted for a not-yet-identified
// child can be handed off to the pre-existing session it turns out to
// restore, without restarting the read loop. Grounds
// Session::DetachTransport, left as assert(false) in the original; this
// module implements the hand-off it only stubbed.
type binding struct {
	mu    sync.Mutex
	owner *Session
}

func (b *binding) deliver(frame []byte) {
	b.mu.Lock()
	owner := b.owner
	b.mu.Unlock()
	if owner == nil {
		return
	}
	owner.exec.Go(func() { owner.handleFrame(frame) })
}

func (b *binding) transportClosed(err error) {
	b.mu.Lock()
	owner := b.owner
	b.mu.Unlock()
	if owner == nil {
		return
	}
	owner.exec.Go(func() { owner.onReadPumpError(err) })
}

func (b *binding) rebind(owner *Session) {
	b.mu.Lock()
	b.owner = owner
	b.mu.Unlock()
}

// Option configures a Session at construction.
type Option func(*Session)

// WithCreateInfo sets the name/password/force tuple sent with CREATE.
// Only meaningful for client sessions.
func WithCreateInfo(info CreateInfo) Option {
	return func(s *Session) { s.createInfo = info }
}

// WithReconnectionPeriod overrides the default 1s delay between lost-
// transport detection and the next reconnection attempt.
func WithReconnectionPeriod(d time.Duration) Option {
	return func(s *Session) { s.reconnectionPeriod = d }
}

// WithListener registers the session-level event observer.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithAcceptor registers the accept-decision hook for a server session.
func WithAcceptor(a Acceptor) Option {
	return func(s *Session) { s.acceptor = a }
}

// WithLogger attaches structured logging, defaulting to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is a reliable, reconnecting, multi-stream message session.
// It implements transport.Transport: MessageOriented is always true;
// Active follows the usual client/listener split, true for NewClient
// and for accepted children, false for the NewServer parent.
type Session struct {
	exec   executor.Executor
	logger zerolog.Logger

	// dial produces a fresh underlying transport for the initial
	// connection and every reconnection. Set only on client sessions;
	// nil on accepted/server-managed sessions, which instead receive
	// their transport from newChild or an OPEN hand-off in onOpen.
	dial func(ctx context.Context) (transport.Transport, error)

	runCtx    context.Context
	runCancel context.CancelFunc

	mu         sync.RWMutex // guards fields read from outside the strand
	state      State
	id         ID
	accepted   bool
	active     bool
	parent     *Session
	tr         transport.Transport
	wq         *decorator.WriteQueue
	binding    *binding
	connecting bool
	connected  bool

	createInfo          CreateInfo
	info                Info
	reconnectionPeriod  time.Duration
	connectStart        time.Time

	// strand-confined: mutated only inside handleFrame/postMessage/
	// onTimer/etc, all of which run on exec.
	sendID             uint16
	recvID             uint16
	sendQueues         [2][]queuedMessage
	sendingMessages    []sendingMessage
	repeatSending      bool
	seqBuf             []byte
	numRecv            int
	receiveTime        time.Time

	listener Listener
	acceptor Acceptor

	// server-only: live accepted children by session id, and the set
	// of not-yet-admitted child sessions still negotiating CREATE/OPEN.
	acceptedByID  map[ID]*Session
	childSessions map[*Session]struct{}
	acceptCh      chan *Session
	listenTr      transport.Transport

	delivered chan []byte

	stats Stats

	closed bool

	// pendingOpenResult, when non-nil, is signaled exactly once with the
	// outcome of the session's very first CREATE attempt; strand-confined.
	pendingOpenResult chan error

	timerStop chan struct{}
}

// NewClient returns an active session that dials (and redials, on
// disconnect) through dial to reach its peer, sending CREATE on first
// connect and OPEN to restore on every subsequent reconnect.
func NewClient(exec executor.Executor, dial func(ctx context.Context) (transport.Transport, error), opts ...Option) *Session {
	s := newSession(exec, opts...)
	s.dial = dial
	s.active = true
	return s
}

// NewServer returns a parent session bound to a passive underlying
// transport (e.g. tcp.Listen(...)). Open starts accepting raw
// connections; each is promoted to a child Session once it completes
// CREATE, and delivered out of Accept.
func NewServer(exec executor.Executor, listen transport.Transport, opts ...Option) *Session {
	s := newSession(exec, opts...)
	s.listenTr = listen
	s.acceptedByID = make(map[ID]*Session)
	s.childSessions = make(map[*Session]struct{})
	s.acceptCh = make(chan *Session, 64)
	return s
}

func newSession(exec executor.Executor, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		exec:               exec,
		logger:             zerolog.Nop(),
		runCtx:             ctx,
		runCancel:          cancel,
		reconnectionPeriod: time.Second,
		delivered:          make(chan []byte, 1024),
		timerStop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newChild returns an accepted child of parent, bound to tr (already
// opened, raw or already message-oriented) via b.
func newChild(parent *Session, tr transport.Transport, b *binding) *Session {
	s := newSession(parent.exec, WithListener(parent.listener))
	s.accepted = true
	s.parent = parent
	s.state = StateOpening
	s.tr = tr
	s.wq = decorator.NewWriteQueue(tr, nil)
	s.binding = b
	s.connected = tr.Connected()
	s.active = true
	go s.timerLoop()
	return s
}

// Open starts the session. For a client, it blocks until the first
// CREATE completes (opened) or fails (fatal, matching the original's
// asymmetry between first-connect failures and later transient ones).
// For a server, it starts accepting and returns once listening.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return transport.ErrInvalidArgument
	}
	s.mu.Unlock()

	if s.listenTr != nil {
		return s.openServer(ctx)
	}
	return s.openClient(ctx)
}

func (s *Session) openServer(ctx context.Context) error {
	if err := s.listenTr.Open(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateOpened
	s.mu.Unlock()
	go s.acceptLoop()
	return nil
}

func (s *Session) acceptLoop() {
	for {
		raw, err := s.listenTr.Accept(s.runCtx)
		if err != nil {
			return
		}
		tr := raw
		if !tr.MessageOriented() {
			tr = framing.New(tr, newReader())
		}
		b := &binding{}
		child := newChild(s, tr, b)
		b.owner = child
		s.mu.Lock()
		s.childSessions[child] = struct{}{}
		s.mu.Unlock()
		go readPump(s.runCtx, tr, b)
	}
}

func (s *Session) openClient(ctx context.Context) error {
	if s.dial == nil {
		return transport.ErrInvalidHandle
	}
	s.mu.Lock()
	s.state = StateOpening
	s.mu.Unlock()

	result := make(chan error, 1)
	s.exec.Go(func() {
		s.startConnect(result)
	})
	go s.timerLoop()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", transport.ErrAborted, ctx.Err())
	}
}

// startConnect issues one dial attempt. openResult, if non-nil, is
// signaled exactly once with the outcome of this specific attempt
// (used only for the very first connect; later reconnections run with
// openResult nil and report failures via the Listener instead).
func (s *Session) startConnect(openResult chan error) {
	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return
	}
	s.connecting = true
	s.connectStart = time.Now()
	dial := s.dial
	s.mu.Unlock()

	s.logger.Info().Msg("connecting")

	go func() {
		tr, err := dial(s.runCtx)
		s.exec.Go(func() { s.onDialResult(tr, err, openResult) })
	}()
}

func (s *Session) onDialResult(tr transport.Transport, err error, openResult chan error) {
	s.mu.Lock()
	s.connecting = false
	s.mu.Unlock()

	if err != nil {
		s.onTransportError(err, openResult)
		return
	}
	if !tr.MessageOriented() {
		tr = framing.New(tr, newReader())
	}

	b := &binding{owner: s}
	s.mu.Lock()
	s.binding = b
	s.tr = tr
	s.wq = decorator.NewWriteQueue(tr, nil)
	s.connected = tr.Connected()
	s.mu.Unlock()

	go readPump(s.runCtx, tr, b)
	s.onTransportOpened(openResult)
}

func (s *Session) onTransportOpened(openResult chan error) {
	s.mu.Lock()
	accepted := s.accepted
	s.repeatSending = true
	restoring := s.state == StateOpened
	s.mu.Unlock()

	if accepted {
		return
	}
	if restoring {
		s.logger.Info().Str("session", s.idSnapshot().String()).Msg("restoring session")
		s.writeFrame(encodeOpen(s.idSnapshot()))
		return
	}
	s.logger.Info().Msg("creating new session")
	s.writeFrame(encodeCreate(s.createInfo))
	if openResult != nil {
		s.pendingOpenResult = openResult
	}
}

func (s *Session) idSnapshot() ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

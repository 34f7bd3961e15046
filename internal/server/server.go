// Package server implements the Textile relay: it accepts channels, completes
// the handshake for each, issues reconnect tokens and relays user messages
// between initiated sessions.
package server

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"textile-core/internal/chat"
	"textile-core/pkg/control"
	"textile-core/pkg/textile"
	"textile-core/pkg/transport"
	"textile-core/pkg/worker"
)

// Session flow: Accepted -> Initiate received -> Authorization + Initiate
// sent -> Relaying -> Closed. Sessions that do not initiate within the
// handshake timeout are dropped.

type Options struct {
	Bind             string
	Port             int
	HandshakeTimeout time.Duration
	TokenTTL         time.Duration
	ReapInterval     time.Duration
	// AcceptRate limits accepted connections per second; 0 disables it.
	AcceptRate  int
	AcceptBurst int
	MaxPayload  int
	Logger      *zap.Logger
	// Worker runs channel pumps. The server owns a private one when nil.
	Worker worker.Executor
}

type Server struct {
	opts   Options
	log    *zap.Logger
	tokens *TokenStore
	acc    *transport.Acceptor
	owned  *worker.Worker

	mu       sync.Mutex
	sessions map[*session]struct{}
	// conns holds every accepted transport, initiated or not.
	conns map[*textile.Transport]struct{}
	wg    sync.WaitGroup
}

type session struct {
	tr    *textile.Transport
	token string
	// nick is guarded by Server.mu.
	nick string
}

func New(opts Options) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 30 * time.Minute
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		opts:     opts,
		log:      opts.Logger.Named("relay"),
		tokens:   NewTokenStore(),
		sessions: make(map[*session]struct{}),
		conns:    make(map[*textile.Transport]struct{}),
	}
	if opts.Worker == nil {
		s.owned = worker.New()
		opts.Worker = s.owned
	}
	accOpts := transport.AcceptorOptions{
		Options: transport.Options{Worker: opts.Worker, Logger: opts.Logger},
		Closed:  func() { s.log.Info("acceptor closed") },
	}
	if opts.AcceptRate > 0 {
		accOpts.Limiter = transport.NewTokenBucket(opts.AcceptRate, opts.AcceptBurst)
	}
	s.acc = transport.NewAcceptor(opts.Bind, opts.Port, accOpts)
	return s
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	return s.acc.Start()
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr { return s.acc.Addr() }

// Tokens exposes the reconnect token store.
func (s *Server) Tokens() *TokenStore { return s.tokens }

// Sessions returns the number of initiated sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Serve accepts and relays until ctx is cancelled. It closes every session
// before returning.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.acc.Stop()
		case <-stop:
		}
	}()
	go s.reapLoop(stop)

	for {
		var tr *textile.Transport
		ch := s.acc.Accept(func(ch *transport.TCPChannel) {
			tr = textile.New(ch, textile.Options{
				Role:       textile.Server,
				Logger:     s.opts.Logger,
				MaxPayload: s.opts.MaxPayload,
			})
		})
		if ch == nil {
			break
		}
		s.mu.Lock()
		s.conns[tr] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(tr, ch.RemoteAddr())
	}

	s.closeSessions()
	s.wg.Wait()
	if s.owned != nil {
		s.owned.Close()
	}
	return nil
}

// Shutdown stops accepting. Serve returns once sessions are closed.
func (s *Server) Shutdown() {
	s.acc.Stop()
}

func (s *Server) handle(tr *textile.Transport, remote net.Addr) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, tr)
		s.mu.Unlock()
	}()
	log := s.log.With(zap.Stringer("remote", remote))

	if err := tr.WaitInitiated(s.opts.HandshakeTimeout); err != nil {
		log.Info("handshake not completed", zap.Error(err))
		tr.Close()
		return
	}
	lease, fresh, err := s.tokens.Acquire(tr.Token())
	if err != nil {
		log.Warn("token issue failed", zap.Error(err))
		tr.Close()
		return
	}
	defer s.tokens.Release(lease.Token)

	sess := &session{tr: tr, token: lease.Token, nick: "guest-" + shortToken(lease.Token)}
	s.register(sess)
	defer s.unregister(sess)

	if err := tr.SendControl(control.KeyAuthorization, lease.Token, 0); err != nil {
		log.Info("authorization not sent", zap.Error(err))
		return
	}
	if err := tr.SendControl(control.KeyInitiate, "ok", 0); err != nil {
		log.Info("initiate not sent", zap.Error(err))
		return
	}
	peer := tr.PeerIdentity()
	log.Info("session initiated",
		zap.String("client", peer.Type),
		zap.String("version", peer.Version),
		zap.Bool("new_token", fresh))

	for {
		msg, err := tr.Receive(-1)
		if err != nil {
			in, out, dropped := tr.Stats()
			log.Info("session ended", zap.Int64("frames_in", in), zap.Int64("frames_out", out), zap.Int64("dropped", dropped))
			return
		}
		s.tokens.Touch(lease.Token)
		s.dispatch(sess, msg)
	}
}

func (s *Server) dispatch(from *session, msg string) {
	label, data, ok := chat.Split(msg)
	if !ok {
		s.log.Debug("unlabelled message ignored")
		return
	}
	switch label {
	case chat.Nick:
		name := strings.TrimSpace(data)
		if name == "" {
			return
		}
		s.mu.Lock()
		old := from.nick
		from.nick = name
		s.mu.Unlock()
		s.broadcast(from, chat.Join(chat.System, old+" is now "+name))
	case chat.Message:
		s.broadcast(from, chat.Join(s.nick(from), data))
	default:
		s.broadcast(from, msg)
	}
}

// broadcast queues msg on every session but from.
func (s *Server) broadcast(from *session, msg string) {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		if sess != from {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range targets {
		if err := sess.tr.Send(msg, 0); err != nil {
			s.log.Debug("relay skipped", zap.Error(err))
		}
	}
}

func (s *Server) nick(sess *session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.nick
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.broadcast(sess, chat.Join(chat.System, s.nick(sess)+" joined"))
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.tr.Close()
	s.broadcast(sess, chat.Join(chat.System, s.nick(sess)+" left"))
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	all := make([]*textile.Transport, 0, len(s.conns))
	for tr := range s.conns {
		all = append(all, tr)
	}
	s.mu.Unlock()
	for _, tr := range all {
		tr.Close()
	}
}

func (s *Server) reapLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.tokens.ReapIdle(s.opts.TokenTTL); n > 0 {
				known, issued := s.tokens.Stats()
				s.log.Info("reaped idle tokens", zap.Int("reaped", n), zap.Int("known", known), zap.Int64("issued", issued))
			}
		case <-stop:
			return
		}
	}
}

func shortToken(tok string) string {
	if len(tok) > 6 {
		return tok[:6]
	}
	return tok
}

package net

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Limits caps concurrent connections. Zero means unlimited.
type Limits struct {
	MaxConnections int
	MaxPerIP       int
}

// Server accepts TCP connections and turns them into Sessions. The game loop
// learns about new and closed sessions through two channels.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	opts     SessionOptions
	limits   Limits
	log      *zap.Logger
	closing  atomic.Bool

	mu    sync.Mutex
	total int
	perIP map[string]int
}

func NewServer(bindAddr string, limits Limits, opts SessionOptions, log *zap.Logger) (*Server, error) {
	lc := net.ListenConfig{KeepAlive: 30 * time.Second}
	ln, err := lc.Listen(context.Background(), "tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 256),
		opts:     opts,
		limits:   limits,
		log:      log,
		perIP:    make(map[string]int),
	}, nil
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		host := hostOf(conn.RemoteAddr())
		if reason := s.admit(host); reason != "" {
			s.log.Warn("connection refused", zap.String("ip", host), zap.String("reason", reason))
			conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.opts, s.log)
		sess.Start()
		go s.watch(sess, host)
		s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, rejecting client", zap.Uint64("session", id))
			sess.Close()
		}
	}
}

// admit reserves a connection slot for host. Returns a refusal reason, or ""
// when the connection is accepted.
func (s *Server) admit(host string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limits.MaxConnections > 0 && s.total >= s.limits.MaxConnections {
		return "server full"
	}
	if s.limits.MaxPerIP > 0 && s.perIP[host] >= s.limits.MaxPerIP {
		return "too many connections from address"
	}
	s.total++
	s.perIP[host]++
	return ""
}

func (s *Server) release(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total--
	if s.perIP[host]--; s.perIP[host] <= 0 {
		delete(s.perIP, host)
	}
}

// watch frees the slot of sess once it closes and reports it to the game loop.
func (s *Server) watch(sess *Session, host string) {
	<-sess.Done()
	s.release(host)
	select {
	case s.deadCh <- sess.ID:
	default:
		// The input system also notices closed sessions on its own.
		s.log.Debug("dead session queue full", zap.Uint64("session", sess.ID))
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// DeadSessions returns the IDs of sessions whose connection has closed.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	if s.closing.Swap(true) {
		return
	}
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

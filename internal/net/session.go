package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doomsday/server/internal/net/packet"
	"go.uber.org/zap"
)

// maxBatch caps how many bytes of queued frames one socket write carries.
const maxBatch = 16 << 10

// SessionOptions sizes the queues and limits of a session.
type SessionOptions struct {
	InSize       int
	OutSize      int
	PktPerSec    int // 0 = unlimited
	WriteTimeout time.Duration
}

// Session is one client connection. The reader and writer goroutines only
// touch the socket and the two queues; every other field belongs to the
// game loop.
type Session struct {
	ID uint64
	IP string

	InQueue  chan []byte
	OutQueue chan []byte

	PlayerName string
	AdminName  string
	loginFails int
	outBuf     [][]byte

	conn         net.Conn
	state        atomic.Int32
	gate         rateGate
	writeTimeout time.Duration
	closeCh      chan struct{}
	closeOnce    sync.Once
	closed       atomic.Bool
	log          *zap.Logger
}

func NewSession(conn net.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Session{
		ID:           id,
		IP:           conn.RemoteAddr().String(),
		InQueue:      make(chan []byte, opts.InSize),
		OutQueue:     make(chan []byte, opts.OutSize),
		conn:         conn,
		gate:         rateGate{limit: opts.PktPerSec},
		writeTimeout: opts.WriteTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	s.SetState(packet.StateHandshake)
	return s
}

func (s *Session) State() packet.SessionState { return packet.SessionState(s.state.Load()) }

func (s *Session) SetState(st packet.SessionState) { s.state.Store(int32(st)) }

// IsAdmin reports whether the session has passed admin login.
func (s *Session) IsAdmin() bool { return s.AdminName != "" }

// FailLogin counts a failed admin login and returns the running total.
func (s *Session) FailLogin() int {
	s.loginFails++
	return s.loginFails
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a packet until the next FlushOutput. Game loop only.
func (s *Session) Send(data []byte) {
	if !s.closed.Load() {
		s.outBuf = append(s.outBuf, data)
	}
}

// Pending returns the number of packets sent since the last flush.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput hands buffered packets to the writer goroutine. A client whose
// OutQueue is full is too slow to keep up and gets disconnected.
func (s *Session) FlushOutput() {
	defer func() { s.outBuf = s.outBuf[:0] }()
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow client", zap.Int("queued", len(s.OutQueue)))
			s.Close()
			return
		}
	}
}

// Close shuts the connection down once; later calls do nothing.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

func (s *Session) IsClosed() bool { return s.closed.Load() }

func (s *Session) readLoop() {
	defer s.Close()
	for {
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if !s.gate.allow(time.Now().Unix()) {
			s.log.Warn("packet rate exceeded, disconnecting", zap.Int("limit", s.gate.limit))
			return
		}
		// Blocking here stalls only this client's reader.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop frames queued packets, coalescing whatever is already waiting
// into one socket write.
func (s *Session) writeLoop() {
	defer s.Close()
	var batch []byte
	for {
		select {
		case data := <-s.OutQueue:
			batch = s.appendFrame(batch[:0], data)
		drain:
			for len(batch) < maxBatch {
				select {
				case more := <-s.OutQueue:
					batch = s.appendFrame(batch, more)
				default:
					break drain
				}
			}
			if len(batch) == 0 {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if _, err := s.conn.Write(batch); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) appendFrame(dst, data []byte) []byte {
	out, err := AppendFrame(dst, data)
	if err != nil {
		s.log.Warn("dropping unframeable packet", zap.Error(err))
	}
	return out
}

// rateGate counts packets per wall-clock second. Reader goroutine only.
type rateGate struct {
	limit  int // 0 = unlimited
	second int64
	count  int
}

func (g *rateGate) allow(now int64) bool {
	if g.limit <= 0 {
		return true
	}
	if now != g.second {
		g.second, g.count = now, 0
	}
	g.count++
	return g.count <= g.limit
}

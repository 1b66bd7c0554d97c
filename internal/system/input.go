package system

import (
	"errors"
	"time"

	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
)

// SessionSource is the network side the input system drains.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	world      *world.State
	log        *zap.Logger
}

func NewInputSystem(
	source SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	maxPerTick int,
	ws *world.State,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		world:      ws,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()
	s.reapDead()

	for _, sess := range s.store.Sessions() {
		if sess.IsClosed() {
			s.drop(sess)
			continue
		}
		s.drain(sess)
	}
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

// reapDead drops sessions the server reported closed. A session already
// dropped by the closed check below is simply not found.
func (s *InputSystem) reapDead() {
	for {
		select {
		case id := <-s.source.DeadSessions():
			if sess := s.store.Get(id); sess != nil {
				s.drop(sess)
			}
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued packets of sess.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			s.dispatch(sess, data)
		default:
			return
		}
	}
}

func (s *InputSystem) drop(sess *net.Session) {
	s.handleDisconnect(sess)
	s.store.Remove(sess.ID)
}

func (s *InputSystem) dispatch(sess *net.Session, data []byte) {
	err := s.registry.Dispatch(sess, sess.State(), data)
	switch {
	case err == nil:
	case errors.Is(err, packet.ErrUnknownOpcode), errors.Is(err, packet.ErrStateNotAllowed):
		s.log.Debug("packet dropped", zap.Uint64("session", sess.ID), zap.Error(err))
	default:
		s.log.Warn("packet dispatch error", zap.Uint64("session", sess.ID), zap.Error(err))
	}
}

// handleDisconnect removes a closed session's entity from the world. The
// entity drops out of its region's online members immediately, so running
// effects stop targeting it.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	e := s.world.RemoveEntity(sess.ID)
	if e == nil {
		return
	}
	s.log.Info("player left",
		zap.Uint64("session", sess.ID),
		zap.String("name", e.Name),
		zap.String("region", e.RegionID),
	)
}

// SessionCount returns the current number of active sessions.
func (s *InputSystem) SessionCount() int {
	return s.store.Count()
}

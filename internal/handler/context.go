package handler

import (
	"context"
	"time"

	"github.com/doomsday/server/internal/config"
	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/persist"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
)

// HistoryStore reads the disaster history log. Nil when the database is off.
type HistoryStore interface {
	Recent(ctx context.Context, regionID string, limit int) ([]persist.HistoryEntry, error)
}

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Sessions  *net.SessionStore
	Disasters *disaster.Service
	History   HistoryStore
	Now       func() time.Time // defaults to time.Now
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Handshake phase: a connection either joins as a player or logs in as admin.
	reg.Register(packet.C_OPCODE_JOIN,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleJoin(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_ADMIN_LOGIN,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleAdminLogin(sess.(*net.Session), r, deps)
		},
	)

	// In world
	reg.Register(packet.C_OPCODE_MOVE,
		[]packet.SessionState{packet.StateInWorld},
		func(sess any, r *packet.Reader) {
			HandleMove(sess.(*net.Session), r, deps)
		},
	)

	// Admin console
	reg.Register(packet.C_OPCODE_COMMAND,
		[]packet.SessionState{packet.StateAdmin},
		func(sess any, r *packet.Reader) {
			HandleCommand(sess.(*net.Session), r, deps)
		},
	)

	reg.Register(packet.C_OPCODE_QUIT,
		[]packet.SessionState{packet.StateHandshake, packet.StateInWorld, packet.StateAdmin},
		func(sess any, r *packet.Reader) {
			HandleQuit(sess.(*net.Session), r, deps)
		},
	)
}

package handler

import (
	"sort"

	"github.com/doomsday/server/internal/config"
	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
)

// Broadcaster delivers disaster announcements to players. Which players hear
// an announcement depends on the configured scope. Admin consoles receive
// every announcement.
type Broadcaster struct {
	world    *world.State
	sessions *net.SessionStore
	scope    string
	radius   float64
	log      *zap.Logger
}

func NewBroadcaster(ws *world.State, sessions *net.SessionStore, cfg config.DisasterConfig, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		world:    ws,
		sessions: sessions,
		scope:    cfg.AnnounceScope,
		radius:   cfg.AnnounceRadius,
		log:      log,
	}
}

// Notify implements disaster.Notifier.
func (b *Broadcaster) Notify(message string, origin world.Location, region *disaster.Region) {
	recipients := b.Recipients(origin, region)
	for _, e := range recipients {
		if e.Session != nil {
			SendMessage(e.Session, packet.MessageDisaster, message)
		}
	}
	if b.sessions != nil {
		b.sessions.ForEach(func(s *net.Session) {
			if s.State() == packet.StateAdmin {
				SendConsole(s, "["+region.ID+"] "+message)
			}
		})
	}
	b.log.Debug("announcement delivered",
		zap.String("region", region.ID),
		zap.Int("recipients", len(recipients)),
	)
}

// Recipients returns the players that hear an announcement for region.
func (b *Broadcaster) Recipients(origin world.Location, region *disaster.Region) []*world.Entity {
	switch b.scope {
	case config.ScopeMembers:
		return b.world.OnlineMembers(region.ID)
	case config.ScopeRegion:
		return b.world.InsideBounds(region.Bounds)
	case config.ScopeNearby:
		return b.world.Nearby(origin, b.radius)
	default:
		var all []*world.Entity
		b.world.AllEntities(func(e *world.Entity) { all = append(all, e) })
		return all
	}
}

// SendMessage sends S_MESSAGE.
func SendMessage(sess *net.Session, kind byte, text string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_MESSAGE)
	w.WriteC(kind)
	w.WriteS(text)
	sess.Send(w.Bytes())
}

// SendConsole sends S_CONSOLE, one line of admin console output.
func SendConsole(sess *net.Session, text string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CONSOLE)
	w.WriteS(text)
	sess.Send(w.Bytes())
}

// SendLoginResult sends S_LOGIN_RESULT.
func SendLoginResult(sess *net.Session, code byte, detail string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOGIN_RESULT)
	w.WriteC(code)
	w.WriteS(detail)
	sess.Send(w.Bytes())
}

// SendPosition sends S_POSITION for e to sess.
func SendPosition(sess *net.Session, e *world.Entity) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_POSITION)
	w.WriteQ(e.ID)
	w.WriteFixed(e.X)
	w.WriteFixed(e.Y)
	w.WriteFixed(e.Z)
	sess.Send(w.Bytes())
}

// SendStatus sends S_STATUS with every active status of e, ordered by kind.
func SendStatus(sess *net.Session, e *world.Entity) {
	kinds := make([]world.StatusKind, 0, len(e.Statuses))
	for k := range e.Statuses {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_STATUS)
	w.WriteC(byte(len(kinds)))
	for _, k := range kinds {
		st := e.Statuses[k]
		w.WriteS(k.String())
		w.WriteC(byte(st.Amplifier))
		w.WriteD(int32(st.TicksLeft))
	}
	sess.Send(w.Bytes())
}

// SendBlock sends S_BLOCK for one changed location.
func SendBlock(sess *net.Session, c world.BlockChange) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_BLOCK)
	w.WriteLocation(c.Location.X, c.Location.Y, c.Location.Z)
	w.WriteS(c.Material.String())
	sess.Send(w.Bytes())
}

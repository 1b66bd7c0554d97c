package system

import (
	"time"

	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/handler"
	"github.com/doomsday/server/internal/world"
)

// StatusTickSystem counts down status effects on every entity and sends the
// status list whenever it changed. Phase 3 (PostUpdate).
type StatusTickSystem struct {
	world *world.State
}

func NewStatusTickSystem(ws *world.State) *StatusTickSystem {
	return &StatusTickSystem{world: ws}
}

func (s *StatusTickSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *StatusTickSystem) Update(_ time.Duration) {
	s.world.AllEntities(func(e *world.Entity) {
		if TickStatuses(e) {
			e.StatusDirty = true
		}
		if e.StatusDirty {
			e.StatusDirty = false
			if e.Session != nil {
				handler.SendStatus(e.Session, e)
			}
		}
	})
}

// TickStatuses decrements every status of e and removes expired ones.
// Returns true if any status expired.
func TickStatuses(e *world.Entity) bool {
	expired := false
	for k, st := range e.Statuses {
		st.TicksLeft--
		if st.TicksLeft <= 0 {
			delete(e.Statuses, k)
			expired = true
		}
	}
	return expired
}

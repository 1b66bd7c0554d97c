package system

import (
	"math"
	"time"

	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/handler"
	"github.com/doomsday/server/internal/world"
)

const (
	minSpeed   = 0.01
	viewRadius = 48.0
	fallScan   = 64 // blocks scanned below an entity for ground
)

// PhysicsSystem integrates entity velocity (knockback, tornado lift), applies
// gravity and drag, and sends the new position to the entity and everyone in
// view. Phase 3 (PostUpdate).
type PhysicsSystem struct {
	world   *world.State
	drag    float64
	gravity float64
}

func NewPhysicsSystem(ws *world.State, drag, gravity float64) *PhysicsSystem {
	return &PhysicsSystem{world: ws, drag: drag, gravity: gravity}
}

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *PhysicsSystem) Update(_ time.Duration) {
	s.world.AllEntities(func(e *world.Entity) {
		if s.step(e) || e.Moved {
			e.Moved = false
			s.broadcast(e)
		}
	})
}

// step advances e by one tick. Returns true if the position changed.
func (s *PhysicsSystem) step(e *world.Entity) bool {
	ground, hasGround := s.groundY(e)
	airborne := hasGround && e.Y > ground
	if airborne && s.gravity > 0 {
		e.VY -= s.gravity
	}
	if e.VX == 0 && e.VY == 0 && e.VZ == 0 {
		return false
	}

	x, y, z := e.X+e.VX, e.Y+e.VY, e.Z+e.VZ
	if hasGround && y < ground {
		y = ground
		e.VY = 0
	}
	s.world.MoveEntity(e, x, y, z)

	e.VX = damp(e.VX * s.drag)
	e.VY = damp(e.VY * s.drag)
	e.VZ = damp(e.VZ * s.drag)
	return true
}

// groundY returns the top of the highest solid block under e.
func (s *PhysicsSystem) groundY(e *world.Entity) (float64, bool) {
	l := e.Location()
	top, ok := s.world.Blocks.Surface(l.X, l.Z, l.Y-fallScan, l.Y)
	if !ok {
		return 0, false
	}
	return float64(top.Y + 1), true
}

func damp(v float64) float64 {
	if math.Abs(v) < minSpeed {
		return 0
	}
	return v
}

func (s *PhysicsSystem) broadcast(e *world.Entity) {
	for _, viewer := range s.world.Nearby(e.Location(), viewRadius) {
		if viewer.Session != nil {
			handler.SendPosition(viewer.Session, e)
		}
	}
}

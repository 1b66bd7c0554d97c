package system

import (
	"time"

	coresys "github.com/doomsday/server/internal/core/system"
)

// DisasterTicker is the part of disaster.Service the loop drives.
type DisasterTicker interface {
	Tick()
}

// DisasterSystem advances the disaster scheduler driver and every running
// effect task by one game tick. Phase 2 (Update).
type DisasterSystem struct {
	svc DisasterTicker
}

func NewDisasterSystem(svc DisasterTicker) *DisasterSystem {
	return &DisasterSystem{svc: svc}
}

func (s *DisasterSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *DisasterSystem) Update(_ time.Duration) {
	s.svc.Tick()
}

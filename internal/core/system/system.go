package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain packet queues, run handlers
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: disaster scheduler + effect tasks
	PhasePostUpdate              // 3: physics, status countdown
	PhaseOutput                  // 4: flush packets
	PhasePersist                 // 5: history writes
)

// System is the interface every game-loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

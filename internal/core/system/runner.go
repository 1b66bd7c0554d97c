package system

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick and watches the tick
// budget. Systems sharing a phase keep their registration order.
type Runner struct {
	systems []System
	sorted  bool

	budget   time.Duration // 0 disables the overrun check
	log      *zap.Logger
	ticks    uint64
	overruns uint64
}

func NewRunner(budget time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
		budget:  budget,
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. A tick that takes longer than the budget is
// logged with the slowest system.
func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.ticks++

	start := time.Now()
	var slowest System
	var slowestTook time.Duration
	for _, s := range r.systems {
		t0 := time.Now()
		s.Update(dt)
		if took := time.Since(t0); took > slowestTook {
			slowest, slowestTook = s, took
		}
	}

	elapsed := time.Since(start)
	if r.budget <= 0 || elapsed <= r.budget {
		return
	}
	r.overruns++
	r.log.Warn("tick over budget",
		zap.Uint64("tick", r.ticks),
		zap.Duration("elapsed", elapsed),
		zap.Duration("budget", r.budget),
		zap.String("slowest", fmt.Sprintf("%T", slowest)),
		zap.Duration("slowest_took", slowestTook),
	)
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Ticks returns the number of full ticks run.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Overruns returns the number of ticks that exceeded the budget.
func (r *Runner) Overruns() uint64 { return r.overruns }

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})
	r.sorted = true
}

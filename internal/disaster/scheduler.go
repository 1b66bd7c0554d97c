package disaster

import (
	"math/rand"
	"strings"
	"time"

	"github.com/doomsday/server/internal/core/event"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
)

// Notifier is the messaging collaborator that delivers announcements.
type Notifier interface {
	Notify(message string, origin world.Location, region *Region)
}

// Messages resolves announcement keys of the form disasters.<id>.start.
type Messages interface {
	Resolve(key, fallback string) string
}

// Scheduler owns the runtime state of every (region, disaster) pair and is
// its only writer. It drives the IDLE → ACTIVE → IDLE cycle and tells the
// Engine when to start and stop effects.
type Scheduler struct {
	state    *State
	engine   *Engine
	notifier Notifier
	messages Messages
	bus      *event.Bus
	rng      *rand.Rand
	now      func() time.Time
	tick     time.Duration
	log      *zap.Logger
}

// Evaluate runs one scheduler tick over every enabled pair in stable order.
// A failing pair is logged and does not stop the others.
func (s *Scheduler) Evaluate() {
	now := s.now()
	s.state.EachRegion(func(r *Region) {
		r.EachDisaster(func(d *Disaster) {
			if !d.Enabled {
				return
			}
			s.safeEvaluate(r, d, now)
		})
	})
}

func (s *Scheduler) safeEvaluate(r *Region, d *Disaster, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("disaster evaluation panic recovered",
				zap.String("region", r.ID),
				zap.String("disaster", d.ID),
				zap.Any("panic", rec),
			)
		}
	}()
	s.evaluate(r, d, now)
}

func (s *Scheduler) evaluate(r *Region, d *Disaster, now time.Time) {
	switch {
	case d.Active && !now.Before(d.EndTime):
		s.end(r, d, now, event.EndExpired)
	case d.Active:
		// still running
	case !now.Before(d.NextCheck):
		if s.rng.Float64() < d.Probability {
			s.start(r, d, now, false)
		} else {
			d.ScheduleNext(now, s.tick, s.rng)
		}
	}
}

func (s *Scheduler) start(r *Region, d *Disaster, now time.Time, manual bool) {
	d.Start(now, s.tick, s.rng)
	s.log.Info("disaster started",
		zap.String("region", r.ID),
		zap.String("disaster", d.ID),
		zap.Bool("manual", manual),
		zap.Time("ends", d.EndTime),
	)
	s.announce(r, d, "start", d.Message)
	event.Emit(s.bus, event.DisasterStarted{
		RegionID:   r.ID,
		DisasterID: d.ID,
		Manual:     manual,
		At:         now,
		EndsAt:     d.EndTime,
	})
	s.engine.Trigger(r, d)
}

func (s *Scheduler) end(r *Region, d *Disaster, now time.Time, reason event.EndReason) {
	s.close(r, d, now, reason)
	s.announce(r, d, "end", "")
	s.engine.Stop(r, d)
}

// close moves d to idle and records why. Callers own the effect runtime.
func (s *Scheduler) close(r *Region, d *Disaster, now time.Time, reason event.EndReason) {
	d.End()
	s.log.Info("disaster ended",
		zap.String("region", r.ID),
		zap.String("disaster", d.ID),
		zap.String("reason", string(reason)),
	)
	event.Emit(s.bus, event.DisasterEnded{
		RegionID:   r.ID,
		DisasterID: d.ID,
		Reason:     reason,
		At:         now,
	})
}

// closeAll ends every active disaster without announcing it. The caller
// stops the effects with Engine.ShutdownAll.
func (s *Scheduler) closeAll(reason event.EndReason) int {
	now := s.now()
	n := 0
	s.state.EachRegion(func(r *Region) {
		r.EachDisaster(func(d *Disaster) {
			if d.Active {
				s.close(r, d, now, reason)
				n++
			}
		})
	})
	return n
}

// announce resolves disasters.<id>.<phase>, substitutes {region} and hands
// the text to the notifier.
func (s *Scheduler) announce(r *Region, d *Disaster, phase, fallback string) {
	if s.notifier == nil {
		return
	}
	key := "disasters." + d.ID + "." + phase
	if fallback == "" {
		fallback = key
	}
	text := fallback
	if s.messages != nil {
		text = s.messages.Resolve(key, fallback)
	}
	text = strings.ReplaceAll(text, "{region}", r.DisplayName)
	s.notifier.Notify(text, r.Bounds.Center(), r)
}

// ManualTrigger starts d regardless of the probability gate and NextCheck.
// An already active disaster is restarted: its window resets and its effect
// is replaced.
func (s *Scheduler) ManualTrigger(r *Region, d *Disaster) {
	now := s.now()
	if d.Active {
		s.close(r, d, now, event.EndReplaced)
	}
	s.start(r, d, now, true)
}

// ManualStop ends d regardless of EndTime. No-op when d is idle.
func (s *Scheduler) ManualStop(r *Region, d *Disaster) {
	if !d.Active {
		return
	}
	s.end(r, d, s.now(), event.EndManual)
}

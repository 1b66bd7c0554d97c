// Package disaster schedules, triggers, runs and cleans up time-bounded
// regional events. All types here are owned by the game loop goroutine.
package disaster

import (
	"math/rand"
	"time"

	"github.com/doomsday/server/internal/data"
)

// Definition is the immutable configuration of one disaster in one region.
type Definition struct {
	ID            string
	Type          string // effect tag looked up in the Registry
	Enabled       bool
	MinInterval   int // ticks
	MaxInterval   int // ticks
	DurationTicks int
	Probability   float64
	Message       string
}

func definitionFromEntry(e data.DisasterEntry) Definition {
	return Definition{
		ID:            e.ID,
		Type:          e.EffectType(),
		Enabled:       e.IsEnabled(),
		MinInterval:   e.MinInterval,
		MaxInterval:   e.MaxInterval,
		DurationTicks: e.Duration,
		Probability:   e.Probability,
		Message:       e.Message,
	}
}

// Disaster is a Definition plus its runtime state. Only the Scheduler writes
// the runtime fields.
//
// While Active, EndTime == LastOccurrence + DurationTicks*tick.
type Disaster struct {
	Definition

	LastOccurrence time.Time
	NextCheck      time.Time
	Active         bool
	EndTime        time.Time
}

// ScheduleNext draws the next check time in
// [now+MinInterval*tick, now+MaxInterval*tick).
func (d *Disaster) ScheduleNext(now time.Time, tick time.Duration, rng *rand.Rand) {
	ticks := d.MinInterval
	if span := d.MaxInterval - d.MinInterval; span > 0 {
		ticks += rng.Intn(span)
	}
	d.NextCheck = now.Add(time.Duration(ticks) * tick)
}

// Start activates the disaster and re-arms NextCheck from the start of this
// occurrence, not from its end.
func (d *Disaster) Start(now time.Time, tick time.Duration, rng *rand.Rand) {
	d.Active = true
	d.LastOccurrence = now
	d.EndTime = now.Add(time.Duration(d.DurationTicks) * tick)
	d.ScheduleNext(now, tick, rng)
}

// End returns the disaster to idle.
func (d *Disaster) End() {
	d.Active = false
	d.EndTime = time.Time{}
}

// Remaining is the time left until EndTime, zero when idle or overdue.
func (d *Disaster) Remaining(now time.Time) time.Duration {
	if !d.Active || !now.Before(d.EndTime) {
		return 0
	}
	return d.EndTime.Sub(now)
}

// UntilCheck is the time left until NextCheck, zero when already due.
func (d *Disaster) UntilCheck(now time.Time) time.Duration {
	if !now.Before(d.NextCheck) {
		return 0
	}
	return d.NextCheck.Sub(now)
}

package system

import (
	"context"
	"time"

	"github.com/doomsday/server/internal/core/event"
	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/persist"
	"go.uber.org/zap"
)

// maxPendingHistory bounds the retry backlog while the database is down.
const maxPendingHistory = 1000

// HistoryWriter appends disaster history rows.
type HistoryWriter interface {
	Append(ctx context.Context, entries []persist.HistoryEntry) error
}

// HistorySystem collects DisasterStarted / DisasterEnded events from the bus
// and writes them to the history log in batches. Phase 5 (Persist).
type HistorySystem struct {
	writer    HistoryWriter
	log       *zap.Logger
	pending   []persist.HistoryEntry
	tickCount int
	interval  int // flush every N ticks
}

func NewHistorySystem(bus *event.Bus, writer HistoryWriter, log *zap.Logger, intervalTicks int) *HistorySystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	s := &HistorySystem{writer: writer, log: log, interval: intervalTicks}
	event.Subscribe(bus, s.onStarted)
	event.Subscribe(bus, s.onEnded)
	return s
}

func (s *HistorySystem) onStarted(ev event.DisasterStarted) {
	reason := "scheduled"
	if ev.Manual {
		reason = string(event.EndManual)
	}
	ends := ev.EndsAt
	s.pending = append(s.pending, persist.HistoryEntry{
		RegionID:   ev.RegionID,
		DisasterID: ev.DisasterID,
		Kind:       persist.HistoryStart,
		Reason:     reason,
		OccurredAt: ev.At,
		EndsAt:     &ends,
	})
}

func (s *HistorySystem) onEnded(ev event.DisasterEnded) {
	s.pending = append(s.pending, persist.HistoryEntry{
		RegionID:   ev.RegionID,
		DisasterID: ev.DisasterID,
		Kind:       persist.HistoryEnd,
		Reason:     string(ev.Reason),
		OccurredAt: ev.At,
	})
}

func (s *HistorySystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *HistorySystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Pending returns the number of rows waiting to be written.
func (s *HistorySystem) Pending() int {
	return len(s.pending)
}

// Flush writes every pending row now. On failure the newest rows are kept
// and retried on the next flush.
func (s *HistorySystem) Flush() {
	if len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.writer.Append(ctx, s.pending); err != nil {
		s.log.Error("disaster history write failed",
			zap.Int("rows", len(s.pending)),
			zap.Error(err),
		)
		if over := len(s.pending) - maxPendingHistory; over > 0 {
			s.pending = append([]persist.HistoryEntry(nil), s.pending[over:]...)
			s.log.Warn("disaster history backlog trimmed", zap.Int("dropped", over))
		}
		return
	}
	s.pending = nil
}

package system

import (
	"time"

	coresys "github.com/doomsday/server/internal/core/system"
	"github.com/doomsday/server/internal/handler"
	"github.com/doomsday/server/internal/world"
)

// BlockSyncSystem sends every block changed this tick to the players in view
// of it. Phase 4 (Output), before OutputSystem flushes.
type BlockSyncSystem struct {
	world  *world.State
	radius float64
}

func NewBlockSyncSystem(ws *world.State) *BlockSyncSystem {
	return &BlockSyncSystem{world: ws, radius: viewRadius}
}

func (s *BlockSyncSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *BlockSyncSystem) Update(_ time.Duration) {
	for _, c := range s.world.Blocks.DrainChanges() {
		for _, viewer := range s.world.Nearby(c.Location, s.radius) {
			if viewer.Session != nil {
				handler.SendBlock(viewer.Session, c)
			}
		}
	}
}

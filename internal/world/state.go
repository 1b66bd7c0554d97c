package world

import (
	"math"
	"sort"
)

// State tracks every connected entity and the shared block grid.
// Single-goroutine access only (game loop).
type State struct {
	bySession map[uint64]*Entity // SessionID → Entity
	byName    map[string]*Entity // Name → Entity
	aoi       *AOIGrid

	Blocks *Grid
}

func NewState() *State {
	return &State{
		bySession: make(map[uint64]*Entity),
		byName:    make(map[string]*Entity),
		aoi:       NewAOIGrid(),
		Blocks:    NewGrid(),
	}
}

// AddEntity registers a newly joined entity.
func (s *State) AddEntity(e *Entity) {
	s.bySession[e.ID] = e
	s.byName[e.Name] = e
	l := e.Location()
	s.aoi.Place(e.ID, l.X, l.Z)
}

// RemoveEntity removes an entity by session ID and returns it, or nil.
func (s *State) RemoveEntity(sessionID uint64) *Entity {
	e := s.bySession[sessionID]
	if e == nil {
		return nil
	}
	s.aoi.Remove(e.ID)
	delete(s.bySession, sessionID)
	delete(s.byName, e.Name)
	return e
}

func (s *State) GetBySession(sessionID uint64) *Entity {
	return s.bySession[sessionID]
}

func (s *State) GetByName(name string) *Entity {
	return s.byName[name]
}

// MoveEntity sets a new position and keeps the AOI index in sync.
func (s *State) MoveEntity(e *Entity, x, y, z float64) {
	e.X, e.Y, e.Z = x, y, z
	l := e.Location()
	s.aoi.Place(e.ID, l.X, l.Z)
}

// EntityCount returns the number of connected entities.
func (s *State) EntityCount() int {
	return len(s.bySession)
}

// AllEntities calls fn for every entity in ascending ID order.
func (s *State) AllEntities(fn func(*Entity)) {
	for _, e := range s.sorted(func(*Entity) bool { return true }) {
		fn(e)
	}
}

// OnlineMembers returns the connected members of a region, ordered by ID.
func (s *State) OnlineMembers(regionID string) []*Entity {
	return s.sorted(func(e *Entity) bool { return e.RegionID == regionID })
}

// InsideBounds returns every connected entity physically inside b.
func (s *State) InsideBounds(b Bounds) []*Entity {
	return s.sorted(func(e *Entity) bool { return b.ContainsPoint(e.X, e.Y, e.Z) })
}

// Nearby returns entities within radius blocks (X/Z plane) of l.
func (s *State) Nearby(l Location, radius float64) []*Entity {
	ids := s.aoi.Candidates(l.X, l.Z, int32(math.Ceil(radius)))
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		e := s.bySession[id]
		if e != nil && e.HorizontalDistance(float64(l.X), float64(l.Z)) <= radius {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) sorted(keep func(*Entity) bool) []*Entity {
	out := make([]*Entity, 0, len(s.bySession))
	for _, e := range s.bySession {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

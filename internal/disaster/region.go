package disaster

import (
	"math/rand"
	"time"

	"github.com/doomsday/server/internal/data"
	"github.com/doomsday/server/internal/world"
)

// Region is a bounded area with its own disasters. ID and Bounds never change
// after load.
type Region struct {
	ID          string
	DisplayName string
	Bounds      world.Bounds
	Disasters   map[string]*Disaster

	order []string // configuration order, used for stable evaluation
}

// Disaster returns the disaster with id, or nil.
func (r *Region) Disaster(id string) *Disaster {
	return r.Disasters[id]
}

// EachDisaster calls fn for every disaster in configuration order.
func (r *Region) EachDisaster(fn func(*Disaster)) {
	for _, id := range r.order {
		fn(r.Disasters[id])
	}
}

// State is the complete set of regions and their disasters. A reload
// replaces the whole State.
type State struct {
	regions map[string]*Region
	order   []string
}

// NewState builds a State from validated entries, drawing a fresh NextCheck
// for every disaster.
func NewState(entries []data.RegionEntry, now time.Time, tick time.Duration, rng *rand.Rand) *State {
	s := &State{regions: make(map[string]*Region, len(entries))}
	for _, e := range entries {
		if e.Bounds == nil || s.regions[e.ID] != nil {
			continue
		}
		r := &Region{
			ID:          e.ID,
			DisplayName: e.DisplayName(),
			Bounds:      e.Bounds.Bounds(),
			Disasters:   make(map[string]*Disaster, len(e.Disasters)),
		}
		for _, de := range e.Disasters {
			if r.Disasters[de.ID] != nil {
				continue
			}
			d := &Disaster{Definition: definitionFromEntry(de)}
			d.ScheduleNext(now, tick, rng)
			r.Disasters[de.ID] = d
			r.order = append(r.order, de.ID)
		}
		s.regions[e.ID] = r
		s.order = append(s.order, e.ID)
	}
	return s
}

// Region returns the region with id, or nil.
func (s *State) Region(id string) *Region {
	return s.regions[id]
}

// EachRegion calls fn for every region in configuration order.
func (s *State) EachRegion(fn func(*Region)) {
	for _, id := range s.order {
		fn(s.regions[id])
	}
}

// RegionCount returns the number of regions.
func (s *State) RegionCount() int {
	return len(s.order)
}

// ActiveCount returns the number of currently active disasters.
func (s *State) ActiveCount() int {
	n := 0
	s.EachRegion(func(r *Region) {
		r.EachDisaster(func(d *Disaster) {
			if d.Active {
				n++
			}
		})
	})
	return n
}

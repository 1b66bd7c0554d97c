package disaster

import (
	"math/rand"

	"github.com/doomsday/server/internal/world"
)

// claim is one location held by live runtimes: the material it had before
// any of them touched it, and who still holds it.
type claim struct {
	base    world.Material
	holders map[Key]struct{}
}

// claims is shared by every runtime of an engine so overlapping conversions
// of one location restore the pre-effect material exactly once.
type claims map[world.Location]*claim

func (cs claims) hold(l world.Location, k Key, prev world.Material) {
	c := cs[l]
	if c == nil {
		c = &claim{base: prev, holders: make(map[Key]struct{})}
		cs[l] = c
	}
	c.holders[k] = struct{}{}
}

// release drops k from l. It returns the base material and true when k was
// the last holder.
func (cs claims) release(l world.Location, k Key) (world.Material, bool) {
	c := cs[l]
	if c == nil {
		return 0, false
	}
	delete(c.holders, k)
	if len(c.holders) > 0 {
		return 0, false
	}
	delete(cs, l)
	return c.base, true
}

// Mutations is a tracked mutation set: each location an effect converted,
// with the material it held before the first conversion.
type Mutations struct {
	key      Key
	shared   claims // nil: standalone set, Revert writes its own originals
	original map[world.Location]world.Material
	order    []world.Location
}

// Record remembers prev for l unless l is already tracked.
func (m *Mutations) Record(l world.Location, prev world.Material) {
	if m.original == nil {
		m.original = make(map[world.Location]world.Material)
	}
	if _, ok := m.original[l]; ok {
		return
	}
	m.original[l] = prev
	m.order = append(m.order, l)
	if m.shared != nil {
		m.shared.hold(l, m.key, prev)
	}
}

// Len returns the number of tracked locations.
func (m *Mutations) Len() int {
	return len(m.order)
}

// Original returns the pre-mutation material of l.
func (m *Mutations) Original(l world.Location) (world.Material, bool) {
	prev, ok := m.original[l]
	return prev, ok
}

// Revert gives up every tracked location, newest first, and empties the set.
// A location another live runtime still holds is left as it is; the last
// holder restores the material it had before any effect. Returns the number
// of blocks written back.
func (m *Mutations) Revert(w World) int {
	n := 0
	for i := len(m.order) - 1; i >= 0; i-- {
		l := m.order[i]
		prev := m.original[l]
		if m.shared != nil {
			var last bool
			if prev, last = m.shared.release(l, m.key); !last {
				continue
			}
		}
		w.SetBlock(l, prev)
		n++
	}
	m.original = nil
	m.order = nil
	return n
}

// Context is what a Routine sees while it runs. It only exposes the region's
// own bounds; conversions outside them are refused.
type Context struct {
	Region   *Region
	Disaster *Disaster
	Elapsed  int // ticks since the task started
	Rand     *rand.Rand

	world   World
	members Membership
	tracked *Mutations
}

// Block reads the material at l.
func (c *Context) Block(l world.Location) world.Material {
	return c.world.Block(l)
}

// Convert replaces from with to at l and tracks the change for reversal.
// It does nothing and returns false when l is outside the region or does not
// currently hold from.
func (c *Context) Convert(l world.Location, from, to world.Material) bool {
	if !c.Region.Bounds.Contains(l) || c.world.Block(l) != from || from == to {
		return false
	}
	c.tracked.Record(l, from)
	c.world.SetBlock(l, to)
	return true
}

// RandomLocation draws a block anywhere inside the region.
func (c *Context) RandomLocation() world.Location {
	return c.Region.Bounds.RandomLocation(c.Rand)
}

// RandomSurface draws a random column and returns its top non-air block.
func (c *Context) RandomSurface() (world.Location, bool) {
	b := c.Region.Bounds
	col := b.RandomLocation(c.Rand)
	return c.world.Surface(col.X, col.Z, b.MinY, b.MaxY)
}

// Members returns the online members of the region. Effects that target
// entities use this set, never geographic occupancy alone.
func (c *Context) Members() []*world.Entity {
	if c.members == nil {
		return nil
	}
	return c.members.OnlineMembers(c.Region.ID)
}

// Tracked returns the number of locations this run has converted.
func (c *Context) Tracked() int {
	return c.tracked.Len()
}

package disaster

import (
	"sort"

	"github.com/doomsday/server/internal/world"
)

// Routine is one running effect instance. The engine calls Act every Every()
// ticks until the disaster's duration is used up. Act is best-effort: an
// unmet precondition skips the action, it never returns an error.
type Routine interface {
	Every() int
	Act(c *Context)
}

// Starter is implemented by routines that set up per-run state (a hazard
// position, say) before the first Act.
type Starter interface {
	Start(c *Context)
}

// Factory creates a fresh Routine for each triggered disaster.
type Factory func() Routine

// Registry maps effect tags to routine factories. New disaster types are
// added by registration.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds tag to f, replacing any previous binding.
func (r *Registry) Register(tag string, f Factory) {
	r.factories[tag] = f
}

// Lookup returns the factory for tag.
func (r *Registry) Lookup(tag string) (Factory, bool) {
	f, ok := r.factories[tag]
	return f, ok
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.factories))
	for t := range r.factories {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// World is the shared block store effect routines read and write.
type World interface {
	Block(l world.Location) world.Material
	SetBlock(l world.Location, m world.Material)
	Surface(x, z, minY, maxY int32) (world.Location, bool)
}

// Membership supplies the connected members of a region.
type Membership interface {
	OnlineMembers(regionID string) []*world.Entity
}

// Funcs adapts a cadence and an action function to Routine.
type Funcs struct {
	Interval int
	Action   func(c *Context)
}

func (f Funcs) Every() int     { return f.Interval }
func (f Funcs) Act(c *Context) { f.Action(c) }

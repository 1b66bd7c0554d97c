package disaster

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"
)

// Key identifies one effect runtime.
type Key struct {
	Region   string
	Disaster string
}

func keyOf(r *Region, d *Disaster) Key {
	return Key{Region: r.ID, Disaster: d.ID}
}

// task is a bounded periodic effect task: it runs for total ticks and calls
// the routine every `every` ticks.
type task struct {
	key     Key
	routine Routine
	ctx     *Context
	every   int
	total   int
	done    bool // finished naturally or cancelled
}

// step advances the task by one tick. Returns false once it has finished.
func (t *task) step(log *zap.Logger) bool {
	if t.done {
		return false
	}
	t.ctx.Elapsed++
	if t.every > 0 && t.ctx.Elapsed%t.every == 0 {
		t.act(log)
	}
	if t.ctx.Elapsed >= t.total {
		t.done = true
	}
	return !t.done
}

// act runs one micro-action, recovering from routine panics so one broken
// effect cannot take down the loop.
func (t *task) act(log *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("effect action panic recovered",
				zap.String("region", t.key.Region),
				zap.String("disaster", t.key.Disaster),
				zap.Any("panic", rec),
			)
		}
	}()
	t.routine.Act(t.ctx)
}

// start runs the routine's setup with the same recovery as act. A failed
// setup leaves the task registered so Stop still reverts what it converted.
func (t *task) start(s Starter, log *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("effect start panic recovered",
				zap.String("region", t.key.Region),
				zap.String("disaster", t.key.Disaster),
				zap.Any("panic", rec),
			)
		}
	}()
	s.Start(t.ctx)
}

// runtime is the engine's bookkeeping for one key.
type runtime struct {
	task    *task
	tracked *Mutations
}

// Engine runs effect routines for triggered disasters and reverts their
// tracked mutations on stop. It never changes disaster state itself.
// Single-goroutine access only (game loop).
type Engine struct {
	registry *Registry
	world    World
	members  Membership
	rng      *rand.Rand
	log      *zap.Logger
	runtimes map[Key]*runtime
	claims   claims
}

func NewEngine(registry *Registry, w World, members Membership, rng *rand.Rand, log *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		world:    w,
		members:  members,
		rng:      rng,
		log:      log,
		runtimes: make(map[Key]*runtime),
		claims:   make(claims),
	}
}

// Trigger starts the effect for d in r. An existing runtime for the same key
// is cancelled and reverted first, so a key never has two live tasks.
func (e *Engine) Trigger(r *Region, d *Disaster) {
	k := keyOf(r, d)
	if _, ok := e.runtimes[k]; ok {
		e.stopKey(k)
	}

	factory, ok := e.registry.Lookup(d.Type)
	if !ok {
		e.log.Warn("no effect registered for disaster type",
			zap.String("region", r.ID),
			zap.String("disaster", d.ID),
			zap.String("type", d.Type),
		)
		return
	}

	tracked := &Mutations{key: k, shared: e.claims}
	routine := factory()
	ctx := &Context{
		Region:   r,
		Disaster: d,
		Rand:     e.rng,
		world:    e.world,
		members:  e.members,
		tracked:  tracked,
	}
	t := &task{
		key:     k,
		routine: routine,
		ctx:     ctx,
		every:   routine.Every(),
		total:   d.DurationTicks,
	}
	e.runtimes[k] = &runtime{task: t, tracked: tracked}
	if s, ok := routine.(Starter); ok {
		t.start(s, e.log)
	}
	e.log.Debug("effect started",
		zap.String("region", r.ID),
		zap.String("disaster", d.ID),
		zap.Int("duration", d.DurationTicks),
	)
}

// Stop cancels the task for d in r and reverts its tracked mutations.
// Stopping a key with no runtime is a no-op.
func (e *Engine) Stop(r *Region, d *Disaster) {
	e.stopKey(keyOf(r, d))
}

// ShutdownAll stops every live runtime. Used at teardown and before reload.
func (e *Engine) ShutdownAll() {
	for _, k := range e.keys() {
		e.stopKey(k)
	}
}

func (e *Engine) stopKey(k Key) {
	rt, ok := e.runtimes[k]
	if !ok {
		return
	}
	rt.task.done = true
	reverted := rt.tracked.Revert(e.world)
	delete(e.runtimes, k)
	e.log.Debug("effect stopped",
		zap.String("region", k.Region),
		zap.String("disaster", k.Disaster),
		zap.Int("reverted", reverted),
	)
}

// Tick advances every live task by one game tick, in stable key order.
// Finished tasks keep their runtime (and tracked set) until Stop.
func (e *Engine) Tick() {
	for _, k := range e.keys() {
		e.runtimes[k].task.step(e.log)
	}
}

func (e *Engine) keys() []Key {
	keys := make([]Key, 0, len(e.runtimes))
	for k := range e.runtimes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].Disaster < keys[j].Disaster
	})
	return keys
}

// Has reports whether a runtime exists for k, running or finished.
func (e *Engine) Has(k Key) bool {
	_, ok := e.runtimes[k]
	return ok
}

// Running reports whether the task for k is still counting ticks.
func (e *Engine) Running(k Key) bool {
	rt, ok := e.runtimes[k]
	return ok && !rt.task.done
}

// Tracked returns the size of k's tracked mutation set.
func (e *Engine) Tracked(k Key) int {
	if rt, ok := e.runtimes[k]; ok {
		return rt.tracked.Len()
	}
	return 0
}

// Len returns the number of runtimes.
func (e *Engine) Len() int {
	return len(e.runtimes)
}

// TrackedTotal returns the tracked locations across all runtimes.
func (e *Engine) TrackedTotal() int {
	n := 0
	for _, rt := range e.runtimes {
		n += rt.tracked.Len()
	}
	return n
}

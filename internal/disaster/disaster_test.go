package disaster

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/doomsday/server/internal/core/event"
	"github.com/doomsday/server/internal/data"
	"github.com/doomsday/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 50 * time.Millisecond

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type staticSource struct {
	entries []data.RegionEntry
	err     error
}

func (s *staticSource) LoadRegions() ([]data.RegionEntry, error) {
	return s.entries, s.err
}

type note struct {
	text   string
	region string
}

type recordingNotifier struct {
	notes   []note
	panicOn string
}

func (n *recordingNotifier) Notify(message string, _ world.Location, r *Region) {
	if r.ID == n.panicOn {
		panic("notifier broken")
	}
	n.notes = append(n.notes, note{text: message, region: r.ID})
}

type mapMessages map[string]string

func (m mapMessages) Resolve(key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// rowEffect converts Grass to Fire along row z, one block per tick, starting
// at x=0.
func rowEffect(z int32) Factory {
	return func() Routine {
		return Funcs{Interval: 1, Action: func(c *Context) {
			c.Convert(world.Location{X: int32(c.Elapsed - 1), Y: 0, Z: z}, world.Grass, world.Fire)
		}}
	}
}

func region(id string, disasters ...data.DisasterEntry) data.RegionEntry {
	return data.RegionEntry{
		ID:        id,
		Name:      strings.ToUpper(id[:1]) + id[1:],
		Bounds:    &data.BoundsEntry{MaxX: 15, MaxY: 15, MaxZ: 15},
		Disasters: disasters,
	}
}

func idle(id, typ string) data.DisasterEntry {
	return data.DisasterEntry{ID: id, Type: typ, MinInterval: 1000, MaxInterval: 1000, Duration: 100}
}

type fixture struct {
	svc    *Service
	grid   *world.Grid
	notes  *recordingNotifier
	clock  *fakeClock
	source *staticSource
	bus    *event.Bus
}

func newFixture(t *testing.T, checkInterval int, regions ...data.RegionEntry) *fixture {
	t.Helper()
	f := &fixture{
		grid:   world.NewGrid(),
		notes:  &recordingNotifier{},
		clock:  &fakeClock{t: time.Unix(1_700_000_000, 0)},
		source: &staticSource{entries: regions},
		bus:    event.NewBus(),
	}
	for x := int32(0); x < 16; x++ {
		f.grid.SetBlock(world.Location{X: x, Y: 0, Z: 0}, world.Grass)
		f.grid.SetBlock(world.Location{X: x, Y: 0, Z: 1}, world.Grass)
	}
	f.grid.DrainChanges()

	reg := NewRegistry()
	reg.Register("burn", rowEffect(0))
	reg.Register("soak", rowEffect(1))

	svc, err := NewService(Deps{
		Source:        f.source,
		Registry:      reg,
		World:         f.grid,
		Members:       world.NewState(),
		Notifier:      f.notes,
		Bus:           f.bus,
		Rand:          rand.New(rand.NewSource(1)),
		Now:           f.clock.Now,
		Tick:          testTick,
		CheckInterval: checkInterval,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) disaster(regionID, id string) *Disaster {
	return f.svc.State().Region(regionID).Disaster(id)
}

func (f *fixture) row(z int32, n int) []world.Material {
	out := make([]world.Material, n)
	for x := range n {
		out[x] = f.grid.Block(world.Location{X: int32(x), Y: 0, Z: z})
	}
	return out
}

func repeat(m world.Material, n int) []world.Material {
	out := make([]world.Material, n)
	for i := range out {
		out[i] = m
	}
	return out
}

func TestScheduleNext_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Unix(100, 0)
	d := &Disaster{Definition: Definition{MinInterval: 3, MaxInterval: 7}}

	lo := now.Add(3 * testTick)
	hi := now.Add(7 * testTick)
	for range 1000 {
		d.ScheduleNext(now, testTick, rng)
		assert.False(t, d.NextCheck.Before(lo), "next check %v before %v", d.NextCheck, lo)
		assert.True(t, d.NextCheck.Before(hi), "next check %v not before %v", d.NextCheck, hi)
	}
}

func TestScheduleNext_FixedInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Unix(100, 0)
	d := &Disaster{Definition: Definition{MinInterval: 5, MaxInterval: 5}}

	for range 10 {
		d.ScheduleNext(now, testTick, rng)
		assert.Equal(t, now.Add(5*testTick), d.NextCheck)
	}
}

func TestDisaster_StartSetsWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Unix(100, 0)
	d := &Disaster{Definition: Definition{MinInterval: 10, MaxInterval: 10, DurationTicks: 40}}

	d.Start(now, testTick, rng)

	assert.True(t, d.Active)
	assert.Equal(t, now, d.LastOccurrence)
	assert.Equal(t, d.LastOccurrence.Add(40*testTick), d.EndTime)
	assert.Equal(t, now.Add(10*testTick), d.NextCheck)
	assert.Equal(t, 40*testTick, d.Remaining(now))

	d.End()
	assert.False(t, d.Active)
	assert.Zero(t, d.Remaining(now))
}

func TestScheduler_CertainDisasterStartsOnFirstTick(t *testing.T) {
	f := newFixture(t, 1, region("north", data.DisasterEntry{
		ID: "wildfire", Type: "burn", Probability: 1, Duration: 20,
	}))

	f.svc.Tick()

	d := f.disaster("north", "wildfire")
	require.True(t, d.Active)
	assert.Equal(t, d.LastOccurrence.Add(20*testTick), d.EndTime)
	assert.True(t, f.svc.Engine().Running(Key{Region: "north", Disaster: "wildfire"}))
	require.Len(t, f.notes.notes, 1)
	assert.Equal(t, "north", f.notes.notes[0].region)
}

func TestScheduler_ImpossibleDisasterNeverStarts(t *testing.T) {
	f := newFixture(t, 1, region("north", data.DisasterEntry{
		ID: "wildfire", Type: "burn", Probability: 0, MinInterval: 2, MaxInterval: 2, Duration: 20,
	}))
	d := f.disaster("north", "wildfire")
	prev := d.NextCheck

	for range 50 {
		f.clock.Advance(2 * testTick)
		f.svc.Evaluate()

		assert.False(t, d.Active)
		assert.True(t, d.NextCheck.After(prev))
		prev = d.NextCheck
	}
	assert.Zero(t, f.svc.Engine().Len())
	assert.Empty(t, f.notes.notes)
}

func TestScheduler_ExpiryEndsAndReverts(t *testing.T) {
	f := newFixture(t, 1, region("north", data.DisasterEntry{
		ID: "wildfire", Type: "burn", MinInterval: 1000, MaxInterval: 1000, Duration: 4,
	}))
	var ended []event.DisasterEnded
	event.Subscribe(f.bus, func(e event.DisasterEnded) { ended = append(ended, e) })

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	for range 4 {
		f.svc.Engine().Tick()
	}
	key := Key{Region: "north", Disaster: "wildfire"}
	assert.Equal(t, repeat(world.Fire, 4), f.row(0, 4))
	assert.False(t, f.svc.Engine().Running(key))
	assert.True(t, f.svc.Engine().Has(key), "finished tasks keep their mutations until the disaster ends")

	f.clock.Advance(4 * testTick)
	f.svc.Evaluate()

	assert.False(t, f.disaster("north", "wildfire").Active)
	assert.False(t, f.svc.Engine().Has(key))
	assert.Equal(t, repeat(world.Grass, 4), f.row(0, 4))

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Len(t, ended, 1)
	assert.Equal(t, event.EndExpired, ended[0].Reason)
}

func TestScheduler_PanickingPairDoesNotStopOthers(t *testing.T) {
	certain := data.DisasterEntry{ID: "wildfire", Type: "burn", Probability: 1, Duration: 20}
	f := newFixture(t, 1, region("alpha", certain), region("beta", certain))
	f.notes.panicOn = "alpha"

	assert.NotPanics(t, f.svc.Evaluate)

	assert.True(t, f.disaster("beta", "wildfire").Active)
	assert.True(t, f.svc.Engine().Running(Key{Region: "beta", Disaster: "wildfire"}))
	require.Len(t, f.notes.notes, 1)
	assert.Equal(t, "beta", f.notes.notes[0].region)
}

func TestEngine_PanickingActionIsRecovered(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("broken", "broken")))
	reg := f.svc.engine.registry
	reg.Register("broken", func() Routine {
		return Funcs{Interval: 1, Action: func(*Context) { panic("boom") }}
	})

	require.NoError(t, f.svc.Trigger("north", "broken"))

	assert.NotPanics(t, f.svc.Tick)
	assert.True(t, f.svc.Engine().Running(Key{Region: "north", Disaster: "broken"}))
}

func TestStop_RevertsExactlyTrackedLocations(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	outside := world.Location{X: 10, Y: 0, Z: 0}
	key := Key{Region: "north", Disaster: "wildfire"}
	const k = 5

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	for range k {
		f.svc.Engine().Tick()
	}
	require.Equal(t, k, f.svc.Engine().Tracked(key))
	f.grid.SetBlock(outside, world.Stone)

	require.NoError(t, f.svc.Stop("north", "wildfire"))

	assert.Equal(t, repeat(world.Grass, k), f.row(0, k))
	assert.Equal(t, world.Stone, f.grid.Block(outside))
	assert.Zero(t, f.svc.Engine().Tracked(key))
	assert.Zero(t, f.svc.Engine().Len())
	assert.False(t, f.disaster("north", "wildfire").Active)
}

func TestStop_IndependentDisastersInOneRegion(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), idle("flood", "soak")))
	fire := Key{Region: "north", Disaster: "wildfire"}
	flood := Key{Region: "north", Disaster: "flood"}

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Trigger("north", "flood"))
	for range 3 {
		f.svc.Engine().Tick()
	}
	require.Equal(t, 3, f.svc.Engine().Tracked(fire))
	require.Equal(t, 3, f.svc.Engine().Tracked(flood))

	require.NoError(t, f.svc.Stop("north", "wildfire"))

	assert.Equal(t, repeat(world.Grass, 3), f.row(0, 3))
	assert.Equal(t, repeat(world.Fire, 3), f.row(1, 3))
	assert.False(t, f.svc.Engine().Has(fire))
	assert.True(t, f.svc.Engine().Running(flood))
	assert.Equal(t, 3, f.svc.Engine().Tracked(flood))
	assert.True(t, f.disaster("north", "flood").Active)

	f.svc.Engine().Tick()
	assert.Equal(t, 4, f.svc.Engine().Tracked(flood))
	assert.Equal(t, world.Grass, f.grid.Block(world.Location{X: 3, Y: 0, Z: 0}))
}

func TestTrigger_ActiveDisasterIsReplaced(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	key := Key{Region: "north", Disaster: "wildfire"}

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	for range 3 {
		f.svc.Engine().Tick()
	}
	first := f.disaster("north", "wildfire").LastOccurrence

	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.Trigger("north", "wildfire"))

	d := f.disaster("north", "wildfire")
	assert.Equal(t, 1, f.svc.Engine().Len())
	assert.Zero(t, f.svc.Engine().Tracked(key))
	assert.Equal(t, repeat(world.Grass, 3), f.row(0, 3))
	assert.Equal(t, first.Add(time.Second), d.LastOccurrence)
	assert.Equal(t, d.LastOccurrence.Add(100*testTick), d.EndTime)

	f.svc.Engine().Tick()
	assert.Equal(t, 1, f.svc.Engine().Tracked(key))
}

func TestTrigger_UnregisteredTypeStartsWithoutEffect(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("comet", "comet")))

	require.NoError(t, f.svc.Trigger("north", "comet"))

	assert.True(t, f.disaster("north", "comet").Active)
	assert.Zero(t, f.svc.Engine().Len())
}

func TestTrigger_Errors(t *testing.T) {
	off := false
	disabled := idle("plague", "burn")
	disabled.Enabled = &off
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), disabled))

	err := f.svc.Trigger("south", "wildfire")
	assert.True(t, errors.Is(err, ErrRegionNotFound))

	err = f.svc.Trigger("north", "meteor")
	assert.True(t, errors.Is(err, ErrDisasterNotFound))

	err = f.svc.Trigger("north", "plague")
	assert.True(t, errors.Is(err, ErrDisasterDisabled))
	assert.False(t, f.disaster("north", "plague").Active)

	err = f.svc.Stop("south", "wildfire")
	assert.True(t, errors.Is(err, ErrRegionNotFound))
	assert.Zero(t, f.svc.Engine().Len())
}

func TestStop_IdleIsNoop(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	d := f.disaster("north", "wildfire")
	before := *d

	require.NoError(t, f.svc.Stop("north", "wildfire"))

	assert.Equal(t, before, *d)
	assert.Empty(t, f.notes.notes)
	assert.Zero(t, f.bus.Pending())
}

func TestReload_ClearsEveryRuntime(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), idle("flood", "soak")))
	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Trigger("north", "flood"))
	for range 4 {
		f.svc.Engine().Tick()
	}
	require.Equal(t, 8, f.svc.Engine().TrackedTotal())

	require.NoError(t, f.svc.Reload())

	assert.Zero(t, f.svc.Engine().Len())
	assert.Zero(t, f.svc.Engine().TrackedTotal())
	assert.Zero(t, f.svc.State().ActiveCount())
	assert.Equal(t, repeat(world.Grass, 4), f.row(0, 4))
	assert.Equal(t, repeat(world.Grass, 4), f.row(1, 4))

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	f.svc.Engine().Tick()
	assert.Equal(t, 1, f.svc.Engine().TrackedTotal())
}

func TestReload_FailureKeepsState(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	f.svc.Engine().Tick()
	state := f.svc.State()
	f.source.err = errors.New("disk on fire")

	err := f.svc.Reload()

	require.Error(t, err)
	assert.Same(t, state, f.svc.State())
	assert.True(t, f.disaster("north", "wildfire").Active)
	assert.Equal(t, 1, f.svc.Engine().TrackedTotal())
}

func TestReload_PreservesAutomaticMode(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))

	f.svc.DisableAutomatic()
	require.NoError(t, f.svc.Reload())
	assert.False(t, f.svc.IsAutomaticEnabled())

	f.svc.EnableAutomatic()
	require.NoError(t, f.svc.Reload())
	assert.True(t, f.svc.IsAutomaticEnabled())
}

func TestReload_PicksUpNewDefinitions(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	f.source.entries = []data.RegionEntry{region("south", idle("flood", "soak"))}

	require.NoError(t, f.svc.Reload())

	assert.Nil(t, f.svc.State().Region("north"))
	require.NotNil(t, f.svc.State().Region("south"))
	assert.True(t, errors.Is(f.svc.Trigger("north", "wildfire"), ErrRegionNotFound))
}

func TestService_DriverInterval(t *testing.T) {
	f := newFixture(t, 3, region("north", data.DisasterEntry{
		ID: "wildfire", Type: "burn", Probability: 1, Duration: 20,
	}))

	f.svc.Tick()
	f.svc.Tick()
	assert.False(t, f.disaster("north", "wildfire").Active)

	f.svc.Tick()
	assert.True(t, f.disaster("north", "wildfire").Active)
}

func TestService_DisableAutomatic(t *testing.T) {
	f := newFixture(t, 1, region("north",
		data.DisasterEntry{ID: "wildfire", Type: "burn", Probability: 1, Duration: 20},
		idle("flood", "soak"),
	))
	require.NoError(t, f.svc.Trigger("north", "flood"))

	f.svc.DisableAutomatic()
	for range 10 {
		f.svc.Tick()
	}

	assert.False(t, f.disaster("north", "wildfire").Active)
	assert.True(t, f.disaster("north", "flood").Active)
	assert.Equal(t, 10, f.svc.Engine().Tracked(Key{Region: "north", Disaster: "flood"}))

	f.svc.EnableAutomatic()
	f.svc.Tick()
	assert.True(t, f.disaster("north", "wildfire").Active)
}

func TestService_ShutdownStopsEverything(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), idle("flood", "soak")))
	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Trigger("north", "flood"))
	f.svc.Engine().Tick()

	f.svc.Shutdown()

	assert.Zero(t, f.svc.Engine().Len())
	assert.False(t, f.svc.IsAutomaticEnabled())
	assert.Equal(t, world.Grass, f.grid.Block(world.Location{X: 0, Y: 0, Z: 0}))
	assert.Equal(t, world.Grass, f.grid.Block(world.Location{X: 0, Y: 0, Z: 1}))
}

func TestService_Status(t *testing.T) {
	off := false
	disabled := idle("plague", "burn")
	disabled.Enabled = &off
	soon := data.DisasterEntry{ID: "quake", Type: "burn", MinInterval: 10, MaxInterval: 10, Duration: 5}
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), disabled, soon))
	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	f.clock.Advance(20 * testTick)

	status := f.svc.Status()

	require.Len(t, status, 1)
	rs := status[0]
	assert.Equal(t, "North", rs.DisplayName)
	require.Len(t, rs.Active, 1)
	assert.Equal(t, "wildfire", rs.Active[0].DisasterID)
	assert.Equal(t, 80*testTick, rs.Active[0].Remaining)
	require.Len(t, rs.Pending, 1)
	assert.Equal(t, "quake", rs.Pending[0].DisasterID)
	assert.Zero(t, rs.Pending[0].UntilCheck)
}

func TestAnnouncements(t *testing.T) {
	entry := idle("wildfire", "burn")
	entry.Message = "Fire sweeps {region}!"
	f := newFixture(t, 1, region("north", entry))

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Stop("north", "wildfire"))

	require.Len(t, f.notes.notes, 2)
	assert.Equal(t, "Fire sweeps North!", f.notes.notes[0].text)
	assert.Equal(t, "disasters.wildfire.end", f.notes.notes[1].text)
}

func TestAnnouncements_ResolvedFromMessages(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn")))
	f.svc.sched.messages = mapMessages{
		"disasters.wildfire.start": "{region} burns",
		"disasters.wildfire.end":   "The fires in {region} die down",
	}
	var started []event.DisasterStarted
	event.Subscribe(f.bus, func(e event.DisasterStarted) { started = append(started, e) })

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Stop("north", "wildfire"))

	require.Len(t, f.notes.notes, 2)
	assert.Equal(t, "North burns", f.notes.notes[0].text)
	assert.Equal(t, "The fires in North die down", f.notes.notes[1].text)

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Len(t, started, 1)
	assert.True(t, started[0].Manual)
	assert.Equal(t, started[0].At.Add(100*testTick), started[0].EndsAt)
}

func TestContext_ConvertStaysInsideRegion(t *testing.T) {
	grid := world.NewGrid()
	inside := world.Location{X: 1, Y: 1, Z: 1}
	outside := world.Location{X: 16, Y: 1, Z: 1}
	grid.SetBlock(inside, world.Grass)
	grid.SetBlock(outside, world.Grass)
	c := &Context{
		Region:  &Region{ID: "north", Bounds: world.Bounds{MaxX: 15, MaxY: 15, MaxZ: 15}},
		world:   grid,
		tracked: &Mutations{},
	}

	assert.False(t, c.Convert(outside, world.Grass, world.Fire))
	assert.False(t, c.Convert(inside, world.Stone, world.Fire))
	assert.True(t, c.Convert(inside, world.Grass, world.Fire))
	assert.True(t, c.Convert(inside, world.Fire, world.Mud))

	assert.Equal(t, 1, c.Tracked())
	prev, ok := c.tracked.Original(inside)
	require.True(t, ok)
	assert.Equal(t, world.Grass, prev)

	assert.Equal(t, 1, c.tracked.Revert(grid))
	assert.Equal(t, world.Grass, grid.Block(inside))
	assert.Equal(t, world.Grass, grid.Block(outside))
}

// spotEffect converts from to to at one fixed location every tick.
func spotEffect(l world.Location, from, to world.Material) Factory {
	return func() Routine {
		return Funcs{Interval: 1, Action: func(c *Context) { c.Convert(l, from, to) }}
	}
}

// newOverlapFixture lays snow at spot through "blizzard", then melts it
// through "heatwave", so both runtimes hold the same location.
func newOverlapFixture(t *testing.T) (*fixture, world.Location) {
	t.Helper()
	spot := world.Location{X: 5, Y: 3, Z: 5}
	f := newFixture(t, 1, region("north", idle("blizzard", "snow"), idle("heatwave", "melt")))
	f.svc.engine.registry.Register("snow", spotEffect(spot, world.Air, world.Snow))
	f.svc.engine.registry.Register("melt", spotEffect(spot, world.Snow, world.Air))

	require.NoError(t, f.svc.Trigger("north", "blizzard"))
	f.svc.Engine().Tick()
	require.Equal(t, world.Snow, f.grid.Block(spot))
	require.NoError(t, f.svc.Trigger("north", "heatwave"))
	f.svc.Engine().Tick()
	require.Equal(t, world.Air, f.grid.Block(spot))
	return f, spot
}

func TestReload_OverlappingConversionsLeaveNothingBehind(t *testing.T) {
	f, spot := newOverlapFixture(t)

	require.NoError(t, f.svc.Reload())

	assert.Equal(t, world.Air, f.grid.Block(spot))
	assert.Zero(t, f.svc.Engine().Len())
	assert.Empty(t, f.svc.engine.claims)
}

func TestStop_OverlappingConversionsInEitherOrder(t *testing.T) {
	for _, order := range [][2]string{{"blizzard", "heatwave"}, {"heatwave", "blizzard"}} {
		t.Run(order[0]+"_first", func(t *testing.T) {
			f, spot := newOverlapFixture(t)
			other := Key{Region: "north", Disaster: order[1]}

			require.NoError(t, f.svc.Stop("north", order[0]))

			assert.Equal(t, world.Air, f.grid.Block(spot), "a location still held is left alone")
			assert.Equal(t, 1, f.svc.Engine().Tracked(other))

			require.NoError(t, f.svc.Stop("north", order[1]))

			assert.Equal(t, world.Air, f.grid.Block(spot))
			assert.Empty(t, f.svc.engine.claims)
		})
	}
}

func TestStop_ChainedConversionsRestoreFirstMaterial(t *testing.T) {
	spot := world.Location{X: 2, Y: 2, Z: 2}
	f := newFixture(t, 1, region("north", idle("a", "a"), idle("b", "b"), idle("c", "c")))
	reg := f.svc.engine.registry
	reg.Register("a", spotEffect(spot, world.Air, world.Water))
	reg.Register("b", spotEffect(spot, world.Water, world.Ice))
	reg.Register("c", spotEffect(spot, world.Ice, world.Snow))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.svc.Trigger("north", id))
		f.svc.Engine().Tick()
	}
	require.Equal(t, world.Snow, f.grid.Block(spot))

	require.NoError(t, f.svc.Stop("north", "b"))
	assert.Equal(t, world.Snow, f.grid.Block(spot))
	require.NoError(t, f.svc.Stop("north", "c"))
	assert.Equal(t, world.Snow, f.grid.Block(spot), "a still holds the location")
	require.NoError(t, f.svc.Stop("north", "a"))
	assert.Equal(t, world.Air, f.grid.Block(spot))
}

type brokenStart struct{ Funcs }

func (brokenStart) Start(*Context) { panic("setup failed") }

func TestTrigger_PanickingStartIsRecovered(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("quake", "quake")))
	f.svc.engine.registry.Register("quake", func() Routine {
		return brokenStart{Funcs{Interval: 1, Action: func(*Context) {}}}
	})
	key := Key{Region: "north", Disaster: "quake"}

	assert.NotPanics(t, func() { require.NoError(t, f.svc.Trigger("north", "quake")) })

	assert.True(t, f.disaster("north", "quake").Active)
	assert.True(t, f.svc.Engine().Running(key))
	require.NoError(t, f.svc.Stop("north", "quake"))
	assert.Zero(t, f.svc.Engine().Len())
}

func TestHistoryEvents_EveryStartHasAnEnd(t *testing.T) {
	f := newFixture(t, 1, region("north", idle("wildfire", "burn"), idle("flood", "soak")))
	var starts int
	var reasons []event.EndReason
	event.Subscribe(f.bus, func(event.DisasterStarted) { starts++ })
	event.Subscribe(f.bus, func(e event.DisasterEnded) { reasons = append(reasons, e.Reason) })

	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Trigger("north", "wildfire"))
	require.NoError(t, f.svc.Trigger("north", "flood"))
	require.NoError(t, f.svc.Reload())
	require.NoError(t, f.svc.Trigger("north", "flood"))
	f.svc.Shutdown()
	f.bus.SwapBuffers()
	f.bus.DispatchAll()

	assert.Equal(t, 4, starts)
	assert.Equal(t, []event.EndReason{
		event.EndReplaced, event.EndReload, event.EndReload, event.EndShutdown,
	}, reasons)
	assert.False(t, f.disaster("north", "flood").Active)
	assert.Len(t, f.notes.notes, 4, "only starts are announced")
}

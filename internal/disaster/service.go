package disaster

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/doomsday/server/internal/core/event"
	"github.com/doomsday/server/internal/data"
	"go.uber.org/zap"
)

var (
	ErrRegionNotFound   = errors.New("region not found")
	ErrDisasterNotFound = errors.New("disaster not found")
	ErrDisasterDisabled = errors.New("disaster is disabled")
)

// Source is the configuration collaborator that supplies region and
// disaster definitions at startup and on every reload.
type Source interface {
	LoadRegions() ([]data.RegionEntry, error)
}

// Deps wires a Service.
type Deps struct {
	Source        Source
	Registry      *Registry
	World         World
	Members       Membership
	Notifier      Notifier
	Messages      Messages
	Bus           *event.Bus // optional
	Rand          *rand.Rand
	Now           func() time.Time // defaults to time.Now
	Tick          time.Duration    // length of one game tick
	CheckInterval int              // game ticks between scheduler evaluations
	Log           *zap.Logger
}

// driver is the periodic scheduler driver: it fires once every interval
// game ticks while running.
type driver struct {
	interval int
	counter  int
	running  bool
}

func (d *driver) start() {
	d.running = true
	d.counter = 0
}

func (d *driver) stop() {
	d.running = false
	d.counter = 0
}

func (d *driver) due() bool {
	if !d.running {
		return false
	}
	d.counter++
	if d.counter < d.interval {
		return false
	}
	d.counter = 0
	return true
}

// Service is the admin/query façade over the scheduler and the effect engine.
// Every method must be called from the game loop goroutine; network handlers
// already run there.
type Service struct {
	source Source
	sched  *Scheduler
	engine *Engine
	driver driver
	log    *zap.Logger
}

// NewService loads the initial definitions from deps.Source. Automatic mode
// starts enabled.
func NewService(deps Deps) (*Service, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Tick <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %s", deps.Tick)
	}
	if deps.CheckInterval <= 0 {
		deps.CheckInterval = 1
	}

	entries, err := deps.Source.LoadRegions()
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}

	engine := NewEngine(deps.Registry, deps.World, deps.Members, deps.Rand, deps.Log)
	s := &Service{
		source: deps.Source,
		engine: engine,
		driver: driver{interval: deps.CheckInterval},
		log:    deps.Log,
		sched: &Scheduler{
			state:    NewState(entries, deps.Now(), deps.Tick, deps.Rand),
			engine:   engine,
			notifier: deps.Notifier,
			messages: deps.Messages,
			bus:      deps.Bus,
			rng:      deps.Rand,
			now:      deps.Now,
			tick:     deps.Tick,
			log:      deps.Log,
		},
	}
	s.driver.start()
	return s, nil
}

// Tick advances one game tick: a scheduler evaluation when the driver is due,
// then one step of every effect task. Effect tasks keep running while
// automatic mode is off.
func (s *Service) Tick() {
	if s.driver.due() {
		s.sched.Evaluate()
	}
	s.engine.Tick()
}

// Evaluate forces one scheduler evaluation now.
func (s *Service) Evaluate() {
	s.sched.Evaluate()
}

func (s *Service) lookup(regionID, disasterID string) (*Region, *Disaster, error) {
	r := s.sched.state.Region(regionID)
	if r == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	d := r.Disaster(disasterID)
	if d == nil {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrDisasterNotFound, regionID, disasterID)
	}
	return r, d, nil
}

// Trigger starts a disaster immediately, bypassing the probability gate.
// Re-triggering an active disaster restarts it.
func (s *Service) Trigger(regionID, disasterID string) error {
	r, d, err := s.lookup(regionID, disasterID)
	if err != nil {
		return err
	}
	if !d.Enabled {
		return fmt.Errorf("%w: %s/%s", ErrDisasterDisabled, regionID, disasterID)
	}
	s.sched.ManualTrigger(r, d)
	return nil
}

// Stop ends an active disaster. Stopping an idle disaster is a no-op.
func (s *Service) Stop(regionID, disasterID string) error {
	r, d, err := s.lookup(regionID, disasterID)
	if err != nil {
		return err
	}
	s.sched.ManualStop(r, d)
	return nil
}

// Reload re-reads every definition from the Source. On success the driver is
// cancelled, every effect is stopped and reverted, the state is replaced and
// the driver restarts if automatic mode was on. On failure nothing changes.
func (s *Service) Reload() error {
	entries, err := s.source.LoadRegions()
	if err != nil {
		return fmt.Errorf("reload regions: %w", err)
	}
	wasRunning := s.driver.running
	s.driver.stop()
	ended := s.sched.closeAll(event.EndReload)
	s.engine.ShutdownAll()
	s.sched.state = NewState(entries, s.sched.now(), s.sched.tick, s.sched.rng)
	if wasRunning {
		s.driver.start()
	}
	s.log.Info("disaster definitions reloaded",
		zap.Int("regions", s.sched.state.RegionCount()),
		zap.Int("ended", ended),
	)
	return nil
}

// Shutdown cancels the driver and stops every effect. Called at teardown.
func (s *Service) Shutdown() {
	s.driver.stop()
	ended := s.sched.closeAll(event.EndShutdown)
	s.engine.ShutdownAll()
	s.log.Info("disaster service stopped", zap.Int("ended", ended))
}

// EnableAutomatic restarts the periodic driver.
func (s *Service) EnableAutomatic() {
	if !s.driver.running {
		s.driver.start()
	}
}

// DisableAutomatic cancels the periodic driver. Active disasters are not
// stopped; their effect tasks run to their own duration bound.
func (s *Service) DisableAutomatic() {
	s.driver.stop()
}

func (s *Service) IsAutomaticEnabled() bool {
	return s.driver.running
}

// State returns the current region/disaster set.
func (s *Service) State() *State {
	return s.sched.state
}

// Engine returns the effect engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// ActiveStatus describes one running disaster.
type ActiveStatus struct {
	DisasterID string
	Remaining  time.Duration
}

// PendingStatus describes one idle, enabled disaster.
type PendingStatus struct {
	DisasterID string
	UntilCheck time.Duration
}

// RegionStatus is the status of one region.
type RegionStatus struct {
	RegionID    string
	DisplayName string
	Active      []ActiveStatus
	Pending     []PendingStatus
}

// Status reports, per region, active disasters with their remaining time and
// pending disasters with their time to next check. Disabled disasters are
// left out.
func (s *Service) Status() []RegionStatus {
	now := s.sched.now()
	var out []RegionStatus
	s.sched.state.EachRegion(func(r *Region) {
		rs := RegionStatus{RegionID: r.ID, DisplayName: r.DisplayName}
		r.EachDisaster(func(d *Disaster) {
			switch {
			case d.Active:
				rs.Active = append(rs.Active, ActiveStatus{DisasterID: d.ID, Remaining: d.Remaining(now)})
			case d.Enabled:
				rs.Pending = append(rs.Pending, PendingStatus{DisasterID: d.ID, UntilCheck: d.UntilCheck(now)})
			}
		})
		sort.SliceStable(rs.Pending, func(i, j int) bool { return rs.Pending[i].UntilCheck < rs.Pending[j].UntilCheck })
		out = append(out, rs)
	})
	return out
}

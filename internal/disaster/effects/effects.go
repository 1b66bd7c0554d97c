// Package effects holds the built-in disaster effect routines. Each routine
// only describes its cadence and one micro-action; the disaster engine does
// the tick counting, cancellation and reversal.
package effects

import (
	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/world"
)

// Effect tags, matching the disaster id (or type) in regions.yaml.
const (
	TagMeteorShower = "meteor_shower"
	TagTornado      = "tornado"
	TagEarthquake   = "earthquake"
	TagWildfire     = "wildfire"
	TagDrought      = "drought"
	TagFlood        = "flood"
	TagBlizzard     = "blizzard"
	TagAcidRain     = "acid_rain"
	TagPlague       = "plague"
	TagHeatwave     = "heatwave"
)

// RegisterAll registers every built-in effect.
func RegisterAll(reg *disaster.Registry) {
	reg.Register(TagMeteorShower, func() disaster.Routine { return &meteorShower{} })
	reg.Register(TagTornado, func() disaster.Routine { return &tornado{} })
	reg.Register(TagEarthquake, func() disaster.Routine { return earthquake{} })
	reg.Register(TagWildfire, func() disaster.Routine { return conversion(wildfire) })
	reg.Register(TagDrought, func() disaster.Routine { return conversion(drought) })
	reg.Register(TagFlood, func() disaster.Routine { return flood{} })
	reg.Register(TagBlizzard, func() disaster.Routine { return blizzard{} })
	reg.Register(TagAcidRain, func() disaster.Routine { return conversion(acidRain) })
	reg.Register(TagPlague, func() disaster.Routine { return affliction(plague) })
	reg.Register(TagHeatwave, func() disaster.Routine { return conversion(heatwave) })
}

// afflict applies a status to every online member of the region.
func afflict(c *disaster.Context, kind world.StatusKind, ticks, amplifier int) {
	for _, m := range c.Members() {
		m.ApplyStatus(kind, ticks, amplifier)
	}
}

// statusSpec is one status applied to members on every action.
type statusSpec struct {
	Kind      world.StatusKind
	Ticks     int
	Amplifier int
}

// conversionParams describes a surface conversion effect: each action makes
// Attempts random surface picks and converts the ones matching a rule.
type conversionParams struct {
	Every    int
	Attempts int
	Rules    map[world.Material]world.Material
	Statuses []statusSpec
}

type conversionRoutine struct {
	params conversionParams
}

func conversion(params conversionParams) disaster.Routine {
	return conversionRoutine{params: params}
}

func (r conversionRoutine) Every() int { return r.params.Every }

func (r conversionRoutine) Act(c *disaster.Context) {
	for i := 0; i < r.params.Attempts; i++ {
		l, ok := c.RandomSurface()
		if !ok {
			continue
		}
		from := c.Block(l)
		to, ok := r.params.Rules[from]
		if !ok {
			continue
		}
		c.Convert(l, from, to)
	}
	for _, s := range r.params.Statuses {
		afflict(c, s.Kind, s.Ticks, s.Amplifier)
	}
}

// afflictionParams is a status-only effect; it has nothing to revert.
type afflictionParams struct {
	Every    int
	Statuses []statusSpec
}

type afflictionRoutine struct {
	params afflictionParams
}

func affliction(params afflictionParams) disaster.Routine {
	return afflictionRoutine{params: params}
}

func (r afflictionRoutine) Every() int { return r.params.Every }

func (r afflictionRoutine) Act(c *disaster.Context) {
	for _, s := range r.params.Statuses {
		afflict(c, s.Kind, s.Ticks, s.Amplifier)
	}
}

var (
	wildfire = conversionParams{
		Every:    40,
		Attempts: 8,
		Rules: map[world.Material]world.Material{
			world.Grass:  world.Fire,
			world.Leaves: world.Fire,
			world.Log:    world.Fire,
		},
	}
	drought = conversionParams{
		Every:    100,
		Attempts: 16,
		Rules: map[world.Material]world.Material{
			world.Water: world.Sand,
			world.Grass: world.Dirt,
		},
		Statuses: []statusSpec{{Kind: world.StatusHunger, Ticks: 200, Amplifier: 0}},
	}
	acidRain = conversionParams{
		Every:    60,
		Attempts: 6,
		Rules: map[world.Material]world.Material{
			world.Grass:  world.Dirt,
			world.Leaves: world.Air,
		},
		Statuses: []statusSpec{{Kind: world.StatusPoison, Ticks: 60, Amplifier: 0}},
	}
	heatwave = conversionParams{
		Every:    80,
		Attempts: 12,
		Rules: map[world.Material]world.Material{
			world.Snow: world.Air,
			world.Ice:  world.Water,
		},
		Statuses: []statusSpec{
			{Kind: world.StatusHunger, Ticks: 160, Amplifier: 1},
			{Kind: world.StatusFatigue, Ticks: 160, Amplifier: 0},
		},
	}
	plague = afflictionParams{
		Every: 100,
		Statuses: []statusSpec{
			{Kind: world.StatusWeakness, Ticks: 200, Amplifier: 0},
			{Kind: world.StatusHunger, Ticks: 200, Amplifier: 0},
		},
	}
)

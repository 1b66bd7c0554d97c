package effects

import (
	"math"

	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/world"
)

// meteorShower drops one meteor per action: a crater at a random surface
// point, and a blast that throws nearby members outward.
type meteorShower struct{}

const (
	craterRadius = 2
	blastRadius  = 6.0
	blastForce   = 0.8
)

func (meteorShower) Every() int { return 60 }

func (meteorShower) Act(c *disaster.Context) {
	impact, ok := c.RandomSurface()
	if !ok {
		return
	}
	for dx := int32(-craterRadius); dx <= craterRadius; dx++ {
		for dy := int32(-craterRadius); dy <= craterRadius; dy++ {
			for dz := int32(-craterRadius); dz <= craterRadius; dz++ {
				if dx*dx+dy*dy+dz*dz > craterRadius*craterRadius {
					continue
				}
				l := world.Location{X: impact.X + dx, Y: impact.Y + dy, Z: impact.Z + dz}
				if m := c.Block(l); m != world.Air && m != world.Water {
					c.Convert(l, m, world.Air)
				}
			}
		}
	}
	cx, cz := float64(impact.X)+0.5, float64(impact.Z)+0.5
	for _, m := range c.Members() {
		d := m.HorizontalDistance(cx, cz)
		if d > blastRadius {
			continue
		}
		dirX, dirZ := unit(m.X-cx, m.Z-cz, c)
		m.Push(dirX*blastForce, 0.4, dirZ*blastForce)
	}
}

// tornado is a moving hazard: it wanders through the region and drags
// members within its radius toward its eye and upward.
type tornado struct {
	x, z float64
}

const (
	tornadoRadius = 8.0
	tornadoPull   = 0.25
	tornadoLift   = 0.4
	tornadoStep   = 2.0
)

func (t *tornado) Every() int { return 5 }

func (t *tornado) Start(c *disaster.Context) {
	if l, ok := c.RandomSurface(); ok {
		t.x, t.z = float64(l.X)+0.5, float64(l.Z)+0.5
		return
	}
	center := c.Region.Bounds.Center()
	t.x, t.z = float64(center.X)+0.5, float64(center.Z)+0.5
}

func (t *tornado) Act(c *disaster.Context) {
	b := c.Region.Bounds
	t.x = b.ClampX(t.x + (c.Rand.Float64()*2-1)*tornadoStep)
	t.z = b.ClampZ(t.z + (c.Rand.Float64()*2-1)*tornadoStep)
	for _, m := range c.Members() {
		if m.HorizontalDistance(t.x, t.z) > tornadoRadius {
			continue
		}
		m.Push((t.x-m.X)*tornadoPull, tornadoLift, (t.z-m.Z)*tornadoPull)
	}
}

// Position returns the eye of the tornado.
func (t *tornado) Position() (x, z float64) {
	return t.x, t.z
}

// earthquake shakes every member and cracks one surface block per action.
type earthquake struct{}

const quakeForce = 0.5

func (earthquake) Every() int { return 20 }

func (earthquake) Act(c *disaster.Context) {
	for _, m := range c.Members() {
		m.Push((c.Rand.Float64()*2-1)*quakeForce, 0.1, (c.Rand.Float64()*2-1)*quakeForce)
		m.ApplyStatus(world.StatusNausea, 100, 0)
	}
	l, ok := c.RandomSurface()
	if !ok {
		return
	}
	switch m := c.Block(l); m {
	case world.Grass, world.Dirt, world.Stone:
		c.Convert(l, m, world.Gravel)
	}
}

// flood raises water on top of random surface blocks.
type flood struct{}

func (flood) Every() int { return 30 }

func (flood) Act(c *disaster.Context) {
	for i := 0; i < 10; i++ {
		l, ok := c.RandomSurface()
		if !ok || c.Block(l) == world.Fire {
			continue
		}
		c.Convert(l.Above(), world.Air, world.Water)
	}
	afflict(c, world.StatusSlowness, 60, 0)
}

// blizzard freezes surface water, lays snow on solid ground and slows members.
type blizzard struct{}

func (blizzard) Every() int { return 40 }

func (blizzard) Act(c *disaster.Context) {
	for i := 0; i < 12; i++ {
		l, ok := c.RandomSurface()
		if !ok {
			continue
		}
		switch c.Block(l) {
		case world.Water:
			c.Convert(l, world.Water, world.Ice)
		case world.Fire, world.Snow, world.Ice:
		default:
			c.Convert(l.Above(), world.Air, world.Snow)
		}
	}
	afflict(c, world.StatusSlowness, 200, 1)
}

// unit normalises (dx, dz); a zero vector becomes a random direction.
func unit(dx, dz float64, c *disaster.Context) (float64, float64) {
	n := math.Hypot(dx, dz)
	if n < 1e-6 {
		a := c.Rand.Float64() * 2 * math.Pi
		return math.Cos(a), math.Sin(a)
	}
	return dx / n, dz / n
}

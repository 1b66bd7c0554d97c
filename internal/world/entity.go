package world

import (
	"fmt"
	"math"

	"github.com/doomsday/server/internal/net"
)

// StatusKind identifies a transient status effect.
type StatusKind uint8

const (
	StatusSlowness StatusKind = iota + 1
	StatusPoison
	StatusWeakness
	StatusNausea
	StatusHunger
	StatusBlindness
	StatusFatigue
)

var statusNames = map[StatusKind]string{
	StatusSlowness:  "slowness",
	StatusPoison:    "poison",
	StatusWeakness:  "weakness",
	StatusNausea:    "nausea",
	StatusHunger:    "hunger",
	StatusBlindness: "blindness",
	StatusFatigue:   "fatigue",
}

func (k StatusKind) String() string {
	if n, ok := statusNames[k]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(k))
}

// ParseStatusKind maps a status name back to its kind.
func ParseStatusKind(name string) (StatusKind, bool) {
	for k, n := range statusNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Status is one active status effect on an entity.
type Status struct {
	Kind      StatusKind
	Amplifier int
	TicksLeft int
}

// Entity is a connected participant of the world.
// Accessed only from the game loop goroutine — no locks needed.
type Entity struct {
	ID       uint64 // session ID
	Session  *net.Session
	Name     string
	RegionID string // region (nation) this entity is a member of

	X, Y, Z    float64
	VX, VY, VZ float64

	Statuses map[StatusKind]*Status

	// StatusDirty is set when a status was added or refreshed; StatusTickSystem
	// sends the update and clears it.
	StatusDirty bool
	// Moved is set when the server changed the position (knockback, spawn).
	Moved bool
}

// Location returns the block the entity stands in.
func (e *Entity) Location() Location {
	return Location{
		X: int32(math.Floor(e.X)),
		Y: int32(math.Floor(e.Y)),
		Z: int32(math.Floor(e.Z)),
	}
}

// HorizontalDistance returns the X/Z plane distance to (x, z).
func (e *Entity) HorizontalDistance(x, z float64) float64 {
	return math.Hypot(e.X-x, e.Z-z)
}

// ApplyStatus adds a status or extends an existing one. A weaker or shorter
// application never downgrades a running status.
func (e *Entity) ApplyStatus(kind StatusKind, ticks, amplifier int) {
	if ticks <= 0 {
		return
	}
	if e.Statuses == nil {
		e.Statuses = make(map[StatusKind]*Status)
	}
	if cur, ok := e.Statuses[kind]; ok {
		if amplifier > cur.Amplifier {
			cur.Amplifier = amplifier
		}
		if ticks > cur.TicksLeft {
			cur.TicksLeft = ticks
		}
	} else {
		e.Statuses[kind] = &Status{Kind: kind, Amplifier: amplifier, TicksLeft: ticks}
	}
	e.StatusDirty = true
}

// HasStatus reports whether kind is currently active.
func (e *Entity) HasStatus(kind StatusKind) bool {
	_, ok := e.Statuses[kind]
	return ok
}

// Push adds to the entity velocity. PhysicsSystem integrates it.
func (e *Entity) Push(dx, dy, dz float64) {
	e.VX += dx
	e.VY += dy
	e.VZ += dz
}

package world

import (
	"fmt"
	"math/rand"
)

// Material is the block type stored at a location.
type Material uint8

const (
	Air Material = iota
	Stone
	Dirt
	Grass
	Sand
	Gravel
	Water
	Ice
	Snow
	Log
	Leaves
	Fire
	Mud
)

var materialNames = [...]string{
	Air:    "air",
	Stone:  "stone",
	Dirt:   "dirt",
	Grass:  "grass",
	Sand:   "sand",
	Gravel: "gravel",
	Water:  "water",
	Ice:    "ice",
	Snow:   "snow",
	Log:    "log",
	Leaves: "leaves",
	Fire:   "fire",
	Mud:    "mud",
}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("material(%d)", uint8(m))
}

// ParseMaterial maps a lower-case block name back to its Material.
func ParseMaterial(name string) (Material, bool) {
	for i, n := range materialNames {
		if n == name {
			return Material(i), true
		}
	}
	return Air, false
}

// Grid is the shared mutable block store. Locations never written read as Air.
// Single-goroutine access only (game loop).
type Grid struct {
	blocks  map[Location]Material
	changed map[Location]struct{}
	order   []Location
}

// BlockChange is one location whose material changed since the last drain.
type BlockChange struct {
	Location Location
	Material Material
}

func NewGrid() *Grid {
	return &Grid{blocks: make(map[Location]Material)}
}

// Block returns the material at l.
func (g *Grid) Block(l Location) Material {
	return g.blocks[l]
}

// SetBlock writes m at l and records the change. Writing Air removes the entry.
func (g *Grid) SetBlock(l Location, m Material) {
	g.write(l, m)
	if g.changed == nil {
		g.changed = make(map[Location]struct{})
	}
	if _, ok := g.changed[l]; !ok {
		g.changed[l] = struct{}{}
		g.order = append(g.order, l)
	}
}

func (g *Grid) write(l Location, m Material) {
	if m == Air {
		delete(g.blocks, l)
		return
	}
	g.blocks[l] = m
}

// DrainChanges returns the locations changed since the last drain, in first
// change order, with their current material.
func (g *Grid) DrainChanges() []BlockChange {
	if len(g.order) == 0 {
		return nil
	}
	out := make([]BlockChange, len(g.order))
	for i, l := range g.order {
		out[i] = BlockChange{Location: l, Material: g.blocks[l]}
	}
	g.changed = nil
	g.order = g.order[:0]
	return out
}

// Count returns the number of non-air blocks.
func (g *Grid) Count() int {
	return len(g.blocks)
}

// Surface returns the highest non-air block of column (x, z) with
// minY <= y <= maxY.
func (g *Grid) Surface(x, z, minY, maxY int32) (Location, bool) {
	for y := maxY; y >= minY; y-- {
		l := Location{X: x, Y: y, Z: z}
		if g.blocks[l] != Air {
			return l, true
		}
	}
	return Location{}, false
}

// TerrainOptions controls SeedFlat.
type TerrainOptions struct {
	SurfaceY    int32
	Depth       int32   // solid layers below the surface block
	WaterChance float64 // per column
	TreeChance  float64 // per column
}

// SeedFlat lays down a flat layered terrain inside b: stone, dirt, then a
// grass surface with scattered water pools and small trees. Columns outside
// b are untouched. Seeding is not recorded as a change. Returns the number of
// blocks written.
func (g *Grid) SeedFlat(b Bounds, opts TerrainOptions, rng *rand.Rand) int {
	surface := opts.SurfaceY
	if surface > b.MaxY {
		surface = b.MaxY
	}
	bottom := surface - opts.Depth
	if bottom < b.MinY {
		bottom = b.MinY
	}
	n := 0
	for x := b.MinX; x <= b.MaxX; x++ {
		for z := b.MinZ; z <= b.MaxZ; z++ {
			for y := bottom; y < surface; y++ {
				m := Dirt
				if y < surface-2 {
					m = Stone
				}
				g.write(Location{X: x, Y: y, Z: z}, m)
				n++
			}
			top := Location{X: x, Y: surface, Z: z}
			switch r := rng.Float64(); {
			case r < opts.WaterChance:
				g.write(top, Water)
			case r < opts.WaterChance+opts.TreeChance && surface+4 <= b.MaxY:
				g.write(top, Dirt)
				for h := int32(1); h <= 3; h++ {
					g.write(Location{X: x, Y: surface + h, Z: z}, Log)
					n++
				}
				g.write(Location{X: x, Y: surface + 4, Z: z}, Leaves)
				n++
			default:
				g.write(top, Grass)
			}
			n++
		}
	}
	return n
}

package world

// cellSize is the edge of one AOI cell in blocks.
const cellSize = 32

type cell struct{ cx, cz int32 }

func cellOf(x, z int32) cell {
	return cell{floorDiv(x, cellSize), floorDiv(z, cellSize)}
}

func floorDiv(v, d int32) int32 {
	q := v / d
	if v%d != 0 && v < 0 {
		q--
	}
	return q
}

// AOIGrid buckets entity IDs by X/Z cell so range queries only visit nearby
// cells. Game loop only.
type AOIGrid struct {
	cells map[cell]map[uint64]struct{}
	where map[uint64]cell
}

func NewAOIGrid() *AOIGrid {
	return &AOIGrid{
		cells: make(map[cell]map[uint64]struct{}),
		where: make(map[uint64]cell),
	}
}

// Place puts id at (x, z), moving it if it is already indexed.
func (g *AOIGrid) Place(id uint64, x, z int32) {
	c := cellOf(x, z)
	if old, ok := g.where[id]; ok {
		if old == c {
			return
		}
		g.unlink(id, old)
	}
	bucket := g.cells[c]
	if bucket == nil {
		bucket = make(map[uint64]struct{})
		g.cells[c] = bucket
	}
	bucket[id] = struct{}{}
	g.where[id] = c
}

// Remove drops id from the index.
func (g *AOIGrid) Remove(id uint64) {
	if c, ok := g.where[id]; ok {
		g.unlink(id, c)
		delete(g.where, id)
	}
}

func (g *AOIGrid) unlink(id uint64, c cell) {
	bucket := g.cells[c]
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(g.cells, c)
	}
}

// Candidates returns the IDs in every cell that may hold a point within
// radius of (x, z). Callers filter by exact distance.
func (g *AOIGrid) Candidates(x, z, radius int32) []uint64 {
	lo, hi := cellOf(x-radius, z-radius), cellOf(x+radius, z+radius)
	var ids []uint64
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cz := lo.cz; cz <= hi.cz; cz++ {
			for id := range g.cells[cell{cx, cz}] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Len returns the number of indexed IDs.
func (g *AOIGrid) Len() int { return len(g.where) }

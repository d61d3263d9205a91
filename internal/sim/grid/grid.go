package grid

import (
	"errors"
	"fmt"

	"brickcube.ai/internal/sim/geom"
)

const DefaultSize = 6

var (
	ErrOutOfBounds = errors.New("out of bounds")
	ErrOverlap     = errors.New("overlap")
	ErrNotFound    = errors.New("piece not found")
)

// PieceID identifies a committed piece. The zero value marks an empty cell.
type PieceID uint32

// Grid is an N×N×N occupancy lattice. Every multi-cell mutation is
// all-or-nothing. A Grid is not safe for concurrent mutation.
type Grid struct {
	size  int
	cells []PieceID

	// absolute cells per piece, in commit order
	owned map[PieceID][]geom.Vec3i
}

func New(size int) *Grid {
	if size <= 0 {
		size = DefaultSize
	}
	return &Grid{
		size:  size,
		cells: make([]PieceID, size*size*size),
		owned: map[PieceID][]geom.Vec3i{},
	}
}

func (g *Grid) Size() int { return g.size }

func (g *Grid) index(p geom.Vec3i) int {
	return (p.X*g.size+p.Y)*g.size + p.Z
}

func (g *Grid) InBounds(p geom.Vec3i) bool {
	return p.X >= 0 && p.X < g.size &&
		p.Y >= 0 && p.Y < g.size &&
		p.Z >= 0 && p.Z < g.size
}

// IsEmpty reports an in-bounds, unclaimed cell. Out-of-bounds cells are never empty.
func (g *Grid) IsEmpty(p geom.Vec3i) bool {
	return g.InBounds(p) && g.cells[g.index(p)] == 0
}

// PieceAt returns the owner of p, or 0 for empty and out-of-bounds cells.
func (g *Grid) PieceAt(p geom.Vec3i) PieceID {
	if !g.InBounds(p) {
		return 0
	}
	return g.cells[g.index(p)]
}

// Fits reports whether every anchor+offset cell is in bounds and empty.
func (g *Grid) Fits(offsets []geom.Vec3i, anchor geom.Vec3i) bool {
	return g.Check(offsets, anchor) == nil
}

// Check is Fits with the reason for rejection.
func (g *Grid) Check(offsets []geom.Vec3i, anchor geom.Vec3i) error {
	for _, o := range offsets {
		p := anchor.Add(o)
		if !g.InBounds(p) {
			return fmt.Errorf("%w: cell %v", ErrOutOfBounds, p.ToArray())
		}
		if id := g.cells[g.index(p)]; id != 0 {
			return fmt.Errorf("%w: cell %v held by piece %d", ErrOverlap, p.ToArray(), id)
		}
	}
	return nil
}

// TryCommit checks and claims anchor+offsets for id in one step. On error the
// grid is unchanged.
func (g *Grid) TryCommit(offsets []geom.Vec3i, anchor geom.Vec3i, id PieceID) error {
	if id == 0 {
		return fmt.Errorf("grid: piece id 0 is reserved")
	}
	if _, ok := g.owned[id]; ok {
		return fmt.Errorf("grid: piece %d already committed", id)
	}
	if len(offsets) == 0 {
		return fmt.Errorf("grid: empty placement")
	}
	if err := g.Check(offsets, anchor); err != nil {
		return err
	}
	if hasDuplicates(offsets) {
		return fmt.Errorf("%w: placement repeats a cell", ErrOverlap)
	}
	g.commit(offsets, anchor, id)
	return nil
}

func (g *Grid) commit(offsets []geom.Vec3i, anchor geom.Vec3i, id PieceID) {
	abs := geom.Translate(offsets, anchor)
	for _, p := range abs {
		g.cells[g.index(p)] = id
	}
	g.owned[id] = abs
}

// Release clears every cell held by id.
func (g *Grid) Release(id PieceID) error {
	abs, ok := g.owned[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	for _, p := range abs {
		g.cells[g.index(p)] = 0
	}
	delete(g.owned, id)
	return nil
}

// Relocate moves piece id to offsets placed at anchor as one transaction: the
// old cells are released, the new ones checked, and either the new cells are
// committed or the old ones restored.
func (g *Grid) Relocate(id PieceID, offsets []geom.Vec3i, anchor geom.Vec3i) error {
	old, ok := g.owned[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := g.Release(id); err != nil {
		return err
	}
	if err := g.TryCommit(offsets, anchor, id); err != nil {
		for _, p := range old {
			g.cells[g.index(p)] = id
		}
		g.owned[id] = old
		return err
	}
	return nil
}

// CellsOf returns a copy of the absolute cells held by id.
func (g *Grid) CellsOf(id PieceID) ([]geom.Vec3i, bool) {
	abs, ok := g.owned[id]
	if !ok {
		return nil, false
	}
	out := make([]geom.Vec3i, len(abs))
	copy(out, abs)
	return out, true
}

func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = 0
	}
	g.owned = map[PieceID][]geom.Vec3i{}
}

func (g *Grid) EmptyCount() int {
	n := 0
	for _, id := range g.cells {
		if id == 0 {
			n++
		}
	}
	return n
}

func (g *Grid) PieceCount() int { return len(g.owned) }

// Cells returns a copy of the lattice in x-major, then y, then z order.
func (g *Grid) Cells() []PieceID {
	out := make([]PieceID, len(g.cells))
	copy(out, g.cells)
	return out
}

func (g *Grid) Clone() *Grid {
	c := &Grid{
		size:  g.size,
		cells: g.Cells(),
		owned: make(map[PieceID][]geom.Vec3i, len(g.owned)),
	}
	for id, abs := range g.owned {
		cp := make([]geom.Vec3i, len(abs))
		copy(cp, abs)
		c.owned[id] = cp
	}
	return c
}

// Equal compares two grids cell for cell.
func (g *Grid) Equal(o *Grid) bool {
	if g.size != o.size {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

func hasDuplicates(offsets []geom.Vec3i) bool {
	seen := make(map[geom.Vec3i]struct{}, len(offsets))
	for _, o := range offsets {
		if _, ok := seen[o]; ok {
			return true
		}
		seen[o] = struct{}{}
	}
	return false
}

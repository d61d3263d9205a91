package registry

import (
	"fmt"

	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/rotation"
)

// PlacedPiece is a brick committed to the grid.
type PlacedPiece struct {
	ID          grid.PieceID
	Shape       string
	Orientation int
	Cells       []geom.Vec3i // orientation offsets
	Anchor      geom.Vec3i
}

func (p PlacedPiece) AbsoluteCells() []geom.Vec3i { return geom.Translate(p.Cells, p.Anchor) }

// Registry tracks the pieces committed to one grid. It is the only path that
// writes to the grid.
type Registry struct {
	g      *grid.Grid
	pieces map[grid.PieceID]*PlacedPiece
	order  []grid.PieceID
	nextID grid.PieceID
}

func New(g *grid.Grid) *Registry {
	return &Registry{
		g:      g,
		pieces: map[grid.PieceID]*PlacedPiece{},
		nextID: 1,
	}
}

// Grid exposes the underlying grid for read-only queries.
func (r *Registry) Grid() *grid.Grid { return r.g }

func (r *Registry) NextID() grid.PieceID { return r.nextID }

func (r *Registry) Len() int { return len(r.order) }

// Add commits orientation o of shape at anchor and returns the new piece id.
func (r *Registry) Add(shape string, o rotation.Orientation, anchor geom.Vec3i) (grid.PieceID, error) {
	id := r.nextID
	if err := r.g.TryCommit(o.Cells, anchor, id); err != nil {
		return 0, err
	}
	r.nextID++
	r.insert(&PlacedPiece{
		ID:          id,
		Shape:       shape,
		Orientation: o.Index,
		Cells:       cloneCells(o.Cells),
		Anchor:      anchor,
	})
	return id, nil
}

// Restore commits a piece under its recorded id, e.g. when loading a save.
func (r *Registry) Restore(p PlacedPiece) error {
	if p.ID == 0 {
		return fmt.Errorf("registry: piece id 0 is reserved")
	}
	if _, dup := r.pieces[p.ID]; dup {
		return fmt.Errorf("registry: duplicate piece id %d", p.ID)
	}
	if err := r.g.TryCommit(p.Cells, p.Anchor, p.ID); err != nil {
		return err
	}
	p.Cells = cloneCells(p.Cells)
	r.insert(&p)
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	return nil
}

// SetNextID raises the id counter; it never lowers it below a live id.
func (r *Registry) SetNextID(id grid.PieceID) {
	if id > r.nextID {
		r.nextID = id
	}
}

func (r *Registry) insert(p *PlacedPiece) {
	r.pieces[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *Registry) Remove(id grid.PieceID) error {
	if _, ok := r.pieces[id]; !ok {
		return fmt.Errorf("%w: %d", grid.ErrNotFound, id)
	}
	if err := r.g.Release(id); err != nil {
		return err
	}
	delete(r.pieces, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Move shifts a piece by delta keeping its orientation. On failure nothing
// changes.
func (r *Registry) Move(id grid.PieceID, delta geom.Vec3i) (PlacedPiece, error) {
	p, ok := r.pieces[id]
	if !ok {
		return PlacedPiece{}, fmt.Errorf("%w: %d", grid.ErrNotFound, id)
	}
	to := p.Anchor.Add(delta)
	if err := r.g.Relocate(id, p.Cells, to); err != nil {
		return p.clone(), err
	}
	p.Anchor = to
	return p.clone(), nil
}

// Get returns a copy of the piece; editing it does not touch the registry.
func (r *Registry) Get(id grid.PieceID) (PlacedPiece, bool) {
	p, ok := r.pieces[id]
	if !ok {
		return PlacedPiece{}, false
	}
	return p.clone(), true
}

// List returns the live pieces in insertion order.
func (r *Registry) List() []PlacedPiece {
	out := make([]PlacedPiece, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.pieces[id].clone())
	}
	return out
}

// Reset clears the grid and every piece; ids start again at 1.
func (r *Registry) Reset() {
	r.g.Reset()
	r.pieces = map[grid.PieceID]*PlacedPiece{}
	r.order = nil
	r.nextID = 1
}

func (p *PlacedPiece) clone() PlacedPiece {
	c := *p
	c.Cells = cloneCells(p.Cells)
	return c
}

func cloneCells(in []geom.Vec3i) []geom.Vec3i {
	out := make([]geom.Vec3i, len(in))
	copy(out, in)
	return out
}

package board

import (
	"fmt"

	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/registry"
	"brickcube.ai/internal/sim/rotation"
)

// Export captures the board as a save document, pieces in insertion order.
func (b *Board) Export() snapshot.Save {
	b.mu.Lock()
	defer b.mu.Unlock()

	pieces := b.reg.List()
	save := snapshot.Save{
		Version:   snapshot.Version,
		SessionID: b.cfg.SessionID,
		Size:      b.cfg.Size,
		NextID:    uint32(b.reg.NextID()),
		Placed:    make([]snapshot.PieceV1, 0, len(pieces)),
	}
	for _, p := range pieces {
		save.Placed = append(save.Placed, snapshot.PieceV1{
			PID:   uint32(p.ID),
			Name:  p.Shape,
			Cubes: toArrays(p.Cells),
			Pos:   p.Anchor.ToArray(),
			Cells: toArrays(p.AbsoluteCells()),
		})
	}
	return save
}

// Import replaces the board with the pieces in save. Every entry is checked
// against a scratch grid first; on any error the board is untouched.
func (b *Board) Import(save snapshot.Save) error {
	if save.Size != b.cfg.Size {
		return fmt.Errorf("%w: save size %d, board size %d", ErrInconsistentLoad, save.Size, b.cfg.Size)
	}
	reg := registry.New(grid.New(b.cfg.Size))
	for i, e := range save.Placed {
		p, err := b.pieceFromSave(e)
		if err != nil {
			return fmt.Errorf("%w: entry %d (pid %d): %v", ErrInconsistentLoad, i, e.PID, err)
		}
		if err := reg.Restore(p); err != nil {
			return fmt.Errorf("%w: entry %d (pid %d): %w", ErrInconsistentLoad, i, e.PID, err)
		}
	}
	reg.SetNextID(grid.PieceID(save.NextID))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.reg = reg
	b.emitLocked(Event{Kind: EventLoad})
	b.log.Printf("loaded %d pieces (next id %d)", reg.Len(), reg.NextID())
	return nil
}

func (b *Board) pieceFromSave(e snapshot.PieceV1) (registry.PlacedPiece, error) {
	os, ok := b.set.ForShape(e.Name)
	if !ok {
		return registry.PlacedPiece{}, fmt.Errorf("%w: %q", ErrUnknownShape, e.Name)
	}
	abs := geom.Translate(fromArrays(e.Cubes), geom.Vec3iFromArray(e.Pos))
	o, ok := rotation.Match(os, abs)
	if !ok {
		return registry.PlacedPiece{}, fmt.Errorf("cubes are not an orientation of %s", e.Name)
	}
	if len(e.Cells) > 0 && rotation.CanonicalKey(fromArrays(e.Cells)) != rotation.CanonicalKey(abs) {
		return registry.PlacedPiece{}, fmt.Errorf("cells disagree with cubes+pos")
	}
	return registry.PlacedPiece{
		ID:          grid.PieceID(e.PID),
		Shape:       e.Name,
		Orientation: o.Index,
		Cells:       o.Cells,
		Anchor:      minCorner(abs),
	}, nil
}

func minCorner(cells []geom.Vec3i) geom.Vec3i {
	lo := cells[0]
	for _, c := range cells[1:] {
		lo.X, lo.Y, lo.Z = min(lo.X, c.X), min(lo.Y, c.Y), min(lo.Z, c.Z)
	}
	return lo
}

func toArrays(cells []geom.Vec3i) [][3]int {
	out := make([][3]int, len(cells))
	for i, c := range cells {
		out[i] = c.ToArray()
	}
	return out
}

func fromArrays(a [][3]int) []geom.Vec3i {
	out := make([]geom.Vec3i, len(a))
	for i, v := range a {
		out[i] = geom.Vec3iFromArray(v)
	}
	return out
}

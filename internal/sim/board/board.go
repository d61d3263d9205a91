package board

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/placement"
	"brickcube.ai/internal/sim/registry"
	"brickcube.ai/internal/sim/rotation"
)

var (
	ErrUnknownShape     = errors.New("unknown shape")
	ErrBadOrientation   = errors.New("bad orientation")
	ErrNoPlacement      = errors.New("no placement available")
	ErrInconsistentLoad = errors.New("inconsistent load")
)

type Config struct {
	Size      int
	SessionID string

	// LogDeadAnchors sends blocked-anchor diagnostics to the board logger.
	LogDeadAnchors bool
}

type Option func(*Board)

func WithLogger(l *log.Logger) Option { return func(b *Board) { b.log = l } }

func WithSink(s Sink) Option { return func(b *Board) { b.sink = s } }

// Board is one editing session: a catalog, a grid and the pieces on it. All
// methods are safe for concurrent use; each runs to completion before the next.
type Board struct {
	cfg Config
	cat *catalogs.Catalog
	set *rotation.Set
	val *placement.Validator
	log *log.Logger

	mu   sync.Mutex
	reg  *registry.Registry
	sink Sink
	seq  uint64
}

func New(cfg Config, cat *catalogs.Catalog, opts ...Option) (*Board, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, fmt.Errorf("board: empty catalog")
	}
	if cfg.Size <= 0 {
		cfg.Size = grid.DefaultSize
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	b := &Board{
		cfg: cfg,
		cat: cat,
		set: rotation.NewSet(cat),
		reg: registry.New(grid.New(cfg.Size)),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = log.New(io.Discard, "", 0)
	}
	if cfg.LogDeadAnchors {
		b.val = placement.NewValidator(b.log)
	} else {
		b.val = placement.NewValidator(nil)
	}
	return b, nil
}

func (b *Board) SessionID() string { return b.cfg.SessionID }

func (b *Board) Size() int { return b.cfg.Size }

func (b *Board) Catalog() *catalogs.Catalog { return b.cat }

func (b *Board) Shapes() []catalogs.Shape {
	names := b.cat.Names()
	out := make([]catalogs.Shape, 0, len(names))
	for _, n := range names {
		s, _ := b.cat.Get(n)
		out = append(out, s)
	}
	return out
}

// Orientations returns a copy of the shape's orientation list.
func (b *Board) Orientations(name string) ([]rotation.Orientation, error) {
	os, err := b.orients(name)
	if err != nil {
		return nil, err
	}
	out := make([]rotation.Orientation, len(os))
	for i, o := range os {
		out[i] = cloneOrientation(o)
	}
	return out, nil
}

// orients returns the shared cached list. Callers must not modify it or hand
// it out.
func (b *Board) orients(name string) ([]rotation.Orientation, error) {
	o, ok := b.set.ForShape(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}
	return o, nil
}

func cloneOrientation(o rotation.Orientation) rotation.Orientation {
	o.Cells = append([]geom.Vec3i(nil), o.Cells...)
	return o
}

func clonePlacements(ps []placement.Placement) []placement.Placement {
	for i := range ps {
		ps[i].Orientation = cloneOrientation(ps[i].Orientation)
	}
	return ps
}

func (b *Board) orientation(name string, idx int) (rotation.Orientation, error) {
	os, err := b.orients(name)
	if err != nil {
		return rotation.Orientation{}, err
	}
	if idx < 0 || idx >= len(os) {
		return rotation.Orientation{}, fmt.Errorf("%w: %s has %d orientations, got %d", ErrBadOrientation, name, len(os), idx)
	}
	return os[idx], nil
}

// ValidatePlacements lists every legal placement of the shape. With
// onlyAdjacent set, only placements touching an existing piece are returned.
func (b *Board) ValidatePlacements(name string, onlyAdjacent bool) ([]placement.Placement, error) {
	os, err := b.orients(name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if onlyAdjacent {
		return clonePlacements(b.val.AdjacentPlacements(os, b.reg.Grid())), nil
	}
	return clonePlacements(b.val.ValidatePlacements(os, b.reg.Grid())), nil
}

func (b *Board) HasBlockedAnchor(name string) (bool, error) {
	os, err := b.orients(name)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.val.HasBlockedAnchor(os, b.reg.Grid()), nil
}

func (b *Board) BlockedAnchors(name string) ([]geom.Vec3i, error) {
	os, err := b.orients(name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.val.BlockedAnchors(os, b.reg.Grid()), nil
}

// Touching returns the ids of the pieces face-adjacent to the candidate placement.
func (b *Board) Touching(name string, orientation int, anchor geom.Vec3i) ([]grid.PieceID, error) {
	o, err := b.orientation(name, orientation)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return placement.TouchingPieces(o.Cells, anchor, b.reg.Grid()), nil
}

func (b *Board) TouchesExisting(name string, orientation int, anchor geom.Vec3i) (bool, error) {
	o, err := b.orientation(name, orientation)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return placement.TouchesExisting(o.Cells, anchor, b.reg.Grid()), nil
}

func (b *Board) TouchesAtLeastTwoPieces(name string, orientation int, anchor geom.Vec3i) (bool, error) {
	o, err := b.orientation(name, orientation)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return placement.TouchesAtLeastTwoPieces(o.Cells, anchor, b.reg.Grid()), nil
}

// CanBridge finds a placement of the shape touching two or more pieces.
func (b *Board) CanBridge(name string) (placement.Placement, bool, error) {
	os, err := b.orients(name)
	if err != nil {
		return placement.Placement{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.val.CanBridge(os, b.reg.Grid())
	p.Orientation = cloneOrientation(p.Orientation)
	return p, ok, nil
}

// State is a consistent view of the board taken under one lock.
type State struct {
	Pieces     []registry.PlacedPiece
	Occupancy  []grid.PieceID
	EmptyCount int
}

func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Pieces:     b.reg.List(),
		Occupancy:  b.reg.Grid().Cells(),
		EmptyCount: b.reg.Grid().EmptyCount(),
	}
}

func (b *Board) EmptyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg.Grid().EmptyCount()
}

func (b *Board) Pieces() []registry.PlacedPiece {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg.List()
}

func (b *Board) Piece(id grid.PieceID) (registry.PlacedPiece, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg.Get(id)
}

// Occupancy returns the owner of every cell in x, y, z order.
func (b *Board) Occupancy() []grid.PieceID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg.Grid().Cells()
}

func (b *Board) Place(name string, orientation int, anchor geom.Vec3i) (grid.PieceID, error) {
	o, err := b.orientation(name, orientation)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.placeLocked(name, o, anchor)
}

// PlaceTurns rotates the shape by rx, ry, rz quarter turns (X, then Y, then Z)
// before placing it at anchor.
func (b *Board) PlaceTurns(name string, rx, ry, rz int, anchor geom.Vec3i) (grid.PieceID, error) {
	shape, ok := b.cat.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}
	os, err := b.orients(name)
	if err != nil {
		return 0, err
	}
	o, ok := rotation.Match(os, rotation.Rotate(shape, rx, ry, rz))
	if !ok {
		return 0, fmt.Errorf("%w: turns (%d,%d,%d)", ErrBadOrientation, rx, ry, rz)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.placeLocked(name, o, anchor)
}

// PlaceRandomAdjacent places the shape at a random legal spot touching an
// existing piece.
func (b *Board) PlaceRandomAdjacent(name string, rng *rand.Rand) (registry.PlacedPiece, error) {
	os, err := b.orients(name)
	if err != nil {
		return registry.PlacedPiece{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := placement.PickRandom(b.val.AdjacentPlacements(os, b.reg.Grid()), rng)
	if !ok {
		return registry.PlacedPiece{}, fmt.Errorf("%w: %s next to existing pieces", ErrNoPlacement, name)
	}
	id, err := b.placeLocked(name, p.Orientation, p.Anchor)
	if err != nil {
		return registry.PlacedPiece{}, err
	}
	placed, _ := b.reg.Get(id)
	return placed, nil
}

func (b *Board) placeLocked(name string, o rotation.Orientation, anchor geom.Vec3i) (grid.PieceID, error) {
	id, err := b.reg.Add(name, o, anchor)
	if err != nil {
		return 0, err
	}
	b.emitLocked(Event{Kind: EventPlace, PieceID: uint32(id), Shape: name, Orientation: o.Index, Anchor: anchor.ToArray()})
	return id, nil
}

func (b *Board) Remove(id grid.PieceID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", grid.ErrNotFound, id)
	}
	if err := b.reg.Remove(id); err != nil {
		return err
	}
	b.emitLocked(Event{Kind: EventRemove, PieceID: uint32(id), Shape: p.Shape, Orientation: p.Orientation, Anchor: p.Anchor.ToArray()})
	return nil
}

// Move shifts a piece by delta. When the target is out of bounds or occupied
// the board is left exactly as it was.
func (b *Board) Move(id grid.PieceID, delta geom.Vec3i) (registry.PlacedPiece, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.reg.Move(id, delta)
	if err != nil {
		return p, err
	}
	d := delta.ToArray()
	b.emitLocked(Event{Kind: EventMove, PieceID: uint32(id), Shape: p.Shape, Orientation: p.Orientation, Anchor: p.Anchor.ToArray(), Delta: &d})
	return p, nil
}

func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reg.Reset()
	b.emitLocked(Event{Kind: EventReset})
}

type demoStep struct {
	shape  string
	orient rotation.Orientation
	at     geom.Vec3i
}

// Demo resets the board and lays out three sample bricks as one operation. If
// the layout does not fit the catalog the board is left untouched.
func (b *Board) Demo() error {
	layout := []struct {
		shape      string
		rx, ry, rz int
		at         geom.Vec3i
	}{
		{"O", 0, 0, 0, geom.Vec3i{}},
		{"I", 0, 0, 1, geom.Vec3i{Y: 2}},
		{"L", 0, 1, 0, geom.Vec3i{X: 3}},
	}
	var steps []demoStep
	for _, l := range layout {
		shape, ok := b.cat.Get(l.shape)
		if !ok {
			continue
		}
		os, err := b.orients(l.shape)
		if err != nil {
			return err
		}
		o, ok := rotation.Match(os, rotation.Rotate(shape, l.rx, l.ry, l.rz))
		if !ok {
			return fmt.Errorf("demo %s: %w: turns (%d,%d,%d)", l.shape, ErrBadOrientation, l.rx, l.ry, l.rz)
		}
		steps = append(steps, demoStep{shape: l.shape, orient: o, at: l.at})
	}

	// Dry run on an empty scratch grid so a failure never leaves a half-built demo.
	scratch := registry.New(grid.New(b.cfg.Size))
	for _, st := range steps {
		if _, err := scratch.Add(st.shape, st.orient, st.at); err != nil {
			return fmt.Errorf("demo %s: %w", st.shape, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.reg.Reset()
	b.emitLocked(Event{Kind: EventReset})
	for _, st := range steps {
		if _, err := b.placeLocked(st.shape, st.orient, st.at); err != nil {
			return fmt.Errorf("demo %s: %w", st.shape, err)
		}
	}
	return nil
}

func (b *Board) emitLocked(e Event) {
	if b.sink == nil {
		return
	}
	b.seq++
	e.SessionID = b.cfg.SessionID
	e.Seq = b.seq
	e.Pieces = b.reg.Len()
	e.At = time.Now().UTC()
	b.sink.RecordEvent(e)
}

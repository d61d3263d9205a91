package registry

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/rotation"
)

func orientation(t *testing.T, name string, idx int) rotation.Orientation {
	t.Helper()
	s, ok := catalogs.Defaults().Get(name)
	if !ok {
		t.Fatalf("missing shape %s", name)
	}
	return rotation.Orientations(s)[idx]
}

func TestAdd_AssignsMonotonicIDs(t *testing.T) {
	r := New(grid.New(6))
	o := orientation(t, "O", 0)

	a, err := r.Add("O", o, geom.Vec3i{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := r.Add("O", o, geom.Vec3i{Z: 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a != 1 || b != 2 {
		t.Fatalf("ids: got %d,%d want 1,2", a, b)
	}
	if err := r.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	c, err := r.Add("O", o, geom.Vec3i{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c != 3 {
		t.Fatalf("ids must not be reused: got %d", c)
	}
	var got []grid.PieceID
	for _, p := range r.List() {
		got = append(got, p.ID)
	}
	if diff := cmp.Diff([]grid.PieceID{2, 3}, got); diff != "" {
		t.Fatalf("insertion order (-want +got):\n%s", diff)
	}
}

func TestAdd_RejectsOverlapWithoutConsumingID(t *testing.T) {
	r := New(grid.New(6))
	o := orientation(t, "I", 0)
	if _, err := r.Add("I", o, geom.Vec3i{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add("I", o, geom.Vec3i{}); !errors.Is(err, grid.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if _, err := r.Add("I", o, geom.Vec3i{X: 5}); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if r.NextID() != 2 || r.Len() != 1 {
		t.Fatalf("rejected adds changed state: next=%d len=%d", r.NextID(), r.Len())
	}
}

func TestRemove_UnknownID(t *testing.T) {
	r := New(grid.New(6))
	if err := r.Remove(5); !errors.Is(err, grid.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMove_OutOfBoundsLeavesGridIdentical(t *testing.T) {
	g := grid.New(6)
	r := New(g)
	o := orientation(t, "T", 0)
	id, err := r.Add("T", o, geom.Vec3i{X: 1, Y: 1, Z: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add("O", orientation(t, "O", 0), geom.Vec3i{Z: 4}); err != nil {
		t.Fatal(err)
	}
	before := g.Clone()
	pieces := r.List()

	if _, err := r.Move(id, geom.Vec3i{X: 4}); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if !g.Equal(before) {
		t.Fatalf("grid changed after failed move")
	}
	if diff := cmp.Diff(pieces, r.List()); diff != "" {
		t.Fatalf("registry changed after failed move (-want +got):\n%s", diff)
	}
}

func TestMove_Success(t *testing.T) {
	g := grid.New(6)
	r := New(g)
	o := orientation(t, "I", 0)
	id, err := r.Add("I", o, geom.Vec3i{})
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.Move(id, geom.Vec3i{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if p.Anchor != (geom.Vec3i{X: 1, Y: 2}) {
		t.Fatalf("anchor: %+v", p.Anchor)
	}
	if g.PieceAt(geom.Vec3i{}) != 0 || g.PieceAt(geom.Vec3i{X: 4, Y: 2}) != id {
		t.Fatalf("grid not updated")
	}
	if _, err := r.Move(99, geom.Vec3i{}); !errors.Is(err, grid.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRestoreAndReset(t *testing.T) {
	g := grid.New(6)
	r := New(g)
	o := orientation(t, "L", 5)
	if err := r.Restore(PlacedPiece{ID: 7, Shape: "L", Orientation: o.Index, Cells: o.Cells, Anchor: geom.Vec3i{}}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if r.NextID() != 8 {
		t.Fatalf("next id: got %d want 8", r.NextID())
	}
	if err := r.Restore(PlacedPiece{ID: 7, Shape: "L", Cells: o.Cells, Anchor: geom.Vec3i{X: 3}}); err == nil {
		t.Fatalf("duplicate id accepted")
	}
	got, ok := r.Get(7)
	if !ok || len(got.AbsoluteCells()) != 4 {
		t.Fatalf("Get: ok=%v %+v", ok, got)
	}

	r.Reset()
	if r.Len() != 0 || r.NextID() != 1 || g.PieceCount() != 0 || g.EmptyCount() != 216 {
		t.Fatalf("reset incomplete: len=%d next=%d", r.Len(), r.NextID())
	}
}

func TestReturnedPiecesAreCopies(t *testing.T) {
	r := New(grid.New(6))
	id, err := r.Add("I", orientation(t, "I", 0), geom.Vec3i{})
	if err != nil {
		t.Fatal(err)
	}
	want := []geom.Vec3i{{X: 0}, {X: 1}, {X: 2}, {X: 3}}

	got, _ := r.Get(id)
	got.Cells[3] = geom.Vec3i{X: 9}
	moved, err := r.Move(id, geom.Vec3i{Y: 1})
	if err != nil {
		t.Fatalf("Move after editing a Get copy: %v", err)
	}
	moved.Cells[0] = geom.Vec3i{Z: 5}
	r.List()[0].Cells[1] = geom.Vec3i{Z: 4}

	again, _ := r.Get(id)
	if diff := cmp.Diff(want, again.Cells); diff != "" {
		t.Fatalf("stored cells changed (-want +got):\n%s", diff)
	}
	if again.Anchor != (geom.Vec3i{Y: 1}) {
		t.Fatalf("anchor: %v", again.Anchor)
	}
}

// Package placement answers read-only questions about where a brick can go.
// Every check reduces to Occupancy.Fits; nothing here mutates the grid.
package placement

import (
	"io"
	"log"
	"math/rand"
	"sort"

	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/rotation"
)

// Occupancy is the read side of a grid.
type Occupancy interface {
	Size() int
	InBounds(p geom.Vec3i) bool
	IsEmpty(p geom.Vec3i) bool
	PieceAt(p geom.Vec3i) grid.PieceID
	Fits(offsets []geom.Vec3i, anchor geom.Vec3i) bool
}

type Placement struct {
	Orientation rotation.Orientation
	Anchor      geom.Vec3i
}

func (p Placement) AbsoluteCells() []geom.Vec3i {
	return geom.Translate(p.Orientation.Cells, p.Anchor)
}

type Validator struct {
	log *log.Logger
}

func NewValidator(logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Validator{log: logger}
}

// forEachAnchor visits every coordinate in x, then y, then z order.
func forEachAnchor(size int, fn func(geom.Vec3i)) {
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				fn(geom.Vec3i{X: x, Y: y, Z: z})
			}
		}
	}
}

// ValidatePlacements lists every (orientation, anchor) pair that fits,
// orientation-major and then in anchor scan order.
func (v *Validator) ValidatePlacements(orients []rotation.Orientation, occ Occupancy) []Placement {
	var out []Placement
	for _, o := range orients {
		forEachAnchor(occ.Size(), func(a geom.Vec3i) {
			if occ.Fits(o.Cells, a) {
				out = append(out, Placement{Orientation: o, Anchor: a})
			}
		})
	}
	return out
}

// AnchorViable reports whether any orientation fits at anchor on an empty grid
// of the given size, i.e. whether the anchor is reachable at all.
func AnchorViable(orients []rotation.Orientation, size int, anchor geom.Vec3i) bool {
	return fitsAny(orients, grid.New(size), anchor)
}

// candidateAnchors returns the empty cells that are viable anchors for orients.
func candidateAnchors(orients []rotation.Orientation, occ Occupancy) []geom.Vec3i {
	empty := grid.New(occ.Size())
	var out []geom.Vec3i
	forEachAnchor(occ.Size(), func(a geom.Vec3i) {
		if occ.IsEmpty(a) && fitsAny(orients, empty, a) {
			out = append(out, a)
		}
	})
	return out
}

func fitsAny(orients []rotation.Orientation, occ Occupancy, a geom.Vec3i) bool {
	for _, o := range orients {
		if occ.Fits(o.Cells, a) {
			return true
		}
	}
	return false
}

// HasBlockedAnchor reports whether some empty, viable anchor admits no
// orientation. Anchors that no orientation could use even on an empty grid
// are not candidates, so an empty grid never has a blocked anchor.
func (v *Validator) HasBlockedAnchor(orients []rotation.Orientation, occ Occupancy) bool {
	for _, a := range candidateAnchors(orients, occ) {
		if !fitsAny(orients, occ, a) {
			v.logDead(orients, a)
			return true
		}
	}
	return false
}

// BlockedAnchors lists every dead anchor in scan order.
func (v *Validator) BlockedAnchors(orients []rotation.Orientation, occ Occupancy) []geom.Vec3i {
	var out []geom.Vec3i
	for _, a := range candidateAnchors(orients, occ) {
		if !fitsAny(orients, occ, a) {
			v.logDead(orients, a)
			out = append(out, a)
		}
	}
	return out
}

func (v *Validator) logDead(orients []rotation.Orientation, a geom.Vec3i) {
	name := ""
	if len(orients) > 0 {
		name = orients[0].Shape
	}
	v.log.Printf("dead anchor shape=%s at=%v", name, a.ToArray())
}

// TouchingPieces returns the distinct piece ids face-adjacent to the placement,
// ignoring the placement's own cells, in ascending order.
func TouchingPieces(offsets []geom.Vec3i, anchor geom.Vec3i, occ Occupancy) []grid.PieceID {
	abs := geom.Translate(offsets, anchor)
	self := make(map[geom.Vec3i]struct{}, len(abs))
	for _, p := range abs {
		self[p] = struct{}{}
	}
	seen := map[grid.PieceID]struct{}{}
	var out []grid.PieceID
	for _, p := range abs {
		for _, d := range geom.Neighbors6 {
			n := p.Add(d)
			if _, own := self[n]; own {
				continue
			}
			id := occ.PieceAt(n)
			if id == 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TouchesExisting(offsets []geom.Vec3i, anchor geom.Vec3i, occ Occupancy) bool {
	return len(TouchingPieces(offsets, anchor, occ)) > 0
}

func TouchesAtLeastTwoPieces(offsets []geom.Vec3i, anchor geom.Vec3i, occ Occupancy) bool {
	return len(TouchingPieces(offsets, anchor, occ)) >= 2
}

// AdjacentPlacements lists the valid placements touching at least one existing
// piece. Placements covering the same absolute cells are reported once.
func (v *Validator) AdjacentPlacements(orients []rotation.Orientation, occ Occupancy) []Placement {
	seen := map[rotation.Key]struct{}{}
	var out []Placement
	for _, p := range v.ValidatePlacements(orients, occ) {
		key := rotation.CanonicalKey(p.AbsoluteCells())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if TouchesExisting(p.Orientation.Cells, p.Anchor, occ) {
			out = append(out, p)
		}
	}
	return out
}

// CanBridge reports whether some valid placement touches two or more pieces.
func (v *Validator) CanBridge(orients []rotation.Orientation, occ Occupancy) (Placement, bool) {
	for _, p := range v.ValidatePlacements(orients, occ) {
		if TouchesAtLeastTwoPieces(p.Orientation.Cells, p.Anchor, occ) {
			return p, true
		}
	}
	return Placement{}, false
}

// PickRandom chooses one placement; ok is false for an empty list.
func PickRandom(ps []Placement, rng *rand.Rand) (Placement, bool) {
	if len(ps) == 0 || rng == nil {
		return Placement{}, false
	}
	return ps[rng.Intn(len(ps))], true
}

// Package rotation enumerates the distinct orientations of a brick under the
// 24 proper rotations of the cube.
package rotation

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
)

// Key identifies a normalized cell set independent of cell order.
type Key string

// Orientation is a rotated and normalized copy of a shape. Index is its
// position in the shape's orientation list; Turns is the first (rx, ry, rz)
// quarter-turn triple that produces it.
type Orientation struct {
	Index int
	Shape string
	Cells []geom.Vec3i
	Turns [3]int
	Key   Key
}

// Normalize translates cells so the minimum x, y and z are each 0.
func Normalize(cells []geom.Vec3i) []geom.Vec3i {
	if len(cells) == 0 {
		return nil
	}
	lo := cells[0]
	for _, c := range cells[1:] {
		if c.X < lo.X {
			lo.X = c.X
		}
		if c.Y < lo.Y {
			lo.Y = c.Y
		}
		if c.Z < lo.Z {
			lo.Z = c.Z
		}
	}
	out := make([]geom.Vec3i, len(cells))
	for i, c := range cells {
		out[i] = c.Sub(lo)
	}
	return out
}

// CanonicalKey renders the cells sorted lexicographically as "x,y,z;x,y,z;...".
func CanonicalKey(cells []geom.Vec3i) Key {
	sorted := make([]geom.Vec3i, len(cells))
	copy(sorted, cells)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var b strings.Builder
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(c.X))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(c.Y))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(c.Z))
	}
	return Key(b.String())
}

// Orientations applies every cube rotation to shape, normalizes the result and
// keeps the first occurrence of each distinct cell set. The result is
// deterministic and its length divides 24.
func Orientations(shape catalogs.Shape) []Orientation {
	// Sorting first makes the output independent of the input cell order.
	base := make([]geom.Vec3i, len(shape.Cells))
	copy(base, shape.Cells)
	sort.Slice(base, func(i, j int) bool { return base[i].Less(base[j]) })

	seen := make(map[Key]struct{}, 24)
	var out []Orientation
	for _, r := range geom.CubeRotations() {
		rotated := make([]geom.Vec3i, len(base))
		for i, c := range base {
			rotated[i] = r.Matrix.Apply(c)
		}
		cells := Normalize(rotated)
		sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
		key := CanonicalKey(cells)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Orientation{
			Index: len(out),
			Shape: shape.Name,
			Cells: cells,
			Turns: r.Turns,
			Key:   key,
		})
	}
	return out
}

// Rotate applies rx, ry, rz quarter turns to shape and normalizes the result.
func Rotate(shape catalogs.Shape, rx, ry, rz int) []geom.Vec3i {
	m := geom.Turns(rx, ry, rz)
	out := make([]geom.Vec3i, len(shape.Cells))
	for i, c := range shape.Cells {
		out[i] = m.Apply(c)
	}
	return Normalize(out)
}

// Match returns the orientation whose cell set equals the normalized offsets.
func Match(orients []Orientation, offsets []geom.Vec3i) (Orientation, bool) {
	key := CanonicalKey(Normalize(offsets))
	for _, o := range orients {
		if o.Key == key {
			return o, true
		}
	}
	return Orientation{}, false
}

// Set caches orientation lists per shape name for one catalog.
type Set struct {
	cat *catalogs.Catalog

	mu    sync.Mutex
	cache map[string][]Orientation
}

func NewSet(cat *catalogs.Catalog) *Set {
	return &Set{cat: cat, cache: map[string][]Orientation{}}
}

// ForShape returns the orientations of the named shape, computing them on first
// use. The returned slice is shared and must not be modified.
func (s *Set) ForShape(name string) ([]Orientation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.cache[name]; ok {
		return o, true
	}
	shape, ok := s.cat.Get(name)
	if !ok {
		return nil, false
	}
	o := Orientations(shape)
	s.cache[name] = o
	return o, true
}

func (s *Set) Catalog() *catalogs.Catalog { return s.cat }

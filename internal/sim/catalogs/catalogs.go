package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"brickcube.ai/internal/sim/geom"
)

// CellsPerShape is the number of unit cubes in every brick.
const CellsPerShape = 4

var ErrInvalidShape = errors.New("invalid shape")

// Shape is a named set of exactly four distinct cube offsets. Callers must treat
// Cells as read-only.
type Shape struct {
	Name  string
	Cells []geom.Vec3i
}

func NewShape(name string, cells []geom.Vec3i) (Shape, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Shape{}, fmt.Errorf("%w: empty name", ErrInvalidShape)
	}
	seen := make(map[geom.Vec3i]struct{}, len(cells))
	out := make([]geom.Vec3i, 0, len(cells))
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) != CellsPerShape {
		return Shape{}, fmt.Errorf("%w: %s has %d distinct cells, want %d", ErrInvalidShape, name, len(out), CellsPerShape)
	}
	return Shape{Name: name, Cells: out}, nil
}

type ShapeDef struct {
	ID    string   `json:"id"`
	Cells [][3]int `json:"cells"`
}

// Catalog is the read-only brick table, built once at startup.
type Catalog struct {
	byName map[string]Shape
	names  []string
	Digest string
}

func New(shapes ...Shape) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Shape, len(shapes))}
	for _, s := range shapes {
		ns, err := NewShape(s.Name, s.Cells)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[ns.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate shape %q", ns.Name)
		}
		c.byName[ns.Name] = ns
		c.names = append(c.names, ns.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

func (c *Catalog) Get(name string) (Shape, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Names returns the shape names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Len() int { return len(c.names) }

func defaultDefs() []ShapeDef {
	return []ShapeDef{
		{ID: "T", Cells: [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {1, 1, 0}}},
		{ID: "I", Cells: [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}},
		{ID: "L", Cells: [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {2, 1, 0}}},
		{ID: "O", Cells: [][3]int{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
		{ID: "S3D", Cells: [][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	}
}

// Defaults returns the built-in bricks.
func Defaults() *Catalog {
	defs := defaultDefs()
	c, err := fromDefs(defs)
	if err != nil {
		panic(err)
	}
	raw, _ := json.Marshal(defs)
	c.Digest = sha256Hex(raw)
	return c
}

// Load reads <configDir>/bricks.json. A missing file yields Defaults; any
// malformed entry fails the whole load.
func Load(configDir string) (*Catalog, error) {
	path := filepath.Join(configDir, "bricks.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, err
	}
	var defs []ShapeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("bricks.json: %w", err)
	}
	c, err := fromDefs(defs)
	if err != nil {
		return nil, fmt.Errorf("bricks.json: %w", err)
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func fromDefs(defs []ShapeDef) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no bricks defined")
	}
	shapes := make([]Shape, 0, len(defs))
	for _, d := range defs {
		cells := make([]geom.Vec3i, 0, len(d.Cells))
		for _, a := range d.Cells {
			cells = append(cells, geom.Vec3iFromArray(a))
		}
		s, err := NewShape(d.ID, cells)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return New(shapes...)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

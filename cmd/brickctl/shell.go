package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	persistlog "brickcube.ai/internal/persistence/log"
	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
)

const helpText = `Commands:
  list                          show brick ids and their cubes
  add <brick> x y z rx ry rz    rotate by quarter turns, then place at x y z
  place <brick> <orient> x y z  place orientation index <orient> at x y z
  remove <pid>                  remove a placed brick
  move <pid> dx dy dz           shift a placed brick
  find <brick> [adjacent]       list legal placements
  blocked <brick>               report empty cells no orientation can cover
  bridge <brick>                find a placement touching two bricks
  random <brick>                place at a random spot next to existing bricks
  show                          print the grid layer by layer
  left                          count empty cells
  demo                          reset and place the demo bricks
  save <path>                   write the board (.zst compresses)
  load <path>                   replace the board from a save file
  journal <dir> [prefix]        print journaled events
  reset                         clear the grid
  exit`

type shell struct {
	b   *board.Board
	out io.Writer
	rng *rand.Rand
}

func newShell(b *board.Board, out io.Writer, rng *rand.Rand) *shell {
	return &shell{b: b, out: out, rng: rng}
}

var errUsage = errors.New("usage")

// exec runs one command line and reports whether the session should end.
func (s *shell) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help":
		s.println(helpText)
	case "list":
		for _, sh := range s.b.Shapes() {
			os, _ := s.b.Orientations(sh.Name)
			s.printf("  %s: %v (%d orientations)\n", sh.Name, toArrays(sh.Cells), len(os))
		}
	case "reset":
		s.b.Reset()
		s.println("grid cleared")
	case "show":
		s.show()
	case "left":
		s.printf("%d empty cells\n", s.b.EmptyCount())
	case "demo":
		if err = s.b.Demo(); err == nil {
			s.printf("demo placed %d bricks\n", len(s.b.Pieces()))
		}
	case "add":
		err = s.add(args)
	case "place":
		err = s.place(args)
	case "remove":
		err = s.remove(args)
	case "move":
		err = s.move(args)
	case "find":
		err = s.find(args)
	case "blocked":
		err = s.blocked(args)
	case "bridge":
		err = s.bridge(args)
	case "random":
		err = s.random(args)
	case "save":
		err = s.save(args)
	case "load":
		err = s.load(args)
	case "journal":
		err = s.journal(args)
	case "exit", "quit":
		s.println("bye")
		return true
	default:
		s.println("unknown command; type help")
	}

	if errors.Is(err, errUsage) {
		s.println(err.Error())
	} else if err != nil {
		s.println("error: " + err.Error())
	}
	return false
}

func usage(format string) error { return fmt.Errorf("%w: %s", errUsage, format) }

func (s *shell) add(args []string) error {
	if len(args) != 7 {
		return usage("add <brick> x y z rx ry rz")
	}
	n, err := parseInts(args[1:])
	if err != nil {
		return err
	}
	id, err := s.b.PlaceTurns(args[0], n[3], n[4], n[5], geom.Vec3i{X: n[0], Y: n[1], Z: n[2]})
	if err != nil {
		return err
	}
	s.printf("placed %s as id %d\n", args[0], id)
	return nil
}

func (s *shell) place(args []string) error {
	if len(args) != 5 {
		return usage("place <brick> <orient> x y z")
	}
	n, err := parseInts(args[1:])
	if err != nil {
		return err
	}
	id, err := s.b.Place(args[0], n[0], geom.Vec3i{X: n[1], Y: n[2], Z: n[3]})
	if err != nil {
		return err
	}
	s.printf("placed %s as id %d\n", args[0], id)
	return nil
}

func (s *shell) remove(args []string) error {
	if len(args) != 1 {
		return usage("remove <pid>")
	}
	n, err := parseInts(args)
	if err != nil {
		return err
	}
	if err := s.b.Remove(grid.PieceID(n[0])); err != nil {
		return err
	}
	s.printf("removed %d\n", n[0])
	return nil
}

func (s *shell) move(args []string) error {
	if len(args) != 4 {
		return usage("move <pid> dx dy dz")
	}
	n, err := parseInts(args)
	if err != nil {
		return err
	}
	p, err := s.b.Move(grid.PieceID(n[0]), geom.Vec3i{X: n[1], Y: n[2], Z: n[3]})
	if err != nil {
		return err
	}
	s.printf("moved %d to %v\n", p.ID, p.Anchor.ToArray())
	return nil
}

func (s *shell) find(args []string) error {
	if len(args) < 1 || len(args) > 2 || (len(args) == 2 && args[1] != "adjacent") {
		return usage("find <brick> [adjacent]")
	}
	ps, err := s.b.ValidatePlacements(args[0], len(args) == 2)
	if err != nil {
		return err
	}
	for _, p := range ps {
		s.printf("  orient=%d at=%v cells=%v\n", p.Orientation.Index, p.Anchor.ToArray(), toArrays(p.AbsoluteCells()))
	}
	s.printf("%d placements\n", len(ps))
	return nil
}

func (s *shell) blocked(args []string) error {
	if len(args) != 1 {
		return usage("blocked <brick>")
	}
	anchors, err := s.b.BlockedAnchors(args[0])
	if err != nil {
		return err
	}
	if len(anchors) == 0 {
		s.printf("no blocked cells for %s\n", args[0])
		return nil
	}
	s.printf("%s cannot cover %d cells: %v\n", args[0], len(anchors), toArrays(anchors))
	return nil
}

func (s *shell) bridge(args []string) error {
	if len(args) != 1 {
		return usage("bridge <brick>")
	}
	p, ok, err := s.b.CanBridge(args[0])
	if err != nil {
		return err
	}
	if !ok {
		s.printf("%s cannot bridge two bricks\n", args[0])
		return nil
	}
	s.printf("%s bridges at orient=%d at=%v\n", args[0], p.Orientation.Index, p.Anchor.ToArray())
	return nil
}

func (s *shell) random(args []string) error {
	if len(args) != 1 {
		return usage("random <brick>")
	}
	p, err := s.b.PlaceRandomAdjacent(args[0], s.rng)
	if err != nil {
		return err
	}
	s.printf("placed %s as id %d at %v\n", p.Shape, p.ID, p.Anchor.ToArray())
	return nil
}

func (s *shell) save(args []string) error {
	if len(args) != 1 {
		return usage("save <path>")
	}
	if err := snapshot.Write(args[0], s.b.Export()); err != nil {
		return err
	}
	s.printf("saved %d bricks to %s\n", len(s.b.Pieces()), args[0])
	return nil
}

func (s *shell) load(args []string) error {
	if len(args) != 1 {
		return usage("load <path>")
	}
	save, err := snapshot.Read(args[0])
	if err != nil {
		return err
	}
	if err := s.b.Import(save); err != nil {
		return err
	}
	s.printf("loaded %d bricks from %s\n", len(save.Placed), args[0])
	return nil
}

func (s *shell) journal(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("journal <dir> [prefix]")
	}
	prefix := "events"
	if len(args) == 2 {
		prefix = args[1]
	}
	evs, err := persistlog.ReadDir(args[0], prefix)
	if err != nil {
		return err
	}
	for _, e := range evs {
		s.printf("  #%d %s pid=%d shape=%s at=%v pieces=%d\n", e.Seq, e.Kind, e.PieceID, e.Shape, e.Anchor, e.Pieces)
	}
	s.printf("%d events\n", len(evs))
	return nil
}

// show prints one block per z layer, highest y row first.
func (s *shell) show() {
	n := s.b.Size()
	occ := s.b.Occupancy()
	var sb strings.Builder
	for z := 0; z < n; z++ {
		fmt.Fprintf(&sb, "z=%d\n", z)
		for y := n - 1; y >= 0; y-- {
			for x := 0; x < n; x++ {
				id := occ[(x*n+y)*n+z]
				if id == 0 {
					sb.WriteString("  .")
				} else {
					fmt.Fprintf(&sb, "%3d", id)
				}
			}
			sb.WriteByte('\n')
		}
	}
	fmt.Fprintf(&sb, "%d bricks placed, %d empty cells\n", len(s.b.Pieces()), s.b.EmptyCount())
	s.printf("%s", sb.String())
}

func (s *shell) println(msg string) { fmt.Fprintln(s.out, msg) }

func (s *shell) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }

func parseInts(parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", p)
		}
		out[i] = n
	}
	return out, nil
}

func toArrays(vs []geom.Vec3i) [][3]int {
	out := make([][3]int, len(vs))
	for i, v := range vs {
		out[i] = v.ToArray()
	}
	return out
}

package main

import (
	"fmt"
	"sort"

	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
)

type replayStats struct {
	Events  int
	Places  int
	Removes int
	Moves   int
}

// sessionEvents keeps the events of one session ordered by seq.
func sessionEvents(evs []board.Event, sid string) []board.Event {
	var out []board.Event
	for _, e := range evs {
		if e.SessionID == sid {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// replay applies journaled events to b and checks that every mutation
// reproduces the recorded piece ids, anchors and piece counts.
func replay(b *board.Board, evs []board.Event, base *snapshot.Save) (replayStats, error) {
	var st replayStats
	var prev uint64
	loaded := false
	for _, e := range evs {
		if prev != 0 && e.Seq != prev+1 {
			return st, fmt.Errorf("journal gap: seq %d follows %d", e.Seq, prev)
		}
		prev = e.Seq

		switch e.Kind {
		case board.EventReset:
			b.Reset()
		case board.EventPlace:
			id, err := b.Place(e.Shape, e.Orientation, geom.Vec3iFromArray(e.Anchor))
			if err != nil {
				return st, fmt.Errorf("seq %d: place %s: %w", e.Seq, e.Shape, err)
			}
			if uint32(id) != e.PieceID {
				return st, fmt.Errorf("seq %d: place %s got id %d, journal has %d", e.Seq, e.Shape, id, e.PieceID)
			}
			st.Places++
		case board.EventRemove:
			if err := b.Remove(grid.PieceID(e.PieceID)); err != nil {
				return st, fmt.Errorf("seq %d: remove %d: %w", e.Seq, e.PieceID, err)
			}
			st.Removes++
		case board.EventMove:
			if e.Delta == nil {
				return st, fmt.Errorf("seq %d: move %d without delta", e.Seq, e.PieceID)
			}
			p, err := b.Move(grid.PieceID(e.PieceID), geom.Vec3iFromArray(*e.Delta))
			if err != nil {
				return st, fmt.Errorf("seq %d: move %d: %w", e.Seq, e.PieceID, err)
			}
			if p.Anchor.ToArray() != e.Anchor {
				return st, fmt.Errorf("seq %d: move %d landed at %v, journal has %v", e.Seq, e.PieceID, p.Anchor.ToArray(), e.Anchor)
			}
			st.Moves++
		case board.EventLoad:
			if base == nil {
				return st, fmt.Errorf("seq %d: LOAD needs -base", e.Seq)
			}
			if loaded {
				return st, fmt.Errorf("seq %d: second LOAD; replay supports one base save", e.Seq)
			}
			if err := b.Import(*base); err != nil {
				return st, fmt.Errorf("seq %d: load base: %w", e.Seq, err)
			}
			loaded = true
		default:
			return st, fmt.Errorf("seq %d: unknown event kind %q", e.Seq, e.Kind)
		}

		if n := len(b.Pieces()); n != e.Pieces {
			return st, fmt.Errorf("seq %d: %s left %d pieces, journal has %d", e.Seq, e.Kind, n, e.Pieces)
		}
		st.Events++
	}
	return st, nil
}

// compareSaves reports the first difference in the placed pieces.
func compareSaves(want, got snapshot.Save) error {
	if want.Size != got.Size {
		return fmt.Errorf("size: want %d got %d", want.Size, got.Size)
	}
	if len(want.Placed) != len(got.Placed) {
		return fmt.Errorf("pieces: want %d got %d", len(want.Placed), len(got.Placed))
	}
	byPID := make(map[uint32]snapshot.PieceV1, len(got.Placed))
	for _, p := range got.Placed {
		byPID[p.PID] = p
	}
	for _, w := range want.Placed {
		g, ok := byPID[w.PID]
		if !ok {
			return fmt.Errorf("piece %d missing", w.PID)
		}
		if w.Name != g.Name || w.Pos != g.Pos || !sameCells(w.Cubes, g.Cubes) {
			return fmt.Errorf("piece %d: want %s at %v got %s at %v", w.PID, w.Name, w.Pos, g.Name, g.Pos)
		}
	}
	return nil
}

func sameCells(a, b [][3]int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[[3]int]int, len(a))
	for _, c := range a {
		seen[c]++
	}
	for _, c := range b {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

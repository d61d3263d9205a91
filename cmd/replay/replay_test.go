package main

import (
	"math/rand"
	"strings"
	"testing"

	persistlog "brickcube.ai/internal/persistence/log"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
)

// record runs fn against a journaled board and returns the journal and the
// final board.
func record(t *testing.T, fn func(b *board.Board)) ([]board.Event, *board.Board) {
	t.Helper()
	dir := t.TempDir()
	jl := persistlog.NewEventLogger(dir, "events", nil)
	b, err := board.New(board.Config{Size: 6, SessionID: "R"}, catalogs.Defaults(), board.WithSink(jl))
	if err != nil {
		t.Fatal(err)
	}
	fn(b)
	if err := jl.Close(); err != nil {
		t.Fatal(err)
	}
	evs, err := persistlog.ReadDir(dir, "events")
	if err != nil {
		t.Fatal(err)
	}
	return sessionEvents(evs, "R"), b
}

func freshBoard(t *testing.T) *board.Board {
	t.Helper()
	b, err := board.New(board.Config{Size: 6, SessionID: "R"}, catalogs.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestReplay_ReproducesBoard(t *testing.T) {
	evs, orig := record(t, func(b *board.Board) {
		if err := b.Demo(); err != nil {
			t.Fatal(err)
		}
		// Rejected mutations are not journaled.
		if _, err := b.Place("I", 0, geom.Vec3i{X: 5}); err == nil {
			t.Fatal("expected out of bounds")
		}
		if err := b.Remove(2); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Move(1, geom.Vec3i{Z: 1}); err != nil {
			t.Fatal(err)
		}
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 5; i++ {
			if _, err := b.PlaceRandomAdjacent("T", rng); err != nil {
				t.Fatal(err)
			}
		}
	})

	b := freshBoard(t)
	st, err := replay(b, evs, nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if st.Places != 8 || st.Removes != 1 || st.Moves != 1 || st.Events != 11 {
		t.Fatalf("stats: %+v", st)
	}
	if err := compareSaves(orig.Export(), b.Export()); err != nil {
		t.Fatalf("compare: %v", err)
	}
}

func TestReplay_LoadNeedsBase(t *testing.T) {
	src := freshBoard(t)
	if err := src.Demo(); err != nil {
		t.Fatal(err)
	}
	base := src.Export()

	evs, orig := record(t, func(b *board.Board) {
		if err := b.Import(base); err != nil {
			t.Fatal(err)
		}
		if err := b.Remove(3); err != nil {
			t.Fatal(err)
		}
	})

	if _, err := replay(freshBoard(t), evs, nil); err == nil || !strings.Contains(err.Error(), "LOAD needs -base") {
		t.Fatalf("expected missing base error, got %v", err)
	}
	b := freshBoard(t)
	if _, err := replay(b, evs, &base); err != nil {
		t.Fatalf("replay with base: %v", err)
	}
	if err := compareSaves(orig.Export(), b.Export()); err != nil {
		t.Fatalf("compare: %v", err)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	evs, _ := record(t, func(b *board.Board) {
		if err := b.Demo(); err != nil {
			t.Fatal(err)
		}
	})

	tampered := append([]board.Event(nil), evs...)
	tampered[2].PieceID = 9
	if _, err := replay(freshBoard(t), tampered, nil); err == nil || !strings.Contains(err.Error(), "journal has 9") {
		t.Fatalf("expected id mismatch, got %v", err)
	}

	gap := append(append([]board.Event(nil), evs[:2]...), evs[3:]...)
	if _, err := replay(freshBoard(t), gap, nil); err == nil || !strings.Contains(err.Error(), "journal gap") {
		t.Fatalf("expected gap, got %v", err)
	}
}

func TestCompareSaves(t *testing.T) {
	a := freshBoard(t)
	if err := a.Demo(); err != nil {
		t.Fatal(err)
	}
	b := freshBoard(t)
	if err := b.Demo(); err != nil {
		t.Fatal(err)
	}
	if err := compareSaves(a.Export(), b.Export()); err != nil {
		t.Fatalf("identical boards: %v", err)
	}
	if _, err := b.Move(3, geom.Vec3i{Y: 1}); err != nil {
		t.Fatal(err)
	}
	if err := compareSaves(a.Export(), b.Export()); err == nil {
		t.Fatalf("expected difference after move")
	}
}

package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"brickcube.ai/internal/persistence/snapshot"
)

func writeSave(t *testing.T, dir string, at int64, pieces int) string {
	t.Helper()
	save := snapshot.Save{SessionID: "S1", Size: 6, NextID: uint32(pieces + 1), Placed: []snapshot.PieceV1{}}
	for i := 0; i < pieces; i++ {
		save.Placed = append(save.Placed, snapshot.PieceV1{
			PID:   uint32(i + 1),
			Name:  "I",
			Cubes: [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}},
			Pos:   [3]int{0, i, 0},
		})
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json.zst", at))
	if err := snapshot.Write(path, save); err != nil {
		t.Fatalf("write save: %v", err)
	}
	return path
}

func TestListSaves_OrdersByTime(t *testing.T) {
	dir := t.TempDir()
	writeSave(t, dir, 300, 0)
	writeSave(t, dir, 100, 0)
	for _, name := range []string{"notes.txt", "x.json", "200.json.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := ListSaves(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].At != 100 || got[1].At != 300 {
		t.Fatalf("ListSaves: %+v", got)
	}
}

func TestRotate_ArchivesOldest(t *testing.T) {
	root := t.TempDir()
	saves := filepath.Join(root, "saves")
	archives := filepath.Join(root, "archives")
	oldest := writeSave(t, saves, 86400, 2) // 1970-01-02
	writeSave(t, saves, 2*86400, 1)
	writeSave(t, saves, 3*86400, 0)

	moved, err := Rotate(saves, archives, 2, time.Unix(5*86400, 0))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	want := filepath.Join(archives, "1970-01-02", filepath.Base(oldest))
	if len(moved) != 1 || moved[0] != want {
		t.Fatalf("moved: %v want %s", moved, want)
	}
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Fatalf("oldest save still present: %v", err)
	}
	left, _ := ListSaves(saves)
	if len(left) != 2 {
		t.Fatalf("left: %+v", left)
	}

	archived, err := snapshot.Read(want)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if len(archived.Placed) != 2 {
		t.Fatalf("archived pieces: %d", len(archived.Placed))
	}
	raw, err := os.ReadFile(want + ".meta.json")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.Pieces != 2 || meta.SessionID != "S1" || meta.Size != 6 || meta.SavedAt != "1970-01-02T00:00:00Z" {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestRotate_NoopCases(t *testing.T) {
	root := t.TempDir()
	if moved, err := Rotate(filepath.Join(root, "missing"), root, 1, time.Now()); err != nil || moved != nil {
		t.Fatalf("missing dir: %v %v", moved, err)
	}
	saves := filepath.Join(root, "saves")
	writeSave(t, saves, 10, 0)
	writeSave(t, saves, 20, 0)
	if moved, err := Rotate(saves, root, 0, time.Now()); err != nil || moved != nil {
		t.Fatalf("keep=0: %v %v", moved, err)
	}
	if moved, err := Rotate(saves, root, 5, time.Now()); err != nil || moved != nil {
		t.Fatalf("under limit: %v %v", moved, err)
	}
}

func TestRotate_CorruptSaveDoesNotBlock(t *testing.T) {
	root := t.TempDir()
	saves := filepath.Join(root, "saves")
	archives := filepath.Join(root, "archives")
	writeSave(t, saves, 2*86400, 1)
	writeSave(t, saves, 3*86400, 0)
	bad := filepath.Join(saves, "86400.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	moved, err := Rotate(saves, archives, 1, time.Unix(5*86400, 0))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("moved: %v", moved)
	}
	left, _ := ListSaves(saves)
	if len(left) != 1 || left[0].At != 3*86400 {
		t.Fatalf("left: %+v", left)
	}

	raw, err := os.ReadFile(filepath.Join(archives, "1970-01-02", "86400.json.meta.json"))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.ReadError == "" || meta.Pieces != 0 {
		t.Fatalf("meta: %+v", meta)
	}
}

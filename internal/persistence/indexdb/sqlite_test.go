package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/tuning"
)

func TestSQLiteIndex_RecordsBoardEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	b, err := board.New(board.Config{Size: 6, SessionID: "S1"}, catalogs.Defaults(), board.WithSink(idx))
	if err != nil {
		t.Fatal(err)
	}
	id, err := b.Place("T", 0, geom.Vec3i{X: 1, Y: 2, Z: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Move(id, geom.Vec3i{X: 1}); err != nil {
		t.Fatal(err)
	}
	idx.RecordSave("/tmp/board.json", b.Export())
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closed index ignores further writes.
	idx.RecordEvent(board.Event{SessionID: "S1", Seq: 99, At: time.Now()})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id='S1'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("events: got %d want 2", n)
	}
	var (
		kind    string
		x, y, z int
	)
	row := db.QueryRow(`SELECT kind,x,y,z FROM events WHERE session_id='S1' AND seq=2`)
	if err := row.Scan(&kind, &x, &y, &z); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if kind != board.EventMove || x != 2 || y != 2 || z != 3 {
		t.Fatalf("move row: kind=%s pos=%d,%d,%d", kind, x, y, z)
	}

	var (
		pieces int
		next   int64
		p      string
	)
	if err := db.QueryRow(`SELECT path,pieces,next_id FROM saves WHERE session_id='S1'`).Scan(&p, &pieces, &next); err != nil {
		t.Fatalf("saves: %v", err)
	}
	if p != "/tmp/board.json" || pieces != 1 || next != 2 {
		t.Fatalf("save row: path=%s pieces=%d next=%d", p, pieces, next)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalogs.Defaults()
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}
	// Upserting twice keeps one row per catalog.
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='bricks'`).Scan(&digest); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if digest != cat.Digest {
		t.Fatalf("digest: got %s want %s", digest, cat.Digest)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("catalog rows: got %d want 2", n)
	}
}

func TestSQLiteIndex_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	var nilIdx *SQLiteIndex
	nilIdx.RecordEvent(board.Event{})
	nilIdx.RecordSave("x", snapshot.Save{})
}

func TestSQLiteIndex_IdleBatchIsCommitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	idx.RecordEvent(board.Event{SessionID: "IDLE", Seq: 1, Kind: board.EventReset, At: time.Now()})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	// No further writes arrive; the open batch must still become visible.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id='IDLE'`).Scan(&n); err == nil && n == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("event not committed while the index is idle")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

package main

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"brickcube.ai/internal/persistence/indexdb"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/tuning"
)

func seededIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalogs.Defaults()
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatal(err)
	}
	b, err := board.New(board.Config{SessionID: "S"}, cat, board.WithSink(idx))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Demo(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Move(2, geom.Vec3i{X: 1}); err != nil {
		t.Fatal(err)
	}
	idx.RecordSave("/saves/1.json.zst", b.Export())
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunQuery(t *testing.T) {
	db, err := sql.Open("sqlite", seededIndex(t))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var out strings.Builder
	if err := runQuery(db, &out, "events", dbQuery{Session: "S", PieceID: 2}); err != nil {
		t.Fatalf("events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("piece 2 events: %q", out.String())
	}
	var first eventRow
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Kind != board.EventMove || first.Pos != [3]int{1, 2, 0} {
		t.Fatalf("latest event: %+v", first)
	}

	out.Reset()
	if err := runQuery(db, &out, "saves", dbQuery{}); err != nil {
		t.Fatalf("saves: %v", err)
	}
	if !strings.Contains(out.String(), `"path":"/saves/1.json.zst"`) || !strings.Contains(out.String(), `"pieces":3`) {
		t.Fatalf("saves: %s", out.String())
	}

	out.Reset()
	if err := runQuery(db, &out, "sessions", dbQuery{}); err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out.String(), `"session_id":"S","events":5`) {
		t.Fatalf("sessions: %s", out.String())
	}

	out.Reset()
	if err := runQuery(db, &out, "catalogs", dbQuery{}); err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("catalogs: %s", out.String())
	}

	if err := runQuery(db, &out, "agents", dbQuery{}); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

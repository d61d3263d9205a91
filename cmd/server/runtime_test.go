package main

import (
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "brickcube.ai/internal/persistence/log"
	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/tuning"
	"brickcube.ai/internal/transport/observer"
)

func TestLatestSave(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"100.json.zst", "300.json", "200.json.zst", "notes.txt", "x.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSave(dir); got != filepath.Join(dir, "300.json") {
		t.Fatalf("latestSave: %s", got)
	}
	if got := latestSave(filepath.Join(dir, "missing")); got != "" {
		t.Fatalf("missing dir: %q", got)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestRuntime_SinksAndSave(t *testing.T) {
	dataDir := t.TempDir()
	tune := tuning.Defaults()
	rt, err := openRuntime(dataDir, tune, false, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("openRuntime: %v", err)
	}
	b, err := board.New(board.Config{Size: tune.GridSize}, catalogs.Defaults(), board.WithSink(rt.Sink()))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Demo(); err != nil {
		t.Fatal(err)
	}
	path, err := rt.WriteSave(b, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	if latestSave(savesDir(dataDir)) != path {
		t.Fatalf("save not picked up as latest: %s", path)
	}
	rec := httptest.NewRecorder()
	writeMetrics(rec, b, rt, observer.NewHub())
	if !strings.Contains(rec.Body.String(), "brickcube_empty_cells{session=") || !strings.Contains(rec.Body.String(), "brickcube_observers 0") {
		t.Fatalf("metrics: %s", rec.Body.String())
	}
	rt.Close()

	save, err := snapshot.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(save.Placed) != 3 {
		t.Fatalf("saved pieces: %d", len(save.Placed))
	}
	evs, err := persistlog.ReadDir(filepath.Join(dataDir, "journal"), "events")
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 4 {
		t.Fatalf("journal events: %d", len(evs))
	}
	if _, err := os.Stat(filepath.Join(dataDir, "index.db")); err != nil {
		t.Fatalf("index db: %v", err)
	}
}

func TestRuntime_DisableDB(t *testing.T) {
	tune := tuning.Defaults()
	tune.Journal.Enabled = false
	rt, err := openRuntime(t.TempDir(), tune, true, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if rt.index != nil || rt.journal != nil {
		t.Fatalf("expected no sinks")
	}
	if s := rt.Sink(); len(s) != 0 {
		t.Fatalf("sink: %#v", s)
	}
}

func TestRuntime_WriteSaveRotates(t *testing.T) {
	dataDir := t.TempDir()
	tune := tuning.Defaults()
	tune.Journal.Enabled = false
	tune.Saves.Keep = 1
	rt, err := openRuntime(dataDir, tune, true, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	b, err := board.New(board.Config{Size: tune.GridSize}, catalogs.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	first, err := rt.WriteSave(b, time.Unix(86400, 0))
	if err != nil {
		t.Fatal(err)
	}
	second, err := rt.WriteSave(b, time.Unix(2*86400, 0))
	if err != nil {
		t.Fatal(err)
	}
	if latestSave(savesDir(dataDir)) != second {
		t.Fatalf("latest: %s", latestSave(savesDir(dataDir)))
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("first save not rotated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "archives", "1970-01-02", filepath.Base(first))); err != nil {
		t.Fatalf("archived save: %v", err)
	}
}

package main

import (
	"fmt"
	"log"
	"net"
	"path/filepath"
	"strings"
	"time"

	"brickcube.ai/internal/persistence/archive"
	"brickcube.ai/internal/persistence/indexdb"
	persistlog "brickcube.ai/internal/persistence/log"
	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/tuning"
)

// runtime owns the event sinks and the saves directory for one server run.
type runtime struct {
	dataDir string
	saves   tuning.SavesConfig
	journal *persistlog.EventLogger
	index   *indexdb.SQLiteIndex
	log     *log.Logger
}

func openRuntime(dataDir string, tune tuning.Tuning, disableDB bool, logger *log.Logger) (*runtime, error) {
	rt := &runtime{dataDir: dataDir, saves: tune.Saves, log: logger}
	if tune.Journal.Enabled {
		rt.journal = persistlog.NewEventLogger(resolve(dataDir, tune.Journal.Dir), tune.Journal.Prefix, logger)
	}
	if tune.Index.Enabled && !disableDB {
		idx, err := indexdb.OpenSQLite(resolve(dataDir, tune.Index.Path))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("index: %w", err)
		}
		rt.index = idx
	}
	return rt, nil
}

// Sink fans board events out to the enabled sinks.
func (rt *runtime) Sink() board.MultiSink {
	var sinks board.MultiSink
	if rt.journal != nil {
		sinks = append(sinks, rt.journal)
	}
	if rt.index != nil {
		sinks = append(sinks, rt.index)
	}
	return sinks
}

// WriteSave exports the board into <data>/saves/<unix>.json.zst.
func (rt *runtime) WriteSave(b *board.Board, now time.Time) (string, error) {
	save := b.Export()
	path := filepath.Join(savesDir(rt.dataDir), fmt.Sprintf("%d.json.zst", now.Unix()))
	if err := snapshot.Write(path, save); err != nil {
		return "", err
	}
	if rt.index != nil {
		rt.index.RecordSave(path, save)
	}
	moved, err := archive.Rotate(savesDir(rt.dataDir), resolve(rt.dataDir, rt.saves.ArchiveDir), rt.saves.Keep, now)
	if err != nil {
		rt.log.Printf("save rotation: %v", err)
	}
	if len(moved) > 0 {
		rt.log.Printf("archived %d old saves", len(moved))
	}
	return path, nil
}

func (rt *runtime) Close() {
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.log.Printf("journal close: %v", err)
		}
	}
	if rt.index != nil {
		if err := rt.index.Close(); err != nil {
			rt.log.Printf("index close: %v", err)
		}
	}
}

func resolve(dataDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

func savesDir(dataDir string) string { return filepath.Join(dataDir, "saves") }

// latestSave returns the newest <unix>.json(.zst) save in dir, or "".
func latestSave(dir string) string {
	saves, err := archive.ListSaves(dir)
	if err != nil || len(saves) == 0 {
		return ""
	}
	return saves[len(saves)-1].Path
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

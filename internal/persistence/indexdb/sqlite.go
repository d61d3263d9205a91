package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/tuning"
)

// SQLiteIndex is a query-friendly copy of the board journal. Writes are queued
// to a single goroutine and never block the board.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqSave
)

type req struct {
	kind reqKind

	event board.Event
	save  saveRow
}

type saveRow struct {
	SessionID  string
	Path       string
	Size       int
	Pieces     int
	NextID     uint32
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			piece_id INTEGER NOT NULL,
			shape TEXT NOT NULL,
			orientation INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			pieces INTEGER NOT NULL,
			at TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_piece ON events(session_id, piece_id);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			pieces INTEGER NOT NULL,
			next_id INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts requests discarded because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		// The JSONL journal remains the source of truth.
		s.dropped.Add(1)
	}
}

// RecordEvent implements board.Sink.
func (s *SQLiteIndex) RecordEvent(e board.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqEvent, event: e})
}

func (s *SQLiteIndex) RecordSave(path string, save snapshot.Save) {
	if s == nil || s.closed.Load() || path == "" {
		return
	}
	s.enqueue(req{kind: reqSave, save: saveRow{
		SessionID:  save.SessionID,
		Path:       path,
		Size:       save.Size,
		Pieces:     len(save.Placed),
		NextID:     save.NextID,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

// UpsertCatalog stores the brick table and the effective tuning.
func (s *SQLiteIndex) UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	defs := make([]catalogs.ShapeDef, 0, cat.Len())
	for _, n := range cat.Names() {
		sh, _ := cat.Get(n)
		d := catalogs.ShapeDef{ID: sh.Name}
		for _, c := range sh.Cells {
			d.Cells = append(d.Cells, c.ToArray())
		}
		defs = append(defs, d)
	}
	bricks, err := json.Marshal(defs)
	if err != nil {
		return err
	}
	tuneJSON, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tuneJSON)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.Exec("bricks", cat.Digest, string(bricks), now); err != nil {
		return err
	}
	if _, err := stmt.Exec("tuning", hex.EncodeToString(sum[:]), string(tuneJSON), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(session_id,seq,kind,piece_id,shape,orientation,x,y,z,pieces,at,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT INTO saves(session_id,path,size,pieces,next_id,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	tick := time.NewTicker(commitMaxWait)
	defer tick.Stop()

	for {
		var r req
		select {
		case <-tick.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			e := r.event
			if insertEvent == nil {
				break
			}
			raw, _ := json.Marshal(e)
			if _, err := tx.Stmt(insertEvent).Exec(
				e.SessionID,
				int64(e.Seq),
				e.Kind,
				int64(e.PieceID),
				e.Shape,
				e.Orientation,
				e.Anchor[0], e.Anchor[1], e.Anchor[2],
				e.Pieces,
				e.At.UTC().Format(time.RFC3339Nano),
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSave:
			sv := r.save
			if insertSave == nil {
				break
			}
			if _, err := tx.Stmt(insertSave).Exec(
				sv.SessionID,
				sv.Path,
				sv.Size,
				sv.Pieces,
				int64(sv.NextID),
				sv.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}

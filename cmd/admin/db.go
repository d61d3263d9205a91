package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	Session string
	PieceID uint32
	Limit   int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index.db)")
	session := fs.String("session", "", "session_id filter (events, saves)")
	piece := fs.Uint("piece", 0, "piece_id filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "events"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, os.Stdout, q, dbQuery{Session: *session, PieceID: uint32(*piece), Limit: *limit}); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, w io.Writer, q string, f dbQuery) error {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	switch q {
	case "events":
		return queryEvents(db, w, f)
	case "saves":
		return querySaves(db, w, f)
	case "sessions":
		return querySessions(db, w, f)
	case "catalogs":
		return queryCatalogs(db, w)
	default:
		return fmt.Errorf("unknown query %q (events, saves, sessions, catalogs)", q)
	}
}

type eventRow struct {
	SessionID   string `json:"session_id"`
	Seq         int64  `json:"seq"`
	Kind        string `json:"kind"`
	PieceID     int64  `json:"piece_id,omitempty"`
	Shape       string `json:"shape,omitempty"`
	Orientation int    `json:"orientation"`
	Pos         [3]int `json:"pos"`
	Pieces      int    `json:"pieces"`
	At          string `json:"at"`
}

func queryEvents(db *sql.DB, w io.Writer, f dbQuery) error {
	where := []string{"1=1"}
	var args []any
	if f.Session != "" {
		where = append(where, "session_id=?")
		args = append(args, f.Session)
	}
	if f.PieceID != 0 {
		where = append(where, "piece_id=?")
		args = append(args, int64(f.PieceID))
	}
	args = append(args, f.Limit)
	rows, err := db.Query(`SELECT session_id,seq,kind,piece_id,shape,orientation,x,y,z,pieces,at FROM events WHERE `+
		strings.Join(where, " AND ")+` ORDER BY rowid DESC LIMIT ?`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.SessionID, &r.Seq, &r.Kind, &r.PieceID, &r.Shape, &r.Orientation, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Pieces, &r.At); err != nil {
			return err
		}
		if err := printJSON(w, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func querySaves(db *sql.DB, w io.Writer, f dbQuery) error {
	q := `SELECT session_id,path,size,pieces,next_id,recorded_at FROM saves`
	var args []any
	if f.Session != "" {
		q += ` WHERE session_id=?`
		args = append(args, f.Session)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, f.Limit)
	rows, err := db.Query(q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			SessionID  string `json:"session_id"`
			Path       string `json:"path"`
			Size       int    `json:"size"`
			Pieces     int    `json:"pieces"`
			NextID     int64  `json:"next_id"`
			RecordedAt string `json:"recorded_at"`
		}
		if err := rows.Scan(&r.SessionID, &r.Path, &r.Size, &r.Pieces, &r.NextID, &r.RecordedAt); err != nil {
			return err
		}
		if err := printJSON(w, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func querySessions(db *sql.DB, w io.Writer, f dbQuery) error {
	rows, err := db.Query(`SELECT session_id,COUNT(*),MIN(at),MAX(at) FROM events GROUP BY session_id ORDER BY MAX(rowid) DESC LIMIT ?`, f.Limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			SessionID string `json:"session_id"`
			Events    int    `json:"events"`
			First     string `json:"first_at"`
			Last      string `json:"last_at"`
		}
		if err := rows.Scan(&r.SessionID, &r.Events, &r.First, &r.Last); err != nil {
			return err
		}
		if err := printJSON(w, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryCatalogs(db *sql.DB, w io.Writer) error {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Name      string `json:"name"`
			Digest    string `json:"digest"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return err
		}
		if err := printJSON(w, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func printJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

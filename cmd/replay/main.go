package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "brickcube.ai/internal/persistence/log"
	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
)

func main() {
	var (
		eventsDir = flag.String("events", "", "journal dir containing <prefix>-*.jsonl.zst")
		prefix    = flag.String("prefix", "events", "journal file prefix")
		session   = flag.String("session", "", "session id to replay (default: session of the newest event)")
		basePath  = flag.String("base", "", "save file the session loaded (required when the journal has a LOAD)")
		checkPath = flag.String("check", "", "save file the replayed board must match (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		size      = flag.Int("size", 6, "grid size")
	)
	flag.Parse()

	if *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	evs, err := persistlog.ReadDir(*eventsDir, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
	if len(evs) == 0 {
		fmt.Fprintln(os.Stderr, "no events found in", *eventsDir)
		os.Exit(1)
	}
	sid := *session
	if sid == "" {
		sid = evs[len(evs)-1].SessionID
	}
	evs = sessionEvents(evs, sid)

	var base *snapshot.Save
	if *basePath != "" {
		s, err := snapshot.Read(*basePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read base:", err)
			os.Exit(1)
		}
		base = &s
	}

	b, err := board.New(board.Config{Size: *size, SessionID: sid}, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "board:", err)
		os.Exit(1)
	}
	st, err := replay(b, evs, base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	if *checkPath != "" {
		want, err := snapshot.Read(*checkPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read check:", err)
			os.Exit(1)
		}
		if err := compareSaves(want, b.Export()); err != nil {
			fmt.Fprintln(os.Stderr, "check:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: session=%s events=%d places=%d removes=%d moves=%d pieces=%d empty=%d\n",
		sid, st.Events, st.Places, st.Removes, st.Moves, len(b.Pieces()), b.EmptyCount())
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"brickcube.ai/internal/persistence/archive"
	"brickcube.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		case "observer":
			observerCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the saves under <data>/saves, newest last.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	saves, err := archive.ListSaves(filepath.Join(*dataDir, "saves"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, s := range saves {
		fmt.Printf("%s\t%s\n", s.Path, time.Unix(s.At, 0).UTC().Format(time.RFC3339))
	}
}

// inspectCmd validates a save file and prints a summary of it.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin inspect <save>")
		os.Exit(2)
	}
	save, err := snapshot.Read(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	fmt.Printf("save v%d session=%s size=%d next_id=%d pieces=%d\n",
		save.Version, save.SessionID, save.Size, save.NextID, len(save.Placed))
	for _, p := range save.Placed {
		fmt.Printf("  pid=%d name=%s pos=%v cubes=%v\n", p.PID, p.Name, p.Pos, p.Cubes)
	}
}

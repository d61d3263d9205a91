package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/tuning"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		demo       = flag.Bool("demo", false, "place the demo bricks, print the grid and exit")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[brickctl] ", log.LstdFlags)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	b, err := board.New(board.Config{
		Size:           tune.GridSize,
		LogDeadAnchors: tune.LogDeadAnchors,
	}, cats, board.WithLogger(logger))
	if err != nil {
		logger.Fatalf("board: %v", err)
	}
	sh := newShell(b, os.Stdout, rand.New(rand.NewSource(tune.RandomSeed)))

	if *demo {
		sh.exec("demo")
		sh.exec("show")
		return
	}

	n := b.Size()
	fmt.Printf("%dx%dx%d brick console (type 'help' for usage)\n", n, n, n)
	fmt.Printf("Available bricks: %s\n", strings.Join(cats.Names(), ", "))
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			fmt.Println("\nexiting")
			return
		}
		if sh.exec(in.Text()) {
			return
		}
	}
}

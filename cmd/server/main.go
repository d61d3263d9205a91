package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"brickcube.ai/internal/persistence/snapshot"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/tuning"
	"brickcube.ai/internal/transport/observer"
	"brickcube.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")

		loadPath   = flag.String("load", "", "save file to load (optional)")
		loadLatest = flag.Bool("load_latest_save", true, "load the latest save from the data dir if present (when -load is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

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
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	rt, err := openRuntime(*dataDir, tune, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if rt.index != nil {
		if err := rt.index.UpsertCatalog(cats, tune); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	hub := observer.NewHub()
	b, err := board.New(board.Config{
		Size:           tune.GridSize,
		LogDeadAnchors: tune.LogDeadAnchors,
	}, cats, board.WithLogger(logger), board.WithSink(append(rt.Sink(), hub)))
	if err != nil {
		logger.Fatalf("board: %v", err)
	}
	logger.Printf("session=%s grid=%d shapes=%v catalog=%s", b.SessionID(), b.Size(), cats.Names(), cats.Digest)

	saveToLoad := strings.TrimSpace(*loadPath)
	if saveToLoad == "" && *loadLatest {
		saveToLoad = latestSave(savesDir(*dataDir))
	}
	if saveToLoad != "" {
		save, err := snapshot.Read(saveToLoad)
		if err != nil {
			logger.Fatalf("read save: %v", err)
		}
		if err := b.Import(save); err != nil {
			logger.Fatalf("import save: %v", err)
		}
		logger.Printf("resumed from save=%s pieces=%d", filepath.Base(saveToLoad), len(save.Placed))
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, b, rt, hub)
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			SessionID  string `json:"session_id"`
			Size       int    `json:"size"`
			Pieces     int    `json:"pieces"`
			EmptyCount int    `json:"empty_count"`
		}{
			SessionID:  b.SessionID(),
			Size:       b.Size(),
			Pieces:     len(b.Pieces()),
			EmptyCount: b.EmptyCount(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		path, err := rt.WriteSave(b, time.Now())
		if err != nil {
			rw.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(b, logger, tune.RandomSeed).Handler())

	obs := observer.NewServer(b, hub, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	if path, err := rt.WriteSave(b, time.Now()); err != nil {
		logger.Printf("final save: %v", err)
	} else {
		logger.Printf("final save=%s", path)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeMetrics(rw http.ResponseWriter, b *board.Board, rt *runtime, hub *observer.Hub) {
	size := b.Size()
	fmt.Fprintf(rw, "# HELP brickcube_pieces Pieces currently on the board.\n")
	fmt.Fprintf(rw, "# TYPE brickcube_pieces gauge\n")
	fmt.Fprintf(rw, "brickcube_pieces{session=%q} %d\n", b.SessionID(), len(b.Pieces()))

	fmt.Fprintf(rw, "# HELP brickcube_empty_cells Unoccupied grid cells.\n")
	fmt.Fprintf(rw, "# TYPE brickcube_empty_cells gauge\n")
	fmt.Fprintf(rw, "brickcube_empty_cells{session=%q} %d\n", b.SessionID(), b.EmptyCount())

	fmt.Fprintf(rw, "# HELP brickcube_grid_cells Total grid cells.\n")
	fmt.Fprintf(rw, "# TYPE brickcube_grid_cells gauge\n")
	fmt.Fprintf(rw, "brickcube_grid_cells{session=%q} %d\n", b.SessionID(), size*size*size)

	if rt != nil && rt.index != nil {
		fmt.Fprintf(rw, "# HELP brickcube_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE brickcube_index_dropped_total counter\n")
		fmt.Fprintf(rw, "brickcube_index_dropped_total %d\n", rt.index.Dropped())
	}
	if hub != nil {
		fmt.Fprintf(rw, "# HELP brickcube_observers Connected observer streams.\n")
		fmt.Fprintf(rw, "# TYPE brickcube_observers gauge\n")
		fmt.Fprintf(rw, "brickcube_observers %d\n", hub.Observers())
		fmt.Fprintf(rw, "# HELP brickcube_observer_dropped_total Events dropped for slow observers.\n")
		fmt.Fprintf(rw, "# TYPE brickcube_observer_dropped_total counter\n")
		fmt.Fprintf(rw, "brickcube_observer_dropped_total %d\n", hub.Dropped())
	}
}

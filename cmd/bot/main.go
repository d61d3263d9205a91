package main

import (
	"flag"
	"log"
	"os"

	"github.com/gorilla/websocket"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		limit = flag.Int("max", 0, "stop after this many placements (0 = until no brick fits)")
		reset = flag.Bool("reset", false, "reset the board before filling")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := &client{conn: conn, log: logger}
	w, err := c.hello(*name)
	if err != nil {
		logger.Fatalf("handshake: %v", err)
	}
	logger.Printf("WELCOME session=%s grid=%d shapes=%d", w.SessionID, w.GridSize, len(w.Shapes))

	n, err := c.fill(w, *reset, *limit)
	if err != nil {
		logger.Fatalf("fill: %v", err)
	}
	st, err := c.state()
	if err != nil {
		logger.Fatalf("state: %v", err)
	}
	logger.Printf("placed=%d pieces=%d empty=%d", n, len(st.Pieces), st.EmptyCount)
}

package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"brickcube.ai/internal/observerproto"
	"brickcube.ai/internal/protocol"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/encoding"
)

// Hub fans board events out to observer connections. It implements
// board.Sink and never blocks the board: slow observers lose events.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*subscriber

	dropped atomic.Uint64
}

type subscriber struct {
	out   chan []byte
	kinds map[string]bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

func (h *Hub) RecordEvent(e board.Event) {
	b, err := json.Marshal(observerproto.EventMsg{
		Type:            observerproto.TypeEvent,
		ProtocolVersion: observerproto.Version,
		Event:           e,
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if len(s.kinds) > 0 && !s.kinds[e.Kind] {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts events not delivered to a full observer queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Observers returns the number of connected observers.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) join(id string, out chan []byte, kinds []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = &subscriber{out: out, kinds: kindSet(kinds)}
}

func (h *Hub) filter(id string, kinds []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.kinds = kindSet(kinds)
	}
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func kindSet(kinds []string) map[string]bool {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	return m
}

type Server struct {
	board *board.Board
	hub   *Hub
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(b *board.Board, hub *Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		board: b,
		hub:   hub,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		view := s.board.State()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			SessionID:       s.board.SessionID(),
			GridSize:        s.board.Size(),
			Shapes:          s.board.Catalog().Names(),
			State: protocol.StateInfo{
				Size:       s.board.Size(),
				Encoding:   "RLE",
				Data:       encoding.EncodeOccupancy(view.Occupancy),
				EmptyCount: view.EmptyCount,
			},
		}
		for _, p := range view.Pieces {
			info := protocol.PieceInfo{ID: uint32(p.ID), Shape: p.Shape, Orientation: p.Orientation, Anchor: p.Anchor.ToArray()}
			for _, c := range p.AbsoluteCells() {
				info.Cells = append(info.Cells, c.ToArray())
			}
			resp.State.Pieces = append(resp.State.Pieces, info)
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 256)
		s.hub.join(sid, out, sub.Kinds)
		defer s.hub.leave(sid)
		s.log.Printf("observer joined: %s kinds=%v", sid, sub.Kinds)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			s.hub.filter(sid, sub.Kinds)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer left: %s", sid)
	}
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

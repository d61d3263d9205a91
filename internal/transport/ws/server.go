package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brickcube.ai/internal/protocol"
	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/encoding"
	"brickcube.ai/internal/sim/geom"
	"brickcube.ai/internal/sim/grid"
	"brickcube.ai/internal/sim/placement"
	"brickcube.ai/internal/sim/registry"
)

type Server struct {
	board *board.Board
	log   *log.Logger

	upgrader websocket.Upgrader

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewServer(b *board.Board, logger *log.Logger, seed int64) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		board: b,
		log:   logger,
		rng:   rand.New(rand.NewSource(seed)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := s.handshake(conn)
		if client == "" {
			return
		}
		s.log.Printf("client connected: name=%s remote=%s", client, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests are answered in order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			b, err := json.Marshal(s.Handle(msg))
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
		s.log.Printf("client disconnected: name=%s", client)
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	if err := writeJSON(conn, s.Welcome()); err != nil {
		return ""
	}
	return hello.ClientName
}

func (s *Server) Welcome() protocol.WelcomeMsg {
	cat := s.board.Catalog()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.board.SessionID(),
		GridSize:        s.board.Size(),
		Catalog:         protocol.DigestRef{Digest: cat.Digest, Count: cat.Len()},
		Shapes:          s.shapeInfos(),
	}
}

// Handle answers one raw request. It never returns an error; failures are
// reported in the result.
func (s *Server) Handle(raw []byte) protocol.ResultMsg {
	base, err := protocol.DecodeBase(raw)
	res := protocol.NewResult(base)
	if err != nil {
		res.Reject(protocol.ErrBadRequest, "invalid json")
		return res
	}
	if base.ProtocolVersion != protocol.Version {
		res.Reject(protocol.ErrBadRequest, "bad protocol_version")
		return res
	}
	if !protocol.IsRequestType(base.Type) {
		res.Reject(protocol.ErrBadRequest, "unknown type: "+base.Type)
		return res
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		res.Reject(protocol.ErrBadRequest, err.Error())
		return res
	}
	if err := s.dispatch(req, &res); err != nil {
		res.Reject(protocol.CodeFor(err), err.Error())
		if res.Code == protocol.ErrInternal {
			s.log.Printf("request failed: type=%s err=%v", req.Type, err)
		}
	}
	return res
}

func (s *Server) dispatch(req protocol.RequestMsg, res *protocol.ResultMsg) error {
	b := s.board
	switch req.Type {
	case protocol.TypeShapes:
		res.Shapes = s.shapeInfos()

	case protocol.TypePlacements:
		ps, err := b.ValidatePlacements(req.Shape, req.OnlyAdjacent)
		if err != nil {
			return err
		}
		res.Placements = make([]protocol.PlacementInfo, 0, len(ps))
		for _, p := range ps {
			res.Placements = append(res.Placements, placementInfo(p))
		}

	case protocol.TypeBlocked:
		anchors, err := b.BlockedAnchors(req.Shape)
		if err != nil {
			return err
		}
		blocked := len(anchors) > 0
		res.Blocked = &blocked
		res.Anchors = toArrays(anchors)

	case protocol.TypeTouches:
		anchor := geom.Vec3iFromArray(*req.Anchor)
		ids, err := b.Touching(req.Shape, *req.Orientation, anchor)
		if err != nil {
			return err
		}
		touches, two := len(ids) > 0, len(ids) >= 2
		res.Touches = &touches
		res.TouchesTwo = &two
		for _, id := range ids {
			res.Touching = append(res.Touching, uint32(id))
		}

	case protocol.TypeBridge:
		p, ok, err := b.CanBridge(req.Shape)
		if err != nil {
			return err
		}
		if ok {
			info := placementInfo(p)
			res.Bridge = &info
		}

	case protocol.TypePlace:
		anchor := geom.Vec3iFromArray(*req.Anchor)
		var (
			id  grid.PieceID
			err error
		)
		if req.Turns != nil {
			t := *req.Turns
			id, err = b.PlaceTurns(req.Shape, t[0], t[1], t[2], anchor)
		} else {
			id, err = b.Place(req.Shape, *req.Orientation, anchor)
		}
		if err != nil {
			return err
		}
		return s.attachPiece(id, res)

	case protocol.TypePlaceRandom:
		s.rngMu.Lock()
		p, err := b.PlaceRandomAdjacent(req.Shape, s.rng)
		s.rngMu.Unlock()
		if err != nil {
			return err
		}
		info := pieceInfo(p)
		res.Piece = &info

	case protocol.TypeRemove:
		return b.Remove(grid.PieceID(req.PieceID))

	case protocol.TypeMove:
		p, err := b.Move(grid.PieceID(req.PieceID), geom.Vec3iFromArray(*req.Delta))
		if err != nil {
			return err
		}
		info := pieceInfo(p)
		res.Piece = &info

	case protocol.TypeReset:
		b.Reset()

	case protocol.TypeDemo:
		if err := b.Demo(); err != nil {
			return err
		}
		res.State = s.state()

	case protocol.TypeState:
		res.State = s.state()
	}
	return nil
}

func (s *Server) attachPiece(id grid.PieceID, res *protocol.ResultMsg) error {
	p, ok := s.board.Piece(id)
	if !ok {
		return grid.ErrNotFound
	}
	info := pieceInfo(p)
	res.Piece = &info
	return nil
}

func (s *Server) shapeInfos() []protocol.ShapeInfo {
	shapes := s.board.Shapes()
	out := make([]protocol.ShapeInfo, 0, len(shapes))
	for _, sh := range shapes {
		os, _ := s.board.Orientations(sh.Name)
		out = append(out, protocol.ShapeInfo{Name: sh.Name, Cells: toArrays(sh.Cells), Orientations: len(os)})
	}
	return out
}

// state encodes one consistent board view.
func (s *Server) state() *protocol.StateInfo {
	view := s.board.State()
	st := &protocol.StateInfo{
		Size:       s.board.Size(),
		Encoding:   "RLE",
		Data:       encoding.EncodeOccupancy(view.Occupancy),
		EmptyCount: view.EmptyCount,
		Pieces:     make([]protocol.PieceInfo, 0, len(view.Pieces)),
	}
	for _, p := range view.Pieces {
		st.Pieces = append(st.Pieces, pieceInfo(p))
	}
	return st
}

func placementInfo(p placement.Placement) protocol.PlacementInfo {
	return protocol.PlacementInfo{
		Orientation: p.Orientation.Index,
		Anchor:      p.Anchor.ToArray(),
		Cells:       toArrays(p.AbsoluteCells()),
	}
}

func pieceInfo(p registry.PlacedPiece) protocol.PieceInfo {
	return protocol.PieceInfo{
		ID:          uint32(p.ID),
		Shape:       p.Shape,
		Orientation: p.Orientation,
		Anchor:      p.Anchor.ToArray(),
		Cells:       toArrays(p.AbsoluteCells()),
	}
}

func toArrays(vs []geom.Vec3i) [][3]int {
	out := make([][3]int, len(vs))
	for i, v := range vs {
		out[i] = v.ToArray()
	}
	return out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

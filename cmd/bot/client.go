package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"brickcube.ai/internal/protocol"
)

type client struct {
	conn *websocket.Conn
	log  *log.Logger
	seq  int
}

func (c *client) hello(name string) (protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
	}
	if err := c.conn.WriteJSON(hello); err != nil {
		return w, fmt.Errorf("send HELLO: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.ReadJSON(&w); err != nil {
		return w, err
	}
	if w.Type != protocol.TypeWelcome {
		return w, fmt.Errorf("expected WELCOME, got %q", w.Type)
	}
	return w, nil
}

// call sends one request and waits for its RESULT.
func (c *client) call(req protocol.RequestMsg) (protocol.ResultMsg, error) {
	c.seq++
	req.ProtocolVersion = protocol.Version
	req.ReqID = "bot-" + strconv.Itoa(c.seq)

	var res protocol.ResultMsg
	if err := c.conn.WriteJSON(req); err != nil {
		return res, err
	}
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return res, err
		}
		if err := json.Unmarshal(msg, &res); err != nil {
			continue
		}
		if res.Type == protocol.TypeResult && res.ReqID == req.ReqID {
			return res, nil
		}
	}
}

// fill seeds an empty board with the first shape at the origin, then keeps
// placing random bricks next to existing ones until none fits or limit is hit.
func (c *client) fill(w protocol.WelcomeMsg, reset bool, limit int) (int, error) {
	if len(w.Shapes) == 0 {
		return 0, fmt.Errorf("server has no shapes")
	}
	if reset {
		if _, err := c.call(protocol.RequestMsg{Type: protocol.TypeReset}); err != nil {
			return 0, err
		}
	}
	st, err := c.state()
	if err != nil {
		return 0, err
	}

	placed := 0
	if len(st.Pieces) == 0 {
		zero := 0
		res, err := c.call(protocol.RequestMsg{Type: protocol.TypePlace, Shape: w.Shapes[0].Name, Orientation: &zero, Anchor: &[3]int{}})
		if err != nil {
			return 0, err
		}
		if !res.Accepted {
			return 0, fmt.Errorf("seed %s: %s %s", w.Shapes[0].Name, res.Code, res.Message)
		}
		placed++
	}

	stuck := make(map[string]bool, len(w.Shapes))
	for i := 0; len(stuck) < len(w.Shapes); i++ {
		if limit > 0 && placed >= limit {
			break
		}
		shape := w.Shapes[i%len(w.Shapes)].Name
		if stuck[shape] {
			continue
		}
		res, err := c.call(protocol.RequestMsg{Type: protocol.TypePlaceRandom, Shape: shape})
		if err != nil {
			return placed, err
		}
		switch {
		case res.Accepted:
			placed++
			// New bricks open new neighbours for every shape.
			clear(stuck)
			c.log.Printf("placed %s id=%d at=%v", shape, res.Piece.ID, res.Piece.Anchor)
		case res.Code == protocol.ErrNoPlacement:
			stuck[shape] = true
		default:
			return placed, fmt.Errorf("place %s: %s %s", shape, res.Code, res.Message)
		}
	}
	return placed, nil
}

func (c *client) state() (*protocol.StateInfo, error) {
	res, err := c.call(protocol.RequestMsg{Type: protocol.TypeState})
	if err != nil {
		return nil, err
	}
	if !res.Accepted || res.State == nil {
		return nil, fmt.Errorf("state: %s %s", res.Code, res.Message)
	}
	return res.State, nil
}

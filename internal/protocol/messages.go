package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	GridSize        int         `json:"grid_size"`
	Catalog         DigestRef   `json:"catalog"`
	Shapes          []ShapeInfo `json:"shapes"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type ShapeInfo struct {
	Name         string   `json:"name"`
	Cells        [][3]int `json:"cells"`
	Orientations int      `json:"orientations"`
}

// RequestMsg carries every board request. Which fields are required depends on
// Type and is enforced by the request schema.
type RequestMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id,omitempty"`
	Shape           string  `json:"shape,omitempty"`
	Orientation     *int    `json:"orientation,omitempty"`
	Turns           *[3]int `json:"turns,omitempty"`
	Anchor          *[3]int `json:"anchor,omitempty"`
	PieceID         uint32  `json:"piece_id,omitempty"`
	Delta           *[3]int `json:"delta,omitempty"`
	OnlyAdjacent    bool    `json:"only_adjacent,omitempty"`
}

type PlacementInfo struct {
	Orientation int      `json:"orientation"`
	Anchor      [3]int   `json:"anchor"`
	Cells       [][3]int `json:"cells"`
}

type PieceInfo struct {
	ID          uint32   `json:"id"`
	Shape       string   `json:"shape"`
	Orientation int      `json:"orientation"`
	Anchor      [3]int   `json:"anchor"`
	Cells       [][3]int `json:"cells"`
}

type StateInfo struct {
	Size       int         `json:"size"`
	Encoding   string      `json:"encoding"`
	Data       string      `json:"data"`
	EmptyCount int         `json:"empty_count"`
	Pieces     []PieceInfo `json:"pieces"`
}

// RESULT (server -> client): the answer to one request.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	For             string `json:"for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	Shapes     []ShapeInfo     `json:"shapes,omitempty"`
	Placements []PlacementInfo `json:"placements,omitempty"`
	Anchors    [][3]int        `json:"anchors,omitempty"`
	Blocked    *bool           `json:"blocked,omitempty"`
	Touching   []uint32        `json:"touching,omitempty"`
	Touches    *bool           `json:"touches,omitempty"`
	TouchesTwo *bool           `json:"touches_two,omitempty"`
	Bridge     *PlacementInfo  `json:"bridge,omitempty"`
	Piece      *PieceInfo      `json:"piece,omitempty"`
	State      *StateInfo      `json:"state,omitempty"`
}

func NewResult(req BaseMessage) ResultMsg {
	return ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		ReqID:           req.ReqID,
		For:             req.Type,
		Accepted:        true,
	}
}

// Reject fills the failure fields of r.
func (r *ResultMsg) Reject(code, message string) {
	r.Accepted = false
	r.Code = code
	r.Message = message
}

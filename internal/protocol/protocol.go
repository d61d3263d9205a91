package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeResult  = "RESULT"

	TypeShapes      = "SHAPES"
	TypePlacements  = "PLACEMENTS"
	TypeBlocked     = "BLOCKED"
	TypeTouches     = "TOUCHES"
	TypeBridge      = "BRIDGE"
	TypePlace       = "PLACE"
	TypePlaceRandom = "PLACE_RANDOM"
	TypeRemove      = "REMOVE"
	TypeMove        = "MOVE"
	TypeReset       = "RESET"
	TypeDemo        = "DEMO"
	TypeState       = "STATE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsRequestType reports whether t is a board request a client may send after
// the handshake.
func IsRequestType(t string) bool {
	switch t {
	case TypeShapes, TypePlacements, TypeBlocked, TypeTouches, TypeBridge,
		TypePlace, TypePlaceRandom, TypeRemove, TypeMove, TypeReset, TypeDemo, TypeState:
		return true
	}
	return false
}

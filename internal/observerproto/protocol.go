package observerproto

import (
	"brickcube.ai/internal/protocol"
	"brickcube.ai/internal/sim/board"
)

// Version is the observer protocol version (separate from the client WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeEvent     = "EVENT"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Kinds limits the stream to these event kinds. Empty means all.
	Kinds []string `json:"kinds,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string             `json:"protocol_version"`
	SessionID       string             `json:"session_id"`
	GridSize        int                `json:"grid_size"`
	Shapes          []string           `json:"shapes"`
	State           protocol.StateInfo `json:"state"`
}

// Server -> Client. One per committed board mutation.
type EventMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Event           board.Event `json:"event"`
}

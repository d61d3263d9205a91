package board

import "time"

const (
	EventPlace  = "PLACE"
	EventRemove = "REMOVE"
	EventMove   = "MOVE"
	EventReset  = "RESET"
	EventLoad   = "LOAD"
)

// Event records one committed mutation.
type Event struct {
	SessionID   string    `json:"session_id"`
	Seq         uint64    `json:"seq"`
	Kind        string    `json:"kind"`
	PieceID     uint32    `json:"piece_id,omitempty"`
	Shape       string    `json:"shape,omitempty"`
	Orientation int       `json:"orientation,omitempty"`
	Anchor      [3]int    `json:"anchor"`
	Delta       *[3]int   `json:"delta,omitempty"` // MOVE only
	Pieces      int       `json:"pieces"`
	At          time.Time `json:"at"`
}

type Sink interface {
	RecordEvent(Event)
}

// MultiSink fans events out in order.
type MultiSink []Sink

func (m MultiSink) RecordEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.RecordEvent(e)
		}
	}
}

package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello  = "hello"
	InboundTypeJoin   = "join"
	InboundTypeLeave  = "leave"
	InboundTypeState  = "state"
	InboundTypeCursor = "cursor"
	InboundTypeResync = "resync"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventState      = "state"
	EventPresence   = "presence"
	EventCursor     = "cursor"
	EventCursorGone = "cursor_gone"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	User     string `json:"user,omitempty"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// UserInfo is the identity a client claims when it has no token.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// JoinData requests to join a board.
type JoinData struct {
	Board string    `json:"board"`
	Token string    `json:"token,omitempty"`
	User  *UserInfo `json:"user,omitempty"`
}

// LeaveData requests to leave a board.
type LeaveData struct {
	Board string `json:"board"`
}

// StateData replaces the whole element list of a board.
type StateData struct {
	Board    string          `json:"board"`
	Elements json.RawMessage `json:"elements"`
}

// CursorData reports the sender's pointer position.
type CursorData struct {
	Board string  `json:"board"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
	TS    int64   `json:"ts,omitempty"`
}

// ResyncData asks for the current state of a board.
type ResyncData struct {
	Board string `json:"board"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventStateData carries the full element list of a board.
type EventStateData struct {
	Board     string          `json:"board"`
	Elements  json.RawMessage `json:"elements"`
	Version   uint64          `json:"version"`
	UpdatedAt int64           `json:"updated_at,omitempty"`
	From      string          `json:"from,omitempty"`
}

// PresenceUser is one entry of the active users list.
type PresenceUser struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// EventPresenceData lists everyone currently on a board.
type EventPresenceData struct {
	Board string         `json:"board"`
	Users []PresenceUser `json:"users"`
}

// EventCursorData relays one peer's pointer.
type EventCursorData struct {
	Board  string  `json:"board"`
	ID     string  `json:"id"`
	UserID string  `json:"user_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Label  string  `json:"label,omitempty"`
	TS     int64   `json:"ts,omitempty"`
}

// EventCursorGoneData lists cursors to remove from the overlay.
type EventCursorGoneData struct {
	Board string   `json:"board"`
	IDs   []string `json:"ids"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

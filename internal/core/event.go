package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventState delivers the full element list of a board.
	EventState EventKind = iota
	// EventPresence delivers the current member list of a board.
	EventPresence
	// EventCursor relays one peer's pointer position.
	EventCursor
	// EventCursorGone lists cursors removed from the board overlay.
	EventCursorGone
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventPresence:
		return "presence"
	case EventCursor:
		return "cursor"
	case EventCursorGone:
		return "cursor_gone"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened on a board.
type Event struct {
	Kind  EventKind
	Board string
	// From is the connection that caused the event, if any.
	From      string
	Elements  []Element
	Version   uint64
	UpdatedAt time.Time
	Members   []Member
	Cursor    *CursorSample
	CursorIDs []string
	Error     *CoreError
}

func errorEvent(board string, err *CoreError) *Event {
	return &Event{Kind: EventError, Board: board, Error: err}
}

package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinBoard subscribes the client to a board's room.
	CommandJoinBoard CommandKind = iota
	// CommandLeaveBoard unsubscribes the client from its current board.
	CommandLeaveBoard
	// CommandSubmitState replaces the board's element list.
	CommandSubmitState
	// CommandReportCursor shares the client's pointer position with peers.
	CommandReportCursor
	// CommandResync asks for the board's current state.
	CommandResync

	commandSnapshot
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Board    string
	Identity Identity
	Elements []Element
	Cursor   CursorSample

	reply chan RoomSnapshot
}

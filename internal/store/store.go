package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account that can draw on boards.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Board is the persisted state of one whiteboard.
type Board struct {
	ID string
	// OwnerID is the user that first saved the board.
	OwnerID string
	// Elements is the JSON-encoded element list, stored verbatim.
	Elements  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a registered (non-guest) user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// BoardStore handles board persistence. Boards are keyed by id and every
// save overwrites the whole element list.
type BoardStore interface {
	// LoadBoard returns the stored board or ErrNotFound.
	LoadBoard(ctx context.Context, id string) (*Board, error)

	// SaveBoard overwrites the element list of a board, creating it if needed.
	// The owner is recorded on creation only.
	SaveBoard(ctx context.Context, id, ownerID string, elements []byte) error

	// ListBoards lists boards owned by a user, most recently updated first.
	ListBoards(ctx context.Context, ownerID string) ([]*Board, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	BoardStore

	// Close closes the underlying database connection.
	Close() error
}

// GuestEmail derives the display email of a guest account.
func GuestEmail(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "guest-" + short + "@guest.local"
}

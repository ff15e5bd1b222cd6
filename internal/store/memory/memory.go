package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/wireboard-server/internal/store"
)

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// MemoryStore implements store.Store in process memory.
// Values are copied on the way in and out so callers cannot alias stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]*store.User
	nextID int64
	boards map[string]*store.Board
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]*store.User),
		boards: make(map[string]*store.Board),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// CreateUser creates a new user with hashed password.
func (m *MemoryStore) CreateUser(_ context.Context, email, passwordHash string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return nil, fmt.Errorf("insert user: %w", ErrDuplicateEmail)
		}
	}
	return m.insertUser(&store.User{Email: email, PasswordHash: passwordHash}), nil
}

// CreateGuestUser creates a temporary guest user with session ID.
func (m *MemoryStore) CreateGuestUser(_ context.Context, sessionID string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertUser(&store.User{
		Email:     store.GuestEmail(sessionID),
		IsGuest:   true,
		SessionID: sessionID,
	}), nil
}

func (m *MemoryStore) insertUser(u *store.User) *store.User {
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	out := *u
	return &out
}

// GetUserByID retrieves a user by ID.
func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// GetUserByEmail retrieves a registered user by email.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email && !u.IsGuest {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user: %w", store.ErrNotFound)
}

// LoadBoard returns the stored board or store.ErrNotFound.
func (m *MemoryStore) LoadBoard(_ context.Context, id string) (*store.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.boards[id]
	if !ok {
		return nil, fmt.Errorf("board %q: %w", id, store.ErrNotFound)
	}
	return copyBoard(b), nil
}

// SaveBoard overwrites the element list of a board.
func (m *MemoryStore) SaveBoard(_ context.Context, id, ownerID string, elements []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	b, ok := m.boards[id]
	if !ok {
		b = &store.Board{ID: id, OwnerID: ownerID, CreatedAt: now}
		m.boards[id] = b
	}
	b.Elements = append([]byte(nil), elements...)
	b.UpdatedAt = now
	return nil
}

// ListBoards lists boards owned by a user, most recently updated first.
func (m *MemoryStore) ListBoards(_ context.Context, ownerID string) ([]*store.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	boards := make([]*store.Board, 0)
	for _, b := range m.boards {
		if b.OwnerID != ownerID {
			continue
		}
		out := copyBoard(b)
		out.Elements = nil
		boards = append(boards, out)
	}
	sort.Slice(boards, func(i, j int) bool {
		if !boards[i].UpdatedAt.Equal(boards[j].UpdatedAt) {
			return boards[i].UpdatedAt.After(boards[j].UpdatedAt)
		}
		return boards[i].ID < boards[j].ID
	})
	return boards, nil
}

func copyBoard(b *store.Board) *store.Board {
	out := *b
	out.Elements = append([]byte(nil), b.Elements...)
	return &out
}

var _ store.Store = (*MemoryStore)(nil)

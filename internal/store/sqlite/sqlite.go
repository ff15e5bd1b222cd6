package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/vovakirdan/wireboard-server/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (email, password_hash, is_guest)
		VALUES (?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (email, password_hash, is_guest, session_id)
		VALUES (?, '', 1, ?)
	`
	result, err := s.db.ExecContext(ctx, query, store.GuestEmail(sessionID), sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, email, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a registered user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE email = ? AND is_guest = 0
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== BoardStore implementation ====

// LoadBoard returns the stored board or store.ErrNotFound.
func (s *SQLiteStore) LoadBoard(ctx context.Context, id string) (*store.Board, error) {
	query := `
		SELECT id, owner_id, elements, created_at, updated_at
		FROM boards
		WHERE id = ?
	`
	var (
		board    store.Board
		elements string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID,
		&board.OwnerID,
		&elements,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("board %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query board: %w", err)
	}
	board.Elements = []byte(elements)
	return &board, nil
}

// SaveBoard overwrites the element list of a board.
func (s *SQLiteStore) SaveBoard(ctx context.Context, id, ownerID string, elements []byte) error {
	query := `
		INSERT INTO boards (id, owner_id, elements, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			elements   = excluded.elements,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, id, ownerID, string(elements), now, now); err != nil {
		return fmt.Errorf("save board: %w", err)
	}
	return nil
}

// ListBoards lists boards owned by a user, most recently updated first.
func (s *SQLiteStore) ListBoards(ctx context.Context, ownerID string) ([]*store.Board, error) {
	query := `
		SELECT id, owner_id, created_at, updated_at
		FROM boards
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	defer rows.Close()

	boards := make([]*store.Board, 0)
	for rows.Next() {
		var board store.Board
		if err := rows.Scan(&board.ID, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, &board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return boards, nil
}

var _ store.Store = (*SQLiteStore)(nil)

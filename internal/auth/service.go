package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/vovakirdan/wireboard-server/internal/store"
)

const maxEmailLength = 254

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email is malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnauthenticated is returned when a token cannot be resolved to an identity.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Identity is the authenticated user behind a token.
type Identity struct {
	UserID  string
	Email   string
	IsGuest bool
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// NormalizeEmail trims and lowercases an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.store.CreateUser(ctx, email, hashedPassword)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !PasswordMatches(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// CreateGuestUser creates a temporary guest user and returns a JWT token.
func (s *Service) CreateGuestUser(ctx context.Context) (token, sessionID string, err error) {
	sessionID, err = generateSessionID()
	if err != nil {
		return "", "", fmt.Errorf("generate session ID: %w", err)
	}

	user, err := s.store.CreateGuestUser(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("create guest user: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, user.ID, user.Email, true)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	return token, sessionID, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// Authenticate resolves a token to the identity shown in presence lists.
func (s *Service) Authenticate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return IdentityFromClaims(claims), nil
}

// User returns the stored account behind an identity.
func (s *Service) User(ctx context.Context, id Identity) (*store.User, error) {
	uid, err := strconv.ParseInt(id.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user id", ErrUnauthenticated)
	}
	return s.store.GetUserByID(ctx, uid)
}

// IdentityFromClaims converts token claims to an Identity.
func IdentityFromClaims(c *Claims) Identity {
	return Identity{
		UserID:  strconv.FormatInt(c.UserID, 10),
		Email:   c.Email,
		IsGuest: c.IsGuest,
	}
}

// generateSessionID generates a random session ID for guest users.
func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

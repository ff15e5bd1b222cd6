package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/auth"
	"github.com/vovakirdan/wireboard-server/internal/store"
)

// UserHandlers provides HTTP handlers for the current account.
type UserHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(authService *auth.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		authService: authService,
		log:         logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	IsGuest   bool   `json:"is_guest"`
	CreatedAt string `json:"created_at"`
}

// Me returns the authenticated account.
// GET /api/me
func (h *UserHandlers) Me(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		h.log.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.authService.User(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, auth.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "account no longer exists"})
			return
		}
		h.log.Error().Err(err).Str("user_id", id.UserID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		IsGuest:   user.IsGuest,
		CreatedAt: user.CreatedAt.UTC().Format(timeLayout),
	})
}

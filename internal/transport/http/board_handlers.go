package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/store"
	"github.com/vovakirdan/wireboard-server/internal/utils"
)

const timeLayout = time.RFC3339

// BoardHandlers provides HTTP handlers for board endpoints.
type BoardHandlers struct {
	hub    Hub
	store  store.BoardStore
	boards core.BoardPersister
	log    *zerolog.Logger
}

// NewBoardHandlers creates a new board handlers instance. boards serves
// reads of boards without a live room; it sees saves not yet flushed to st.
func NewBoardHandlers(hub Hub, st store.BoardStore, boards core.BoardPersister, logger *zerolog.Logger) *BoardHandlers {
	return &BoardHandlers{
		hub:    hub,
		store:  st,
		boards: boards,
		log:    logger,
	}
}

// BoardResponse represents a board in API responses.
type BoardResponse struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Elements  json.RawMessage `json:"elements,omitempty"`
	Version   uint64          `json:"version,omitempty"`
	Live      bool            `json:"live"`
	Members   int             `json:"members"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// CreateBoard registers a new empty board owned by the caller.
// POST /api/boards
func (h *BoardHandlers) CreateBoard(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boardID := utils.NewBoardID()
	if err := h.store.SaveBoard(c.Request.Context(), boardID, id.UserID, []byte("[]")); err != nil {
		h.log.Error().Err(err).Str("user_id", id.UserID).Msg("failed to create board")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("board", boardID).Str("owner_id", id.UserID).Msg("board created")
	now := formatTime(time.Now())
	c.JSON(http.StatusCreated, BoardResponse{
		ID:        boardID,
		OwnerID:   id.UserID,
		Elements:  json.RawMessage("[]"),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ListBoards lists boards owned by the caller.
// GET /api/boards
func (h *BoardHandlers) ListBoards(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	boards, err := h.store.ListBoards(c.Request.Context(), id.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", id.UserID).Msg("failed to list boards")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]BoardResponse, 0, len(boards))
	for _, b := range boards {
		response = append(response, BoardResponse{
			ID:        b.ID,
			OwnerID:   b.OwnerID,
			CreatedAt: formatTime(b.CreatedAt),
			UpdatedAt: formatTime(b.UpdatedAt),
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetBoard returns the current element list of a board. Live rooms answer
// from memory; other boards are read from storage. Unknown boards are empty.
// GET /api/boards/:id
func (h *BoardHandlers) GetBoard(c *gin.Context) {
	boardID, err := core.NormalizeBoardID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	ctx := c.Request.Context()

	if room, ok := h.hub.Room(boardID); ok {
		snap, err := room.Snapshot(ctx)
		if err == nil {
			h.writeBoard(c, BoardResponse{
				ID:        boardID,
				Version:   snap.Version,
				Live:      true,
				Members:   len(snap.Members),
				UpdatedAt: formatTime(snap.UpdatedAt),
			}, snap.Elements)
			return
		}
		h.log.Debug().Err(err).Str("board", boardID).Msg("room went away, reading storage")
	}

	elements, updatedAt, err := h.boards.Load(ctx, boardID)
	if err != nil {
		h.log.Error().Err(err).Str("board", boardID).Msg("failed to load board")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	resp := BoardResponse{ID: boardID, UpdatedAt: formatTime(updatedAt)}
	if b, err := h.store.LoadBoard(ctx, boardID); err == nil {
		resp.OwnerID = b.OwnerID
		resp.CreatedAt = formatTime(b.CreatedAt)
	} else if !errors.Is(err, store.ErrNotFound) {
		h.log.Warn().Err(err).Str("board", boardID).Msg("failed to read board metadata")
	}
	h.writeBoard(c, resp, elements)
}

func (h *BoardHandlers) writeBoard(c *gin.Context, resp BoardResponse, elements []core.Element) {
	data, err := core.EncodeElements(elements)
	if err != nil {
		h.log.Error().Err(err).Str("board", resp.ID).Msg("failed to encode board")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	resp.Elements = data
	c.JSON(http.StatusOK, resp)
}

// Stats reports live rooms and connections.
// GET /api/stats
func (h *BoardHandlers) Stats(c *gin.Context) {
	stats, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub is not running"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

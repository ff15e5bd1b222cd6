package http

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireboard-server/internal/auth"
	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/store"
)

// Hub is the part of core.Hub the transport depends on.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	Room(board string) (*core.Room, bool)
	Stats(ctx context.Context) (core.Stats, error)
}

// NewServer builds the HTTP server: REST endpoints under /api and the
// board session socket at /ws. The socket sits on the mux directly because
// gin's response writer cannot be hijacked once a handler chain has run.
func NewServer(
	hub Hub,
	authService *auth.Service,
	st store.Store,
	boards core.BoardPersister,
	cfg *config.Config,
	logger *zerolog.Logger,
) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	boardHandlers := NewBoardHandlers(hub, st, boards, logger)
	userHandlers := NewUserHandlers(authService, logger)

	api := router.Group("/api")
	api.GET("/stats", boardHandlers.Stats)

	apiHandlers := NewAPIHandlers(authService, logger)
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	protected.GET("/me", userHandlers.Me)
	protected.POST("/boards", boardHandlers.CreateBoard)
	protected.GET("/boards", boardHandlers.ListBoards)
	protected.GET("/boards/:id", boardHandlers.GetBoard)

	mux := http.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowCredentials = true
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/auth"
	"crewchat/internal/avatar"
	"crewchat/internal/config"
	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

// Deps bundles the components the HTTP surface is built from.
type Deps struct {
	Store      store.Store
	Auth       *auth.Service
	Registry   *realtime.Registry
	Dispatcher *realtime.Dispatcher
	Avatar     *avatar.Service
}

// NewRouter assembles the gin engine: health check, the ws endpoint, the
// credential endpoints and the authenticated API surface.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	wsHandler := NewWSHandler(deps.Registry, deps.Dispatcher, deps.Auth, cfg.Realtime.DevSubprotocol, logger)
	router.GET("/ws", wsHandler.Handle)

	authHandlers := NewAuthHandlers(deps.Auth, logger)
	workspaceHandlers := NewWorkspaceHandlers(deps.Store, deps.Dispatcher, logger)
	messageHandlers := NewMessageHandlers(deps.Store, deps.Dispatcher, deps.Avatar, logger)
	userHandlers := NewUserHandlers(deps.Store, deps.Dispatcher, logger)

	api := router.Group("/api")

	creds := api.Group("", rateLimitMiddleware(newRateLimiter(cfg.AuthRateLimit, time.Minute)))
	creds.POST("/register", authHandlers.Register)
	creds.POST("/login", authHandlers.Login)

	authed := api.Group("", AuthMiddleware(deps.Auth, logger))

	authed.GET("/users/me", userHandlers.GetMe)
	authed.PATCH("/users/me", userHandlers.UpdateProfile)
	authed.PUT("/users/me/status", userHandlers.UpdateStatus)

	authed.GET("/workspaces", workspaceHandlers.ListWorkspaces)
	authed.POST("/workspaces", workspaceHandlers.CreateWorkspace)
	authed.POST("/workspaces/:id/members", workspaceHandlers.AddMember)
	authed.GET("/workspaces/:id/channels", workspaceHandlers.ListChannels)
	authed.POST("/workspaces/:id/channels", workspaceHandlers.CreateChannel)
	authed.POST("/workspaces/:id/channels/direct", workspaceHandlers.CreateDirectChannel)

	authed.PATCH("/channels/:id", workspaceHandlers.UpdateChannel)
	authed.POST("/channels/:id/archive", workspaceHandlers.ArchiveChannel)
	authed.GET("/channels/:id/messages", messageHandlers.ListMessages)
	authed.POST("/channels/:id/messages", messageHandlers.CreateMessage)
	authed.GET("/channels/:id/pins", messageHandlers.ListPins)

	authed.DELETE("/messages/:id", messageHandlers.DeleteMessage)
	authed.POST("/messages/:id/reactions", messageHandlers.AddReaction)
	authed.DELETE("/messages/:id/reactions/:emoji", messageHandlers.RemoveReaction)
	authed.POST("/messages/:id/pin", messageHandlers.PinMessage)
	authed.DELETE("/messages/:id/pin", messageHandlers.UnpinMessage)
	authed.POST("/messages/:id/attachments", messageHandlers.AddAttachment)
	authed.GET("/messages/:id/attachments", messageHandlers.ListAttachments)

	return router
}

// NewServer builds an HTTP server around the assembled router.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

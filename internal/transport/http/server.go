package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// Server is the HTTP server together with the WebSocket handler it serves.
type Server struct {
	*http.Server
	ws *WSHandler
}

// NewServer builds the HTTP server. The WebSocket endpoint is mounted on the
// plain mux so upgrades hijack the raw connection; everything else goes to gin.
func NewServer(svc *core.Service, hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *Server {
	ws := NewWSHandler(svc, hub, cfg, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", NewRouter(svc, hub, logger))

	return &Server{
		Server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ws: ws,
	}
}

// WaitConnections blocks until every WebSocket connection has finished its cleanup or ctx is done.
// Shutdown does not track hijacked connections, so call this before closing the store.
func (s *Server) WaitConnections(ctx context.Context) error {
	return s.ws.Wait(ctx)
}

// NewRouter builds the gin engine serving the health check and the read-only room API.
func NewRouter(svc *core.Service, hub *core.Hub, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	rooms := NewRoomHandlers(svc, hub, logger)
	api := router.Group("/api")
	{
		api.GET("/stats", rooms.Stats)
		api.GET("/rooms/:id", rooms.GetRoom)
		api.GET("/rooms/:id/members", rooms.ListMembers)
		api.GET("/rooms/:id/messages", rooms.ListMessages)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yemishi/chatteroo-server/internal/config"
	"github.com/yemishi/chatteroo-server/internal/core"
	"github.com/yemishi/chatteroo-server/internal/store"
)

// NewServer builds an HTTP server: REST routes on gin, the websocket endpoint on a plain mux.
// st may be nil, in which case only the presence and websocket routes are registered.
func NewServer(hub *core.Hub, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, st, logger)

	router.GET("/health", healthHandler)
	router.GET("/api/online", api.OnlineUsers)
	if st != nil {
		router.GET("/api/chats/:chatId", api.GetChat)
		router.GET("/api/chats/:chatId/messages", api.ChatHistory)
		router.GET("/api/messages/:messageId", api.GetMessage)
	}

	// /ws stays outside gin: its writer refuses the hijack an upgrade needs.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

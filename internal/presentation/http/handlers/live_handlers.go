package handlers

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/messaging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
)

// LiveHandlers upgrade /ws/live requests onto the live hub.
type LiveHandlers struct {
	hub      *messaging.LiveHub
	upgrader websocket.Upgrader
	logger   *logging.ChanneledLogger
}

// NewLiveHandlers creates live feed handlers. Cross-origin upgrades are
// accepted only from allowedOrigins.
func NewLiveHandlers(hub *messaging.LiveHub, allowedOrigins []string, logger *logging.ChanneledLogger) *LiveHandlers {
	return &LiveHandlers{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if slices.Contains(allowedOrigins, origin) {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// ServeLive handles GET /ws/live
func (h *LiveHandlers) ServeLive(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Live().Debug("Websocket upgrade failed", "error", err.Error(), "remote", c.ClientIP())
		return
	}
	h.hub.Serve(messaging.NewLiveClient(conn))
}

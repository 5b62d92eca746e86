package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/imuhira/backend/internal/logger"
	"github.com/imuhira/backend/internal/models"
)

// Handler upgrades public live feed connections
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	allowedOrigins []string
	log            *logger.Logger
}

// NewHandler creates a new WebSocket handler. An empty allowedOrigins accepts
// every origin; config.Load never yields one, so only tests rely on it.
func NewHandler(hub *Hub, allowedOrigins []string, log *logger.Logger) *Handler {
	h := &Handler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		log:            log.With("handler", "WebSocketHandler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, pattern := range h.allowedOrigins {
		if matchOrigin(pattern, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the request and subscribes it to debate events
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.Warn("Failed to upgrade connection", "error", err, "origin", c.GetHeader("Origin"))
		return
	}

	client := NewClient(h.hub, conn, h.log)
	if !h.hub.Register(client) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(models.WSMessage{
			Event:   models.EventError,
			Payload: models.WSErrorPayload{Message: "Server is shutting down", Code: "unavailable"},
		})
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// Stats reports how many live feed clients this instance serves
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clients": h.hub.ClientCount()})
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}

	originHost := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		originHost = u.Hostname()
	}
	// "*.example.com" matches sub.example.com but not badexample.com
	suffix := strings.TrimPrefix(pattern, "*")
	return strings.HasSuffix(originHost, suffix)
}

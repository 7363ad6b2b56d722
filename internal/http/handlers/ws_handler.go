// README: Websocket endpoint; subscribes the connection to the event hub.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fleetops/internal/events"
)

type WSHandler struct {
	hub *events.Hub
	log zerolog.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(hub *events.Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the connection and holds it until the client goes away.
// Clients only listen; inbound messages are drained and discarded.
func (h *WSHandler) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.Subscribe(conn)
	defer h.hub.Unsubscribe(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

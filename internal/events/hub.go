// README: Websocket hub; explicit subscriber registry with thread-safe add/remove/publish.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultWriteTimeout = 5 * time.Second

// Hub fans events out to connected websocket clients. It owns the subscriber
// list for the process lifetime; writes are serialized under the hub lock so
// no two goroutines write the same connection at once. Each write carries a
// deadline so a stalled client cannot block publishing for everyone else.
type Hub struct {
	mu           sync.Mutex
	clients      map[*websocket.Conn]struct{}
	log          zerolog.Logger
	writeTimeout time.Duration
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]struct{}),
		log:          log,
		writeTimeout: defaultWriteTimeout,
	}
}

func (h *Hub) Subscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	h.log.Debug().Int("subscribers", len(h.clients)).Msg("websocket client subscribed")
}

func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Publish sends the event to every connected client. A client whose write
// fails is dropped; nobody retries.
func (h *Hub) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("event", e.Name).Msg("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Warn().Err(err).Msg("dropping websocket client")
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Subscribers reports the current client count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

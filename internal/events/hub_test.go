// README: Hub fan-out tests with real websocket connections.
package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// dialPair spins up a server that registers every incoming connection on the
// hub and returns a connected client.
func dialPair(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := dialPair(t, hub)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(Event{Name: TripDispatched, Entity: "trip", EntityID: "t1"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Equal(t, TripDispatched, got.Name)
	require.Equal(t, "t1", got.EntityID)
}

func TestHubDropsDeadSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := dialPair(t, hub)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	client.Close()
	// Writes to a closed peer eventually fail; the hub evicts on failure.
	require.Eventually(t, func() bool {
		hub.Publish(Event{Name: TripCreated, Entity: "trip", EntityID: "t2"})
		return hub.Subscribers() == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestHubEvictsStalledSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.writeTimeout = 50 * time.Millisecond
	dialPair(t, hub)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	// The client never reads. Large payloads fill its buffers until a write
	// misses the deadline, at which point the hub evicts it.
	data := strings.Repeat("x", 1<<16)
	require.Eventually(t, func() bool {
		hub.Publish(Event{Name: VehicleUpdated, Entity: "vehicle", EntityID: "v", Data: data})
		return hub.Subscribers() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(Event{Name: VehicleUpdated, Entity: "vehicle", EntityID: "v"})
			}
		}()
	}
	wg.Wait()
	require.Zero(t, hub.Subscribers())
}

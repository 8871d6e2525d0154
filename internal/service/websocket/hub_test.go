package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chitcam/internal/logger"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()

	hub := NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, hub.GetClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesViewers(t *testing.T) {
	hub, server := startHub(t)
	a := dial(t, server)
	b := dial(t, server)
	waitClients(t, hub, 2)

	if !hub.Broadcast([]byte(`{"seq":1}`)) {
		t.Fatal("Broadcast should be accepted by an idle hub")
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read broadcast: %v", err)
		}
		if string(msg) != `{"seq":1}` {
			t.Errorf("Unexpected message %s", msg)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, server := startHub(t)
	dial(t, server)
	waitClients(t, hub, 1)

	hub.mutex.RLock()
	var conn *websocket.Conn
	for c := range hub.clients {
		conn = c
	}
	hub.mutex.RUnlock()

	hub.Unregister(conn)
	waitClients(t, hub, 0)
}

func TestHub_BroadcastDropsWhenBusy(t *testing.T) {
	// Not running, so the single slot fills up.
	hub := NewHubService(logger.Discard())

	if !hub.Broadcast([]byte("a")) {
		t.Fatal("First broadcast should fill the slot")
	}
	if hub.Broadcast([]byte("b")) {
		t.Error("Second broadcast should be dropped")
	}

	st := hub.Stats()
	if st.Broadcasts != 1 || st.Dropped != 1 || st.Clients != 0 {
		t.Errorf("Unexpected stats %+v", st)
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

type keyRecorder struct {
	mu   sync.Mutex
	keys []input.Key
	err  error
}

func (r *keyRecorder) handle(ctx context.Context, sessionID string, key input.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return r.err
}

func (r *keyRecorder) received() []input.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]input.Key(nil), r.keys...)
}

// startHub runs a hub behind an httptest server that takes the session from
// the query string
func startHub(t *testing.T, keys KeyHandler) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(keys)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	before := hub.Clients(sessionID)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients(sessionID) == before {
		if time.Now().After(deadline) {
			t.Fatal("Client was not registered")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message %q: %v", data, err)
	}
	return msg
}

func waitKeys(t *testing.T, r *keyRecorder, n int) []input.Key {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		keys := r.received()
		if len(keys) >= n {
			return keys
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d keys, got %d", n, len(keys))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialized")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, 256),
	}

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil)

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, 256),
	}

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Empty session should be removed")
	}
	if _, ok := <-client.send; ok {
		t.Error("Client send channel should be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubBroadcastMessageDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)

	slow := &Client{hub: hub, sessionID: "s1", send: make(chan []byte)}
	fast := &Client{hub: hub, sessionID: "s1", send: make(chan []byte, 1)}
	hub.registerClient(slow)
	hub.registerClient(fast)

	hub.broadcastMessage(&Message{SessionID: "s1", Event: "frame"})

	if hub.sessions["s1"][slow] {
		t.Error("Expected slow client to be dropped")
	}
	if !hub.sessions["s1"][fast] {
		t.Error("Expected fast client to stay registered")
	}
	if len(fast.send) != 1 {
		t.Errorf("Expected 1 queued message, got %d", len(fast.send))
	}
}

func TestKeyMessageResolve(t *testing.T) {
	tests := []struct {
		msg  KeyMessage
		want input.Key
	}{
		{KeyMessage{Code: 40}, input.KeyDown},
		{KeyMessage{Key: "ArrowLeft"}, input.KeyLeft},
		{KeyMessage{Key: "up"}, input.KeyUp},
		{KeyMessage{Key: "ArrowRight", Code: 38}, input.KeyUp},
		{KeyMessage{Key: "Enter"}, input.KeyUnknown},
	}
	for _, tt := range tests {
		if got := tt.msg.Resolve(); got != tt.want {
			t.Errorf("Expected %+v to resolve to %s, got %s", tt.msg, tt.want, got)
		}
	}
}

func TestHubBroadcastFrame(t *testing.T) {
	hub, srv, _ := startHub(t, nil)

	watcher := dial(t, hub, srv, "ab12")
	other := dial(t, hub, srv, "cd34")

	frame := &service.Frame{
		SessionID: "ab12",
		Board:     "h\n",
		Tick:      3,
		Snapshot:  harness.Snapshot{Snake: []int{1, 1}, Score: 2},
	}
	hub.BroadcastFrame("ab12", frame)

	msg := readMessage(t, watcher)
	if msg.Event != "frame" || msg.SessionID != "ab12" {
		t.Errorf("Expected frame event for ab12, got %+v", msg)
	}
	if msg.Frame == nil || msg.Frame.Tick != 3 || msg.Frame.Snapshot.Score != 2 {
		t.Errorf("Unexpected frame: %+v", msg.Frame)
	}

	// The other session sees nothing
	other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Expected no message for another session")
	}
}

func TestHubForwardsKeys(t *testing.T) {
	rec := &keyRecorder{}
	hub, srv, _ := startHub(t, rec.handle)
	conn := dial(t, hub, srv, "ab12")

	conn.WriteJSON(map[string]interface{}{"code": 40})
	conn.WriteJSON(map[string]interface{}{"key": "ArrowLeft"})

	keys := waitKeys(t, rec, 2)
	if keys[0] != input.KeyDown || keys[1] != input.KeyLeft {
		t.Errorf("Expected [ArrowDown ArrowLeft], got %v", keys)
	}
}

func TestHubReportsKeyErrors(t *testing.T) {
	rec := &keyRecorder{err: errors.New("unsupported key")}
	hub, srv, _ := startHub(t, rec.handle)
	conn := dial(t, hub, srv, "ab12")

	conn.WriteJSON(map[string]interface{}{"key": "Enter"})
	msg := readMessage(t, conn)
	if msg.Event != "error" || !strings.Contains(msg.Error, "unsupported key") {
		t.Errorf("Expected error event, got %+v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	msg = readMessage(t, conn)
	if msg.Event != "error" || msg.Error != "invalid message" {
		t.Errorf("Expected invalid message error, got %+v", msg)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t, nil)
	conn := dial(t, hub, srv, "ab12")

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to close on shutdown")
	}
	if n := hub.Clients("ab12"); n != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", n)
	}

	// Broadcasting after shutdown must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.BroadcastEvent("ab12", "noop")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("BroadcastEvent blocked after shutdown")
	}
}

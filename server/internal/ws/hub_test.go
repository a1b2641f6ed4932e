package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/formcheck/formcheck/pkg/types"
	"github.com/formcheck/formcheck/server/internal/api"
	"github.com/formcheck/formcheck/server/internal/store"
	wsHub "github.com/formcheck/formcheck/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(recs ...*types.AnalysisRecord) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range recs {
		st.Put(r)
	}
	return st
}

func record(id string, score int) *types.AnalysisRecord {
	return &types.AnalysisRecord{SessionID: id, Exercise: "default", FormScore: score, Valid: true}
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(api.New(st, nil), testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// waitCount polls hub.Count until it equals want or a second passes.
func waitCount(hub *wsHub.Hub, want int) int {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && hub.Count() != want {
		time.Sleep(5 * time.Millisecond)
	}
	return hub.Count()
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(record("patient-1", 90)))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "snapshot" {
		t.Errorf("event: got %v, want snapshot", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Sessions) != 1 || m.Data.Sessions[0].SessionID != "patient-1" {
		t.Errorf("sessions: got %+v", m.Data.Sessions)
	}
	if m.Data.Health.SessionCount != 1 {
		t.Errorf("health.session_count: got %d, want 1", m.Data.Health.SessionCount)
	}
}

func TestHub_EmptyStore_EmptySessions(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	conn := dial(t, wsURL)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(data), `"sessions":[]`) {
		t.Errorf("sessions: want empty array, got %s", data)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	for i := 0; i < 3; i++ {
		readMessage(t, dial(t, wsURL))
	}
	if n := waitCount(hub, 3); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	if n := waitCount(hub, 1); n != 1 {
		t.Fatalf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	if n := waitCount(hub, 0); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate snapshot, empty store

	st.Put(record("new-session", 75))

	// A tick may already be in flight; read until the new session shows up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Sessions) == 1 {
			if got := m.Data.Sessions[0]; got.SessionID != "new-session" || got.FormScore != 75 {
				t.Errorf("session: got %+v", got)
			}
			return
		}
	}
	t.Fatal("no broadcast carried the new session")
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(hub, 1)

	cancel()

	if n := waitCount(hub, 0); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
	// The server sends a close frame, so reads eventually fail.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(api.New(newStore(), nil), testInterval)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

package live

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0), nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("player"))
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestPublishTargetsPlayer(t *testing.T) {
	hub, server := newTestHub(t)
	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	waitClients(t, hub, 2)

	hub.Publish(Event{Type: EventSpin, Player: "alice", Data: map[string]int{"nonce": 9}})
	hub.Publish(Event{Type: EventJackpot, Data: "everyone"})

	if ev := readEvent(t, alice); ev.Type != EventSpin {
		t.Errorf("alice first event = %s, want %s", ev.Type, EventSpin)
	}
	if ev := readEvent(t, alice); ev.Type != EventJackpot {
		t.Errorf("alice second event = %s", ev.Type)
	}
	// bob never sees alice's spin.
	if ev := readEvent(t, bob); ev.Type != EventJackpot {
		t.Errorf("bob event = %s, want %s", ev.Type, EventJackpot)
	}
}

func TestPingPong(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "alice")
	waitClients(t, hub, 1)

	if err := conn.WriteJSON(map[string]string{"type": "PING"}); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, conn); ev.Type != EventPong || ev.Player != "alice" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "alice")
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)
}

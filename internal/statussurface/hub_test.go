package statussurface

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastDeliversToConnectedClient(t *testing.T) {
	s := New(Options{EventsEnabled: true}, nil, nil)
	srv := httptest.NewServer(httpHandlerFunc(s.handleEvents))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the server goroutine a moment to register the client
	time.Sleep(20 * time.Millisecond)
	s.RecordDiscovery(9, time.Now())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(payload), `"discovery"`) {
		t.Fatalf("expected discovery event, got %s", payload)
	}
}

func TestHubBroadcastDisconnectsFullClient(t *testing.T) {
	// A loopback websocket gives the hub a live *websocket.Conn whose
	// Close the disconnect path can call.
	srv := httptest.NewServer(httpHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer serverConn.Close()
		for {
			if _, _, err := serverConn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	h := newHub()
	c := &client{conn: conn, send: make(chan []byte)} // unbuffered, nobody draining it
	h.register(c)

	h.broadcast(wireEvent{Kind: "discovery"})

	h.mu.Lock()
	_, stillRegistered := h.clients[c]
	h.mu.Unlock()
	if stillRegistered {
		t.Fatal("expected a client with a full send queue to be removed from the hub")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("expected send channel to be closed after disconnect")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := newHub()
	c := &client{send: make(chan []byte, 1)}
	h.register(c)
	h.unregister(c)
	if _, ok := <-c.send; ok {
		t.Fatal("expected send channel to be closed after unregister")
	}
}

type httpHandlerFunc func(w http.ResponseWriter, r *http.Request)

func (f httpHandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) { f(w, r) }

package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"enocean-go-home/internal/gateway"

	"nhooyr.io/websocket"
)

func newTestHub() *WSHub {
	return NewWSHub(testLogger())
}

func clientCount(h *WSHub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func TestWSHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	client := &wsClient{send: make(chan []byte, 16)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	if n := clientCount(hub); n != 1 {
		t.Errorf("after register: count = %d, want 1", n)
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	if n := clientCount(hub); n != 0 {
		t.Errorf("after unregister: count = %d, want 0", n)
	}
}

func TestWSHubBroadcastFiltersByType(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	all := &wsClient{send: make(chan []byte, 16)}
	channels := &wsClient{send: make(chan []byte, 16), types: parseEventTypes("channel_update")}
	hub.register <- all
	hub.register <- channels
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(gateway.Event{Type: gateway.EventTelegramReceived, Data: map[string]interface{}{"chip_id": "FEF36A01"}})
	hub.Broadcast(gateway.Event{Type: gateway.EventChannelUpdate, Data: map[string]interface{}{"channel": "switchA"}})
	time.Sleep(20 * time.Millisecond)

	if got := len(all.send); got != 2 {
		t.Errorf("unfiltered client got %d messages, want 2", got)
	}
	if got := len(channels.send); got != 1 {
		t.Fatalf("filtered client got %d messages, want 1", got)
	}

	var ev gateway.Event
	if err := json.Unmarshal(<-channels.send, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != gateway.EventChannelUpdate {
		t.Errorf("type = %q, want channel_update", ev.Type)
	}
}

func TestParseEventTypes(t *testing.T) {
	if parseEventTypes("") != nil || parseEventTypes(" , ") != nil {
		t.Error("empty filter should forward everything")
	}
	types := parseEventTypes("channel_update, device_added,")
	if len(types) != 2 || !types["channel_update"] || !types["device_added"] {
		t.Errorf("types = %v", types)
	}
}

func TestWSHubSlowClientEviction(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	slow := &wsClient{send: make(chan []byte, 1)}
	fast := &wsClient{send: make(chan []byte, 64)}
	hub.register <- slow
	hub.register <- fast
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(gateway.Event{Type: "a"})
	time.Sleep(10 * time.Millisecond)
	hub.Broadcast(gateway.Event{Type: "b"})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	_, slowPresent := hub.clients[slow]
	_, fastPresent := hub.clients[fast]
	hub.mu.RUnlock()

	if slowPresent {
		t.Error("slow client should have been evicted")
	}
	if !fastPresent {
		t.Error("fast client should still be present")
	}
}

func TestWSHubBroadcastDropsWhenFull(t *testing.T) {
	hub := newTestHub()
	defer hub.Stop()

	// Hub loop not running: the queue fills and further events are dropped.
	for i := 0; i < 256; i++ {
		hub.Broadcast(gateway.Event{Type: "fill"})
	}

	done := make(chan struct{})
	go func() {
		hub.Broadcast(gateway.Event{Type: "overflow"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Broadcast blocked when channel is full")
	}
}

func TestWSHubStopClosesClients(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := &wsClient{send: make(chan []byte, 16)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Stop()
	hub.Stop()
	time.Sleep(10 * time.Millisecond)

	if _, ok := <-client.send; ok {
		t.Error("client.send should be closed after hub stop")
	}
}

func TestWSStreamsGatewayEvents(t *testing.T) {
	srv, db, _ := setupTestServer(t, "")
	seedDevice(t, db, "FEF36A01", "F6-02-01", "")

	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?types=channel_update"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for clientCount(srv.wsHub) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if w := do(srv, "POST", "/api/telegrams", `{"telegram":"`+rockerPress+`"}`); w.Code != 200 {
		t.Fatalf("ingest status = %d", w.Code)
	}

	_, msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "channel_update" || ev.Data["chip_id"] != "FEF36A01" || ev.Data["value"] != "ON" {
		t.Errorf("event = %+v", ev)
	}
}

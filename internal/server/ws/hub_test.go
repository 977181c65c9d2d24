package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tpwatch/internal/bus"
	"github.com/alanyoungcy/tpwatch/internal/domain"
)

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type got %d, want text", kind)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestHub_streamsFilteredPriceEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewLocal()
	hub := NewHub(b, "server", slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if status := readJSON(t, conn); status["event"] != "status" || status["mode"] != "server" {
		t.Fatalf("status got %v", status)
	}

	if err := conn.WriteJSON(filterMsg{Action: "subscribe", Items: []uint32{2}}); err != nil {
		t.Fatalf("write filter: %v", err)
	}

	// The filter is applied asynchronously, so keep publishing until an
	// event for item 2 comes through.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = b.Publish(ctx, domain.ChannelPrices, []byte(`{"event":"price_recorded","item_id":1}`))
		_ = b.Publish(ctx, domain.ChannelPrices, []byte(`{"event":"price_recorded","item_id":2}`))

		got := readJSON(t, conn)
		if got["item_id"] == float64(2) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never received an event for item 2")
}

func TestHub_clientGoroutinesExitAfterRunStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(bus.NewLocal(), "server", slog.New(slog.NewTextHandler(io.Discard, nil)))
	runDone := make(chan error, 1)
	go func() { runDone <- hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readJSON(t, conn) // status

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	// The server closes the connection; once the client sees that, both
	// pumps must have been able to finish.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.pumps.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d client goroutines still running", hub.pumps.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// New connections after shutdown are closed instead of blocking.
	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial after shutdown: %v", err)
	}
	defer late.Close()
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("expected the late connection to be closed")
	}
}

func TestClient_filter(t *testing.T) {
	t.Parallel()

	c := &client{items: make(map[uint32]bool)}
	if !c.wants(5) {
		t.Fatalf("empty filter should accept everything")
	}
	c.applyFilter(filterMsg{Action: "subscribe", Items: []uint32{1, 2}})
	if c.wants(5) || !c.wants(1) {
		t.Fatalf("subscribe filter wrong: %v", c.items)
	}
	c.applyFilter(filterMsg{Action: "unsubscribe", Items: []uint32{1, 2}})
	if !c.wants(5) {
		t.Fatalf("filter not cleared: %v", c.items)
	}
}

package signal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Tocata/internal/core"
	"github.com/gorilla/websocket"
)

// serverConn returns the server side of a fresh WebSocket with no pumps running.
func serverConn(t *testing.T, buffer int) *WsConn {
	t.Helper()
	got := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		got <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case ws := <-got:
		return &WsConn{id: "c1", conn: ws, send: make(chan outbound, buffer), writeTimeout: time.Second}
	case <-time.After(2 * time.Second):
		t.Fatal("server never upgraded")
	}
	return nil
}

func TestTrySendBackpressureAndClose(t *testing.T) {
	c := serverConn(t, 1)

	if err := c.TrySend(core.Frame(`{"type":"Chat"}`)); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.TrySendBinary(core.Frame{1}); !errors.Is(err, core.ErrBackpressure) {
		t.Fatalf("expected ErrBackpressure, got %v", err)
	}
	if msg := <-c.send; msg.kind != websocket.TextMessage {
		t.Fatalf("queued kind %d", msg.kind)
	}
	if err := c.TrySendBinary(core.Frame{1}); err != nil {
		t.Fatalf("send after drain: %v", err)
	}
	if msg := <-c.send; msg.kind != websocket.BinaryMessage {
		t.Fatalf("queued kind %d", msg.kind)
	}

	c.Close()
	c.Close()
	if err := c.TrySend(core.Frame("{}")); !errors.Is(err, core.ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
	if err := c.Ping(); !errors.Is(err, core.ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed from Ping, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.ReadLimit != DefaultReadLimit || o.SendBuffer != DefaultSendBuffer || o.WriteTimeout != DefaultWriteTimeout {
		t.Fatalf("unexpected defaults %+v", o)
	}
}

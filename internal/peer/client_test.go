package peer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Floods the client with more frames than its inbound buffer holds, then
// closes it without ever draining. The read pump must still exit (it closes
// Incoming on the way out) instead of hanging on the full buffer.
func TestCloseUnblocksUndrainedReadPump(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for i := 0; i < 64; i++ {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)); err != nil {
				return
			}
		}
		// Keep the connection up until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewSignalClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Give the read pump time to fill the buffer and block on the overflow.
	time.Sleep(50 * time.Millisecond)
	c.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("read pump still running after Close")
		}
	}
}

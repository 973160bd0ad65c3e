// Package peer implements the client side: the websocket signaling client,
// the negotiation controller that drives offer/answer/candidate exchange,
// and the session that runs the playback and call engines over the
// resulting data channels.
package peer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// InboundSignal is one frame from the coordinator: the dispatch type plus
// the raw bytes so handlers can re-decode the payload they expect.
type InboundSignal struct {
	Type string
	Raw  []byte
}

// SignalClient manages the websocket connection to the coordinator.
type SignalClient struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan InboundSignal
	outgoing  chan []byte
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewSignalClient(serverURL string) *SignalClient {
	return &SignalClient{
		serverURL: serverURL,
		incoming:  make(chan InboundSignal, 16),
		outgoing:  make(chan []byte, 16),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *SignalClient) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// Join sends the join request. The acknowledgment arrives on Incoming as a
// "joined" frame together with everything else the coordinator pushes.
func (c *SignalClient) Join(roomID string) error {
	return c.Send(protocol.JoinRequest{Type: protocol.SignalJoin, RoomID: roomID})
}

func (c *SignalClient) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("signal client closed")
	}
	select {
	case c.outgoing <- b:
		return nil
	case <-c.done:
		return fmt.Errorf("signal client closed")
	}
}

// Incoming delivers coordinator frames in arrival order. The channel closes
// when the connection dies.
func (c *SignalClient) Incoming() <-chan InboundSignal {
	return c.incoming
}

func (c *SignalClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
}

func (c *SignalClient) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "peer.signal").Msg("read pump exit")
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "peer.signal").Msg("bad frame")
			continue
		}
		select {
		case c.incoming <- InboundSignal{Type: env.Type, Raw: data}:
		case <-c.done:
			// Nobody is draining anymore; don't strand this goroutine on a
			// full buffer.
			return
		}
	}
}

func (c *SignalClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

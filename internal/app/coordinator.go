// Package app holds the transport-free coordinator logic: two-party room
// admission, negotiation relay routing and disconnect bookkeeping. The
// websocket adapter owns connections; this package only pushes frames at
// them through the Conn interface.
package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

// ClientID identifies one participant connection to the coordinator.
type ClientID string

// Conn abstracts the signaling transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	TrySend([]byte) error
}

// JoinResult mirrors the join acknowledgment sent back to the caller.
type JoinResult struct {
	OK                bool
	Error             string
	ShouldCreateOffer bool
	Clients           int
}

type member struct {
	conn Conn
	room domain.RoomID // "" while not in a room
}

// Coordinator admits participants into two-party rooms and forwards
// negotiation payloads between room mates. It never inspects those payloads,
// so the peer protocol can evolve without touching the coordinator.
type Coordinator struct {
	mu      sync.Mutex
	members map[ClientID]*member
	rooms   map[domain.RoomID]map[ClientID]struct{}
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		members: make(map[ClientID]*member),
		rooms:   make(map[domain.RoomID]map[ClientID]struct{}),
	}
}

// Register binds a freshly accepted connection. A client has no room until
// it joins one.
func (c *Coordinator) Register(id ClientID, conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[id] = &member{conn: conn}
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Msg("client registered")
}

// Join admits the caller into a room. The second arrival is told to create
// the negotiation offer (the first has nobody to negotiate with yet); the
// remaining occupant learns about the arrival via peer-joined.
//
// A join while already in a room first leaves the old one, notifying any
// peer there, which matches what a page refresh looks like to the server.
func (c *Coordinator) Join(id ClientID, roomID domain.RoomID) JoinResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[id]
	if !ok {
		return JoinResult{OK: false, Error: "unknown client"}
	}
	if roomID == "" {
		return JoinResult{OK: false, Error: domain.ErrNoRoomID.Error()}
	}

	occupants := c.rooms[roomID]
	if len(occupants) >= domain.MaxRoomOccupancy {
		log.Warn().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(roomID)).Msg("join rejected, room full")
		return JoinResult{OK: false, Error: domain.ErrRoomFull.Error()}
	}

	if m.room != "" {
		c.leaveLocked(id, m)
		occupants = c.rooms[roomID]
	}

	if occupants == nil {
		occupants = make(map[ClientID]struct{})
		c.rooms[roomID] = occupants
	}
	prior := len(occupants)
	occupants[id] = struct{}{}
	m.room = roomID

	if prior == 1 {
		c.notifyOther(id, roomID, protocol.SignalPeerJoined)
	}

	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Str("room", string(roomID)).Int("clients", prior+1).Msg("joined room")
	return JoinResult{OK: true, ShouldCreateOffer: prior == 1, Clients: prior + 1}
}

// Relay forwards a raw negotiation frame to the other occupant of the
// caller's room. A no-op when the caller is alone or roomless; the payload
// is opaque here.
func (c *Coordinator) Relay(id ClientID, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[id]
	if !ok || m.room == "" {
		return
	}
	for other := range c.rooms[m.room] {
		if other == id {
			continue
		}
		if peer, ok := c.members[other]; ok {
			if err := peer.conn.TrySend(raw); err != nil {
				log.Warn().Err(err).Str("module", "app.coordinator").Str("cid", string(other)).Msg("relay dropped")
			}
		}
	}
}

// Disconnect removes the client entirely. The remaining occupant, if any,
// gets exactly one peer-disconnected; an emptied room simply disappears
// from the registry.
func (c *Coordinator) Disconnect(id ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.members[id]
	if !ok {
		return
	}
	if m.room != "" {
		c.leaveLocked(id, m)
	}
	delete(c.members, id)
	log.Info().Str("module", "app.coordinator").Str("cid", string(id)).Msg("client disconnected")
}

// Occupancy reports the current member count of a room.
func (c *Coordinator) Occupancy(roomID domain.RoomID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms[roomID])
}

func (c *Coordinator) leaveLocked(id ClientID, m *member) {
	roomID := m.room
	c.notifyOther(id, roomID, protocol.SignalPeerDisconnected)
	delete(c.rooms[roomID], id)
	if len(c.rooms[roomID]) == 0 {
		delete(c.rooms, roomID)
		log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).Msg("room empty, cleaned up")
	}
	m.room = ""
}

func (c *Coordinator) notifyOther(id ClientID, roomID domain.RoomID, event string) {
	raw, err := json.Marshal(protocol.Event{Type: event})
	if err != nil {
		return
	}
	for other := range c.rooms[roomID] {
		if other == id {
			continue
		}
		if peer, ok := c.members[other]; ok {
			_ = peer.conn.TrySend(raw)
		}
	}
}

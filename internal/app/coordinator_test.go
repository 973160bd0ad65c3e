package app

import (
	"encoding/json"
	"testing"

	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

type fakeConn struct {
	frames [][]byte
}

func (c *fakeConn) TrySend(data []byte) error {
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, env.Type)
	}
	return out
}

func register(c *Coordinator, id ClientID) *fakeConn {
	conn := &fakeConn{}
	c.Register(id, conn)
	return conn
}

func TestJoinAssignsInitiatorToSecondArrival(t *testing.T) {
	c := NewCoordinator()
	register(c, "a")
	register(c, "b")

	resA := c.Join("a", "abc")
	if !resA.OK || resA.ShouldCreateOffer || resA.Clients != 1 {
		t.Fatalf("first join: %+v", resA)
	}

	resB := c.Join("b", "abc")
	if !resB.OK || !resB.ShouldCreateOffer || resB.Clients != 2 {
		t.Fatalf("second join: %+v", resB)
	}
}

func TestJoinNotifiesPeerOnSecondArrival(t *testing.T) {
	c := NewCoordinator()
	connA := register(c, "a")
	register(c, "b")

	c.Join("a", "abc")
	if len(connA.frames) != 0 {
		t.Fatalf("first occupant notified too early: %v", connA.types(t))
	}

	c.Join("b", "abc")
	if got := connA.types(t); len(got) != 1 || got[0] != protocol.SignalPeerJoined {
		t.Fatalf("expected one peer-joined, got %v", got)
	}
}

func TestJoinRejectsThirdParticipant(t *testing.T) {
	c := NewCoordinator()
	register(c, "a")
	register(c, "b")
	register(c, "x")

	c.Join("a", "abc")
	c.Join("b", "abc")

	res := c.Join("x", "abc")
	if res.OK {
		t.Fatal("third join accepted")
	}
	if res.Error != domain.ErrRoomFull.Error() {
		t.Fatalf("error = %q", res.Error)
	}
	if c.Occupancy("abc") != 2 {
		t.Fatalf("occupancy changed to %d", c.Occupancy("abc"))
	}
}

func TestJoinRequiresRoomID(t *testing.T) {
	c := NewCoordinator()
	register(c, "a")

	res := c.Join("a", "")
	if res.OK {
		t.Fatal("empty roomId accepted")
	}
	if res.Error != domain.ErrNoRoomID.Error() {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestDisconnectNotifiesRemainingOccupantOnce(t *testing.T) {
	c := NewCoordinator()
	connA := register(c, "a")
	register(c, "b")

	c.Join("a", "abc")
	c.Join("b", "abc")
	connA.frames = nil

	c.Disconnect("b")
	if got := connA.types(t); len(got) != 1 || got[0] != protocol.SignalPeerDisconnected {
		t.Fatalf("expected one peer-disconnected, got %v", got)
	}

	// The freed slot must admit a newcomer.
	register(c, "x")
	res := c.Join("x", "abc")
	if !res.OK || !res.ShouldCreateOffer || res.Clients != 2 {
		t.Fatalf("rejoin after disconnect: %+v", res)
	}
}

func TestDisconnectLastOccupantRemovesRoom(t *testing.T) {
	c := NewCoordinator()
	register(c, "a")
	c.Join("a", "abc")
	c.Disconnect("a")

	if c.Occupancy("abc") != 0 {
		t.Fatalf("room not cleaned up, occupancy %d", c.Occupancy("abc"))
	}

	// A fresh join restarts the room from scratch.
	register(c, "b")
	res := c.Join("b", "abc")
	if !res.OK || res.ShouldCreateOffer || res.Clients != 1 {
		t.Fatalf("fresh join: %+v", res)
	}
}

func TestRelayReachesOnlyTheOtherOccupant(t *testing.T) {
	c := NewCoordinator()
	connA := register(c, "a")
	connB := register(c, "b")

	c.Join("a", "abc")
	c.Join("b", "abc")
	connA.frames = nil
	connB.frames = nil

	raw := []byte(`{"type":"offer","sdp":"v=0"}`)
	c.Relay("b", raw)

	if len(connB.frames) != 0 {
		t.Fatalf("relay echoed to sender: %v", connB.types(t))
	}
	if len(connA.frames) != 1 || string(connA.frames[0]) != string(raw) {
		t.Fatalf("payload not forwarded verbatim: %v", connA.frames)
	}
}

func TestRelayWithoutRoomIsNoOp(t *testing.T) {
	c := NewCoordinator()
	register(c, "a")
	c.Relay("a", []byte(`{"type":"offer"}`))

	connB := register(c, "b")
	c.Join("b", "abc")
	c.Relay("b", []byte(`{"type":"offer"}`))
	if len(connB.frames) != 0 {
		t.Fatalf("lonely relay delivered something: %v", connB.types(t))
	}
}

func TestRejoinMovesClientBetweenRooms(t *testing.T) {
	c := NewCoordinator()
	connA := register(c, "a")
	register(c, "b")

	c.Join("a", "one")
	c.Join("b", "one")
	connA.frames = nil

	res := c.Join("b", "two")
	if !res.OK || res.Clients != 1 {
		t.Fatalf("move join: %+v", res)
	}
	if got := connA.types(t); len(got) != 1 || got[0] != protocol.SignalPeerDisconnected {
		t.Fatalf("old room peer not told, got %v", got)
	}
	if c.Occupancy("one") != 1 || c.Occupancy("two") != 1 {
		t.Fatalf("occupancies: one=%d two=%d", c.Occupancy("one"), c.Occupancy("two"))
	}
}

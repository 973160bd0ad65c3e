package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Rahul15205/youtube-stream/internal/domain"
)

func TestControlMessageAbsentFieldsStayAbsent(t *testing.T) {
	var msg ControlMessage
	if err := json.Unmarshal([]byte(`{"type":"play","t0":123}`), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != ControlPlay || msg.T0 != 123 {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Time != nil || msg.Rate != nil || msg.State != nil || msg.Accepted != nil {
		t.Fatalf("absent fields decoded non-nil: %+v", msg)
	}
}

func TestControlMessageZeroValuesSurvive(t *testing.T) {
	// Position 0 and state 0 (ended) are real values, not absences.
	var msg ControlMessage
	if err := json.Unmarshal([]byte(`{"type":"sync-state","videoId":"abc","time":0,"rate":1,"state":0}`), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Time == nil || *msg.Time != 0 {
		t.Fatalf("time = %v", msg.Time)
	}
	if msg.State == nil || *msg.State != domain.PlayerEnded {
		t.Fatalf("state = %v", msg.State)
	}
}

func TestControlMessageOmitsUnsetFields(t *testing.T) {
	b, err := json.Marshal(ControlMessage{Type: ControlRequestSync})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"request-sync"}` {
		t.Fatalf("encoded %s", b)
	}
}

func TestRejectionKeepsAcceptedFalseOnTheWire(t *testing.T) {
	b, err := json.Marshal(ControlMessage{Type: ControlCallAnswer, Accepted: Bool(false)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"accepted":false`) {
		t.Fatalf("encoded %s", b)
	}
}

func TestIsCall(t *testing.T) {
	calls := []ControlType{ControlCallOffer, ControlCallAnswer, ControlCallHangup}
	for _, ct := range calls {
		if !(ControlMessage{Type: ct}).IsCall() {
			t.Errorf("%s not recognized as call signaling", ct)
		}
	}
	playback := []ControlType{ControlLoad, ControlPlay, ControlPause, ControlSeek, ControlRate, ControlRequestSync, ControlSyncState}
	for _, ct := range playback {
		if (ControlMessage{Type: ct}).IsCall() {
			t.Errorf("%s misrouted to call signaling", ct)
		}
	}
}

func TestJoinAckAlwaysCarriesOfferFlag(t *testing.T) {
	// The flag matters precisely when it is false, so it must never be
	// omitted from a successful ack.
	b, err := json.Marshal(JoinAck{Type: SignalJoined, OK: true, Clients: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"shouldCreateOffer":false`) {
		t.Fatalf("encoded %s", b)
	}
}

func TestCandidateSignalRoundTrip(t *testing.T) {
	mid := "0"
	var idx uint16 = 1
	b, err := json.Marshal(CandidateSignal{Type: SignalCandidate, Candidate: "candidate:1 1 udp", SDPMid: &mid, SDPMLineIndex: &idx})
	if err != nil {
		t.Fatal(err)
	}
	var got CandidateSignal
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.SDPMid == nil || *got.SDPMid != "0" || got.SDPMLineIndex == nil || *got.SDPMLineIndex != 1 {
		t.Fatalf("got = %+v", got)
	}
}

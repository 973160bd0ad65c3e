package peer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Rahul15205/youtube-stream/internal/adapters/rtc"
	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

type memChannel struct {
	label  string
	ready  bool
	sent   [][]byte
	onMsg  func([]byte)
	onOpen func()
}

func (c *memChannel) Label() string { return c.label }
func (c *memChannel) Ready() bool   { return c.ready }
func (c *memChannel) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}
func (c *memChannel) OnOpen(fn func())          { c.onOpen = fn }
func (c *memChannel) OnClose(func())            {}
func (c *memChannel) OnMessage(fn func([]byte)) { c.onMsg = fn }
func (c *memChannel) Close() error              { return nil }

type scriptedSession struct {
	signaling  webrtc.SignalingState
	offers     int
	restarts   int
	answers    []string
	applied    []string
	candidates []webrtc.ICECandidateInit
	channels   []string
	closed     bool

	onCandidate func(webrtc.ICECandidateInit)
	onConnState func(webrtc.PeerConnectionState)
	onChannel   func(rtc.Channel)
}

func (s *scriptedSession) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	s.offers++
	if iceRestart {
		s.restarts++
	}
	s.signaling = webrtc.SignalingStateHaveLocalOffer
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (s *scriptedSession) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	s.answers = append(s.answers, offer.SDP)
	s.signaling = webrtc.SignalingStateStable
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (s *scriptedSession) ApplyAnswer(answer webrtc.SessionDescription) error {
	s.applied = append(s.applied, answer.SDP)
	s.signaling = webrtc.SignalingStateStable
	return nil
}

func (s *scriptedSession) AddICECandidate(ci webrtc.ICECandidateInit) error {
	s.candidates = append(s.candidates, ci)
	return nil
}

func (s *scriptedSession) SignalingState() webrtc.SignalingState { return s.signaling }

func (s *scriptedSession) CreateChannel(label string) (rtc.Channel, error) {
	s.channels = append(s.channels, label)
	return &memChannel{label: label, ready: true}, nil
}

func (s *scriptedSession) OnChannel(fn func(rtc.Channel)) { s.onChannel = fn }

func (s *scriptedSession) OnConnectionState(fn func(webrtc.PeerConnectionState)) {
	s.onConnState = fn
}

func (s *scriptedSession) OnICECandidate(fn func(webrtc.ICECandidateInit)) { s.onCandidate = fn }

func (s *scriptedSession) OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (s *scriptedSession) AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error) { return nil, nil }

func (s *scriptedSession) Close() { s.closed = true }

type capturedSignals struct {
	msgs []any
}

func (c *capturedSignals) Send(v any) error {
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *capturedSignals) offerCount() int {
	n := 0
	for _, m := range c.msgs {
		if sig, ok := m.(protocol.SessionSignal); ok && sig.Type == protocol.SignalOffer {
			n++
		}
	}
	return n
}

func TestBeginInitiatorCreatesChannelsAndOffer(t *testing.T) {
	sess := &scriptedSession{}
	signals := &capturedSignals{}
	n := NewNegotiator(sess, signals)

	if err := n.Begin(true); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if len(sess.channels) != 2 || sess.channels[0] != controlLabel || sess.channels[1] != chatLabel {
		t.Fatalf("channels = %v", sess.channels)
	}
	if signals.offerCount() != 1 {
		t.Fatalf("signals = %+v", signals.msgs)
	}
	if n.State() != StateNegotiating {
		t.Fatalf("state = %s", n.State())
	}
	if !n.ControlReady() {
		t.Fatal("control channel not bound")
	}
}

func TestBeginNonInitiatorWaitsForAnnouncement(t *testing.T) {
	sess := &scriptedSession{}
	signals := &capturedSignals{}
	n := NewNegotiator(sess, signals)

	if err := n.Begin(false); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if len(sess.channels) != 0 || len(signals.msgs) != 0 {
		t.Fatalf("non-initiator acted: channels=%v signals=%+v", sess.channels, signals.msgs)
	}

	// The remote-announced channels arrive through the session callback.
	sess.onChannel(&memChannel{label: controlLabel, ready: true})
	sess.onChannel(&memChannel{label: chatLabel, ready: true})
	if !n.ControlReady() {
		t.Fatal("announced control channel not bound")
	}
}

func TestHandleOfferAlwaysAnswers(t *testing.T) {
	sess := &scriptedSession{}
	signals := &capturedSignals{}
	n := NewNegotiator(sess, signals)

	n.HandleOffer("v=0 remote")

	if len(sess.answers) != 1 || sess.answers[0] != "v=0 remote" {
		t.Fatalf("answers = %v", sess.answers)
	}
	if len(signals.msgs) != 1 {
		t.Fatalf("signals = %+v", signals.msgs)
	}
	sig, ok := signals.msgs[0].(protocol.SessionSignal)
	if !ok || sig.Type != protocol.SignalAnswer || sig.SDP != "v=0 answer" {
		t.Fatalf("signal = %+v", signals.msgs[0])
	}
}

func TestHandleAnswerOnlyWithOutstandingOffer(t *testing.T) {
	sess := &scriptedSession{signaling: webrtc.SignalingStateStable}
	n := NewNegotiator(sess, &capturedSignals{})

	n.HandleAnswer("v=0 stray")
	if len(sess.applied) != 0 {
		t.Fatalf("stray answer applied: %v", sess.applied)
	}

	sess.signaling = webrtc.SignalingStateHaveLocalOffer
	n.HandleAnswer("v=0 real")
	if len(sess.applied) != 1 || sess.applied[0] != "v=0 real" {
		t.Fatalf("applied = %v", sess.applied)
	}
}

func TestCandidatesFlowBothWays(t *testing.T) {
	sess := &scriptedSession{}
	signals := &capturedSignals{}
	n := NewNegotiator(sess, signals)

	mid := "0"
	var idx uint16 = 0
	n.HandleCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid, SDPMLineIndex: &idx})
	if len(sess.candidates) != 1 || sess.candidates[0].Candidate != "candidate:1" {
		t.Fatalf("candidates = %v", sess.candidates)
	}

	sess.onCandidate(webrtc.ICECandidateInit{Candidate: "candidate:2", SDPMid: &mid, SDPMLineIndex: &idx})
	if len(signals.msgs) != 1 {
		t.Fatalf("signals = %+v", signals.msgs)
	}
	sig, ok := signals.msgs[0].(protocol.CandidateSignal)
	if !ok || sig.Type != protocol.SignalCandidate || sig.Candidate != "candidate:2" {
		t.Fatalf("signal = %+v", signals.msgs[0])
	}
}

func TestRestartDebounce(t *testing.T) {
	sess := &scriptedSession{}
	signals := &capturedSignals{}
	n := NewNegotiator(sess, signals)

	var cooldowns []func()
	n.after = func(_ time.Duration, fn func()) *time.Timer {
		cooldowns = append(cooldowns, fn)
		return nil
	}

	sess.onConnState(webrtc.PeerConnectionStateFailed)
	if n.State() != StateNegotiating {
		t.Fatalf("state = %s", n.State())
	}

	sess.onConnState(webrtc.PeerConnectionStateDisconnected)
	if sess.restarts != 1 {
		t.Fatalf("restart offers = %d, want 1", sess.restarts)
	}
	if signals.offerCount() != 1 {
		t.Fatalf("signals = %+v", signals.msgs)
	}

	// After the cool-down window the next failure restarts again.
	if len(cooldowns) != 1 {
		t.Fatalf("scheduled %d cool-downs", len(cooldowns))
	}
	cooldowns[0]()
	sess.onConnState(webrtc.PeerConnectionStateFailed)

	if sess.restarts != 2 {
		t.Fatalf("restart offers = %d, want 2", sess.restarts)
	}
}

func TestConnectionStateTracking(t *testing.T) {
	sess := &scriptedSession{}
	n := NewNegotiator(sess, &capturedSignals{})
	n.after = func(_ time.Duration, fn func()) *time.Timer { return nil }

	sess.onConnState(webrtc.PeerConnectionStateConnected)
	if n.State() != StateConnected {
		t.Fatalf("state = %s", n.State())
	}
}

func TestSendControlRequiresOpenChannel(t *testing.T) {
	sess := &scriptedSession{}
	n := NewNegotiator(sess, &capturedSignals{})

	err := n.SendControl(protocol.ControlMessage{Type: protocol.ControlPlay})
	if err != domain.ErrChannelNotReady {
		t.Fatalf("err = %v", err)
	}

	ch := &memChannel{label: controlLabel}
	sess.onChannel(ch)
	if err := n.SendControl(protocol.ControlMessage{Type: protocol.ControlPlay}); err != domain.ErrChannelNotReady {
		t.Fatalf("err on unopened channel = %v", err)
	}

	ch.ready = true
	if err := n.SendControl(protocol.ControlMessage{Type: protocol.ControlPlay}); err != nil {
		t.Fatalf("SendControl: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent = %v", ch.sent)
	}
	var msg protocol.ControlMessage
	if err := json.Unmarshal(ch.sent[0], &msg); err != nil || msg.Type != protocol.ControlPlay {
		t.Fatalf("payload %s (%v)", ch.sent[0], err)
	}
}

func TestChannelsRouteByLabel(t *testing.T) {
	sess := &scriptedSession{}
	n := NewNegotiator(sess, &capturedSignals{})

	var controlGot, chatGot [][]byte
	n.OnControlMessage(func(b []byte) { controlGot = append(controlGot, b) })
	n.OnChatMessage(func(b []byte) { chatGot = append(chatGot, b) })

	control := &memChannel{label: controlLabel, ready: true}
	chat := &memChannel{label: chatLabel, ready: true}
	sess.onChannel(control)
	sess.onChannel(chat)

	control.onMsg([]byte(`{"type":"play"}`))
	chat.onMsg([]byte(`{"user":"a","text":"hi"}`))

	if len(controlGot) != 1 || len(chatGot) != 1 {
		t.Fatalf("control=%d chat=%d deliveries", len(controlGot), len(chatGot))
	}

	if err := n.SendChat(protocol.ChatMessage{User: "b", Text: "yo"}); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if len(chat.sent) != 1 || len(control.sent) != 0 {
		t.Fatalf("chat routed wrong: chat=%d control=%d", len(chat.sent), len(control.sent))
	}
}

package peer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/adapters/rtc"
	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

const (
	controlLabel = "control"
	chatLabel    = "chat"

	// restartCooldown debounces ICE restarts: while one is in flight no new
	// restart is started, and the flag clears after this window.
	restartCooldown = 1500 * time.Millisecond
)

// NegotiationState tracks where the controller is in the offer/answer
// lifecycle. Failed and Disconnected both route back through a restart.
type NegotiationState int

const (
	StateIdle NegotiationState = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateDisconnected
)

func (s NegotiationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// negotiationSession is the slice of rtc.Connection the controller drives.
// Kept as an interface so tests can substitute a scripted session.
type negotiationSession interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	CreateChannel(label string) (rtc.Channel, error)
	OnChannel(func(rtc.Channel))
	OnConnectionState(func(webrtc.PeerConnectionState))
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
	Close()
}

// SignalSender pushes a message to the coordinator for relaying.
type SignalSender interface {
	Send(v any) error
}

// Negotiator owns the negotiation session exclusively. The sync and call
// engines only ever see the channels and the track attachment surface it
// exposes.
type Negotiator struct {
	mu      sync.Mutex
	sess    negotiationSession
	signals SignalSender

	state      NegotiationState
	initiator  bool
	restarting bool
	after      func(time.Duration, func()) *time.Timer

	control rtc.Channel
	chat    rtc.Channel

	onControlMsg  func([]byte)
	onChatMsg     func([]byte)
	onControlOpen func()
}

func NewNegotiator(sess negotiationSession, signals SignalSender) *Negotiator {
	n := &Negotiator{
		sess:    sess,
		signals: signals,
		state:   StateIdle,
		after:   time.AfterFunc,
	}

	sess.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		n.sendCandidate(ci)
	})
	sess.OnConnectionState(func(s webrtc.PeerConnectionState) {
		n.handleConnectionState(s)
	})
	sess.OnChannel(func(ch rtc.Channel) {
		n.mu.Lock()
		n.bindChannelLocked(ch)
		n.mu.Unlock()
	})

	return n
}

func (n *Negotiator) State() NegotiationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Negotiator) OnControlMessage(fn func([]byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onControlMsg = fn
	if n.control != nil {
		n.control.OnMessage(fn)
	}
}

func (n *Negotiator) OnChatMessage(fn func([]byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChatMsg = fn
	if n.chat != nil {
		n.chat.OnMessage(fn)
	}
}

func (n *Negotiator) OnControlOpen(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onControlOpen = fn
}

func (n *Negotiator) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	n.sess.OnTrack(fn)
}

// Begin starts negotiation after a successful room join. Only the initiator
// (the second arrival) creates the two logical channels and the first offer;
// the other side waits for them to be announced.
func (n *Negotiator) Begin(initiator bool) error {
	n.mu.Lock()
	n.initiator = initiator
	n.state = StateNegotiating
	n.mu.Unlock()

	if !initiator {
		return nil
	}

	for _, label := range []string{controlLabel, chatLabel} {
		ch, err := n.sess.CreateChannel(label)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.bindChannelLocked(ch)
		n.mu.Unlock()
	}

	offer, err := n.sess.CreateOffer(false)
	if err != nil {
		return err
	}
	return n.signals.Send(protocol.SessionSignal{Type: protocol.SignalOffer, SDP: offer.SDP})
}

// HandleOffer answers a relayed offer: the first offer from the initiator,
// a renegotiation offer carrying call media, or an ICE-restart offer.
func (n *Negotiator) HandleOffer(sdp string) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	answer, err := n.sess.CreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("answer offer")
		return
	}
	n.mu.Lock()
	if n.state == StateIdle {
		n.state = StateNegotiating
	}
	n.mu.Unlock()
	if err := n.signals.Send(protocol.SessionSignal{Type: protocol.SignalAnswer, SDP: answer.SDP}); err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("relay answer")
	}
}

// HandleAnswer applies a relayed answer, but only while an offer of ours is
// outstanding. Anything else would violate the peer connection's state
// machine, so it is dropped.
func (n *Negotiator) HandleAnswer(sdp string) {
	if n.sess.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		log.Debug().Str("module", "peer.negotiator").Str("signaling_state", n.sess.SignalingState().String()).Msg("answer ignored")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := n.sess.ApplyAnswer(answer); err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("apply answer")
	}
}

// HandleCandidate applies a relayed remote candidate. Apply failures are
// logged, never fatal; real trouble shows up as a connection state change.
func (n *Negotiator) HandleCandidate(ci webrtc.ICECandidateInit) {
	if err := n.sess.AddICECandidate(ci); err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("add ice candidate")
	}
}

// Renegotiate sends a fresh offer over the existing signaling path. The call
// engine uses it after attaching media tracks post-accept.
func (n *Negotiator) Renegotiate() error {
	offer, err := n.sess.CreateOffer(false)
	if err != nil {
		return err
	}
	return n.signals.Send(protocol.SessionSignal{Type: protocol.SignalOffer, SDP: offer.SDP})
}

// AddTrack attaches a local media track to the negotiation session.
func (n *Negotiator) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return n.sess.AddTrack(track)
}

// ControlReady reports whether the control channel is open for sending.
func (n *Negotiator) ControlReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.control != nil && n.control.Ready()
}

// SendControl marshals one control message onto the control channel.
func (n *Negotiator) SendControl(msg protocol.ControlMessage) error {
	n.mu.Lock()
	ch := n.control
	n.mu.Unlock()
	if ch == nil || !ch.Ready() {
		return domain.ErrChannelNotReady
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Send(b)
}

// SendChat marshals one chat message onto the chat channel.
func (n *Negotiator) SendChat(msg protocol.ChatMessage) error {
	n.mu.Lock()
	ch := n.chat
	n.mu.Unlock()
	if ch == nil || !ch.Ready() {
		return domain.ErrChannelNotReady
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Send(b)
}

func (n *Negotiator) Close() {
	n.sess.Close()
}

func (n *Negotiator) bindChannelLocked(ch rtc.Channel) {
	switch ch.Label() {
	case controlLabel:
		n.control = ch
		if n.onControlMsg != nil {
			ch.OnMessage(n.onControlMsg)
		}
		ch.OnOpen(func() {
			log.Info().Str("module", "peer.negotiator").Msg("control channel open")
			n.mu.Lock()
			fn := n.onControlOpen
			n.mu.Unlock()
			if fn != nil {
				fn()
			}
		})
	case chatLabel:
		n.chat = ch
		if n.onChatMsg != nil {
			ch.OnMessage(n.onChatMsg)
		}
		ch.OnOpen(func() {
			log.Info().Str("module", "peer.negotiator").Msg("chat channel open")
		})
	default:
		log.Warn().Str("module", "peer.negotiator").Str("label", ch.Label()).Msg("unexpected channel")
	}
}

func (n *Negotiator) sendCandidate(ci webrtc.ICECandidateInit) {
	msg := protocol.CandidateSignal{
		Type:          protocol.SignalCandidate,
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
	if err := n.signals.Send(msg); err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("relay candidate")
	}
}

func (n *Negotiator) handleConnectionState(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		n.mu.Lock()
		n.state = StateConnected
		n.mu.Unlock()
	case webrtc.PeerConnectionStateFailed:
		n.mu.Lock()
		n.state = StateFailed
		n.mu.Unlock()
		n.tryRestart()
	case webrtc.PeerConnectionStateDisconnected:
		n.mu.Lock()
		n.state = StateDisconnected
		n.mu.Unlock()
		n.tryRestart()
	}
}

// tryRestart issues an ICE-restart offer unless one is already in flight.
// The debounce flag clears after the cool-down window whether or not the
// restart succeeded; the next failure notification retries.
func (n *Negotiator) tryRestart() {
	n.mu.Lock()
	if n.restarting {
		n.mu.Unlock()
		return
	}
	n.restarting = true
	n.state = StateNegotiating
	n.mu.Unlock()

	log.Info().Str("module", "peer.negotiator").Msg("attempting ICE restart")

	offer, err := n.sess.CreateOffer(true)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("restart offer")
	} else if err := n.signals.Send(protocol.SessionSignal{Type: protocol.SignalOffer, SDP: offer.SDP}); err != nil {
		log.Error().Err(err).Str("module", "peer.negotiator").Msg("relay restart offer")
	}

	n.after(restartCooldown, func() {
		n.mu.Lock()
		n.restarting = false
		n.mu.Unlock()
	})
}

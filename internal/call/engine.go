// Package call manages the audio/video call lifecycle between the two
// peers. Its signaling rides the same control channel as playback sync;
// the media itself flows through tracks attached to the negotiation
// session after the callee accepts.
package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

// State is the call lifecycle. Idle is both initial and terminal.
type State int

const (
	Idle State = iota
	Calling
	Receiving
	Connected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Calling:
		return "calling"
	case Receiving:
		return "receiving"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Stream is one local capture acquisition: microphone, optionally camera.
// Exactly one is held at a time; Close releases the devices.
type Stream interface {
	Tracks() []webrtc.TrackLocal
	Close()
}

// Optional toggling support; capture backends that cannot pause a track
// simply do not implement these.
type audioToggler interface{ SetAudioEnabled(bool) }
type videoToggler interface{ SetVideoEnabled(bool) }

// Capture acquires the local devices. It may be slow and may fail; the
// engine stays responsive to a hangup while it is pending and releases a
// stream that resolves after the call already ended.
type Capture func(withVideo bool) (Stream, error)

// Session is the slice of the negotiation controller the call engine is
// allowed to touch: attaching tracks and asking for a renegotiation.
type Session interface {
	AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
	Renegotiate() error
}

// Sender is the outbound half of the control channel.
type Sender interface {
	SendControl(protocol.ControlMessage) error
	ControlReady() bool
}

// Decision surfaces an incoming call to the consumer. The answer callback
// may be invoked arbitrarily late; a hangup that lands first wins and the
// late answer becomes a no-op.
type Decision func(hasVideo bool, answer func(accept bool))

type Engine struct {
	mu      sync.Mutex
	state   State
	sender  Sender
	sess    Session
	capture Capture
	decide  Decision

	stream    Stream
	remote    []*webrtc.TrackRemote
	muted     bool
	cameraOff bool
	hasVideo  bool
	startedAt time.Time
	stopTimer chan struct{}

	onState    func(State)
	onDuration func(time.Duration)
	now        func() time.Time
}

func New(sender Sender, sess Session, capture Capture, decide Decision) *Engine {
	return &Engine{
		sender:  sender,
		sess:    sess,
		capture: capture,
		decide:  decide,
		now:     time.Now,
	}
}

// OnStateChange registers a lifecycle observer (UI status line).
func (e *Engine) OnStateChange(fn func(State)) { e.onState = fn }

// OnDuration registers the once-a-second call duration tick.
func (e *Engine) OnDuration(fn func(time.Duration)) { e.onDuration = fn }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartCall places a call. Valid only from Idle with the control channel
// open. Media tracks are deliberately NOT attached yet: a declined call
// must never have leaked device capture to the wire.
func (e *Engine) StartCall(withVideo bool) error {
	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return domain.ErrCallInProgress
	}
	if !e.sender.ControlReady() {
		e.mu.Unlock()
		return domain.ErrChannelNotReady
	}
	e.state = Calling
	e.hasVideo = withVideo
	e.mu.Unlock()
	e.notifyState(Calling)

	stream, err := e.capture(withVideo)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("capture failed")
		e.EndCall()
		return fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}

	e.mu.Lock()
	if e.state != Calling {
		// Hung up while capture was pending; release, never attach.
		e.mu.Unlock()
		stream.Close()
		return nil
	}
	e.stream = stream
	e.mu.Unlock()

	e.sendControl(protocol.ControlMessage{Type: protocol.ControlCallOffer, HasVideo: withVideo})
	log.Info().Str("module", "call").Bool("video", withVideo).Msg("call initiated")
	return nil
}

// HandleControl consumes one call-signaling message. Non-call messages are
// ignored here.
func (e *Engine) HandleControl(msg protocol.ControlMessage) {
	switch msg.Type {
	case protocol.ControlCallOffer:
		e.handleOffer(msg)
	case protocol.ControlCallAnswer:
		e.handleAnswer(msg)
	case protocol.ControlCallHangup:
		e.handleHangup()
	}
}

func (e *Engine) handleOffer(msg protocol.ControlMessage) {
	e.mu.Lock()
	if e.state != Idle {
		// No re-entrant calls.
		log.Info().Str("module", "call").Str("state", e.state.String()).Msg("call offer ignored")
		e.mu.Unlock()
		return
	}
	e.state = Receiving
	e.hasVideo = msg.HasVideo
	decide := e.decide
	e.mu.Unlock()
	e.notifyState(Receiving)

	if decide == nil {
		e.reject()
		return
	}
	go decide(msg.HasVideo, e.resolveDecision)
}

// resolveDecision is the (possibly very late) consumer verdict on an
// incoming call. If a hangup landed first the call is no longer Receiving
// and the verdict is dropped.
func (e *Engine) resolveDecision(accept bool) {
	e.mu.Lock()
	if e.state != Receiving {
		e.mu.Unlock()
		return
	}
	withVideo := e.hasVideo
	e.mu.Unlock()

	if !accept {
		e.reject()
		return
	}

	stream, err := e.capture(withVideo)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("capture failed on accept")
		e.reject()
		return
	}

	e.mu.Lock()
	if e.state != Receiving {
		e.mu.Unlock()
		stream.Close()
		return
	}
	e.stream = stream
	e.attachTracksLocked()
	e.mu.Unlock()

	e.sendControl(protocol.ControlMessage{Type: protocol.ControlCallAnswer, Accepted: protocol.Bool(true)})
	e.connect()
}

func (e *Engine) handleAnswer(msg protocol.ControlMessage) {
	e.mu.Lock()
	if e.state != Calling {
		e.mu.Unlock()
		return
	}
	accepted := msg.Accepted != nil && *msg.Accepted
	if !accepted {
		e.mu.Unlock()
		log.Info().Str("module", "call").Msg("call was declined")
		e.EndCall()
		return
	}

	// The tracks were withheld from the original negotiation; attach them
	// now and run a second offer/answer round through the coordinator.
	e.attachTracksLocked()
	e.mu.Unlock()

	if err := e.sess.Renegotiate(); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("renegotiation offer")
	}
	e.connect()
}

func (e *Engine) handleHangup() {
	e.mu.Lock()
	idle := e.state == Idle
	e.mu.Unlock()
	if idle {
		return
	}
	log.Info().Str("module", "call").Msg("call ended by peer")
	e.EndCall()
}

// EndCall tears down to Idle from anywhere: releases capture, clears the
// remote stream, stops the duration timer, and notifies the peer — but only
// if there was a call to end, so a peer that never knew about a call is
// never told to hang one up. Safe to call repeatedly.
func (e *Engine) EndCall() {
	e.mu.Lock()
	prior := e.state
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.remote = nil
	e.muted = false
	e.cameraOff = false
	if e.stopTimer != nil {
		close(e.stopTimer)
		e.stopTimer = nil
	}
	e.startedAt = time.Time{}
	e.state = Idle
	e.mu.Unlock()

	if prior != Idle {
		e.sendControl(protocol.ControlMessage{Type: protocol.ControlCallHangup})
		e.notifyState(Idle)
		log.Info().Str("module", "call").Str("prior", prior.String()).Msg("call ended")
	}
}

// OnRemoteTrack records an incoming media track for the consumer to render.
func (e *Engine) OnRemoteTrack(track *webrtc.TrackRemote) {
	e.mu.Lock()
	e.remote = append(e.remote, track)
	e.mu.Unlock()
	log.Info().Str("module", "call").Str("kind", track.Kind().String()).Msg("remote media track")
}

func (e *Engine) RemoteTracks() []*webrtc.TrackRemote {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(e.remote))
	copy(out, e.remote)
	return out
}

// ToggleMute flips the local audio without any signaling; the peer just
// hears silence through the existing media flow. Returns the new muted
// state.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return e.muted
	}
	e.muted = !e.muted
	if t, ok := e.stream.(audioToggler); ok {
		t.SetAudioEnabled(!e.muted)
	}
	return e.muted
}

// ToggleCamera flips the local video track. Returns true when the camera is
// now off.
func (e *Engine) ToggleCamera() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return e.cameraOff
	}
	e.cameraOff = !e.cameraOff
	if t, ok := e.stream.(videoToggler); ok {
		t.SetVideoEnabled(!e.cameraOff)
	}
	return e.cameraOff
}

func (e *Engine) attachTracksLocked() {
	if e.stream == nil {
		return
	}
	for _, track := range e.stream.Tracks() {
		if _, err := e.sess.AddTrack(track); err != nil {
			log.Error().Err(err).Str("module", "call").Msg("add track")
		}
	}
}

func (e *Engine) connect() {
	e.mu.Lock()
	if e.state != Calling && e.state != Receiving {
		// Torn down while the accept was in flight; the hangup wins.
		e.mu.Unlock()
		return
	}
	e.state = Connected
	e.startedAt = e.now()
	stop := make(chan struct{})
	e.stopTimer = stop
	started := e.startedAt
	e.mu.Unlock()
	e.notifyState(Connected)
	log.Info().Str("module", "call").Msg("call connected")

	go e.runDurationTimer(started, stop)
}

func (e *Engine) runDurationTimer(started time.Time, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if e.onDuration != nil {
				e.onDuration(e.now().Sub(started))
			}
		}
	}
}

func (e *Engine) reject() {
	e.sendControl(protocol.ControlMessage{Type: protocol.ControlCallAnswer, Accepted: protocol.Bool(false)})
	e.EndCall()
}

func (e *Engine) sendControl(msg protocol.ControlMessage) {
	msg.Timestamp = e.now().UnixMilli()
	if err := e.sender.SendControl(msg); err != nil {
		log.Debug().Err(err).Str("module", "call").Str("type", string(msg.Type)).Msg("control send skipped")
	}
}

func (e *Engine) notifyState(s State) {
	if e.onState != nil {
		e.onState(s)
	}
}

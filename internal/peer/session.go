package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/adapters/rtc"
	"github.com/Rahul15205/youtube-stream/internal/call"
	"github.com/Rahul15205/youtube-stream/internal/media"
	"github.com/Rahul15205/youtube-stream/internal/playback"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

// Options configures one participant session.
type Options struct {
	ServerURL   string
	Room        string
	Username    string
	STUNServers []string

	// Player is the local video surface; rendering is the caller's problem.
	Player playback.Player

	// Decide answers incoming calls. Nil rejects everything.
	Decide call.Decision
}

// Session is one participant: signaling connection, negotiation controller
// and the two protocol engines running over the negotiated channels.
type Session struct {
	opts   Options
	client *SignalClient
	neg    *Negotiator
	sync   *playback.Engine
	calls  *call.Engine

	onChat func(protocol.ChatMessage)
}

func NewSession(opts Options) (*Session, error) {
	eng, err := media.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("media engine: %w", err)
	}

	conn, err := rtc.New(eng.API(), rtc.DefaultConfig(opts.STUNServers))
	if err != nil {
		return nil, fmt.Errorf("peer connection: %w", err)
	}

	client := NewSignalClient(opts.ServerURL)
	neg := NewNegotiator(conn, client)

	s := &Session{
		opts:   opts,
		client: client,
		neg:    neg,
		sync:   playback.New(opts.Player, neg),
		calls:  call.New(neg, neg, eng.Capture, opts.Decide),
	}

	neg.OnControlMessage(s.routeControl)
	neg.OnChatMessage(s.routeChat)
	neg.OnControlOpen(func() {
		log.Info().Str("module", "peer.session").Msg("control channel open, video sync ready")
	})
	neg.OnRemoteTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.calls.OnRemoteTrack(track)
	})

	return s, nil
}

func (s *Session) Playback() *playback.Engine { return s.sync }

func (s *Session) Calls() *call.Engine { return s.calls }

// SendChat pushes one chat line to the peer over the chat channel.
func (s *Session) SendChat(text string) error {
	return s.neg.SendChat(protocol.ChatMessage{
		User: s.opts.Username,
		Text: text,
		TS:   nowMillis(),
	})
}

func (s *Session) OnChat(fn func(protocol.ChatMessage)) { s.onChat = fn }

// Run connects, joins the room and pumps coordinator events until the
// context dies or the signaling connection drops.
func (s *Session) Run(ctx context.Context) error {
	if err := s.client.Connect(); err != nil {
		return err
	}
	defer s.client.Close()
	defer s.neg.Close()

	if err := s.client.Join(s.opts.Room); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.calls.EndCall()
			return ctx.Err()
		case sig, ok := <-s.client.Incoming():
			if !ok {
				s.calls.EndCall()
				return fmt.Errorf("signaling connection lost")
			}
			if err := s.handleSignal(sig); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleSignal(sig InboundSignal) error {
	switch sig.Type {
	case protocol.SignalJoined:
		var ack protocol.JoinAck
		if err := json.Unmarshal(sig.Raw, &ack); err != nil {
			return err
		}
		if !ack.OK {
			return fmt.Errorf("join refused: %s", ack.Error)
		}
		log.Info().Str("module", "peer.session").Str("room", s.opts.Room).Int("clients", ack.Clients).Bool("initiator", ack.ShouldCreateOffer).Msg("joined room")
		return s.neg.Begin(ack.ShouldCreateOffer)

	case protocol.SignalPeerJoined:
		log.Info().Str("module", "peer.session").Msg("peer joined the room")
		s.sync.OnPeerJoined()

	case protocol.SignalOffer:
		var p protocol.SessionSignal
		if err := json.Unmarshal(sig.Raw, &p); err != nil {
			log.Error().Err(err).Str("module", "peer.session").Msg("bad offer payload")
			return nil
		}
		s.neg.HandleOffer(p.SDP)

	case protocol.SignalAnswer:
		var p protocol.SessionSignal
		if err := json.Unmarshal(sig.Raw, &p); err != nil {
			log.Error().Err(err).Str("module", "peer.session").Msg("bad answer payload")
			return nil
		}
		s.neg.HandleAnswer(p.SDP)

	case protocol.SignalCandidate:
		var p protocol.CandidateSignal
		if err := json.Unmarshal(sig.Raw, &p); err != nil {
			log.Error().Err(err).Str("module", "peer.session").Msg("bad candidate payload")
			return nil
		}
		s.neg.HandleCandidate(webrtc.ICECandidateInit{
			Candidate:     p.Candidate,
			SDPMid:        p.SDPMid,
			SDPMLineIndex: p.SDPMLineIndex,
		})

	case protocol.SignalPeerDisconnected:
		log.Info().Str("module", "peer.session").Msg("peer disconnected")
		if s.calls.State() != call.Idle {
			s.calls.EndCall()
		}

	case protocol.SignalPong:
		// keepalive answer, nothing to do

	default:
		log.Warn().Str("module", "peer.session").Str("type", sig.Type).Msg("unknown signal")
	}
	return nil
}

func (s *Session) routeControl(data []byte) {
	var msg protocol.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "peer.session").Msg("bad control message")
		return
	}
	// Call signaling must work before any video is loaded, so it bypasses
	// the playback engine and its surface-readiness gate entirely.
	if msg.IsCall() {
		s.calls.HandleControl(msg)
		return
	}
	s.sync.HandleControl(msg)
}

func (s *Session) routeChat(data []byte) {
	var msg protocol.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "peer.session").Msg("bad chat message")
		return
	}
	if s.onChat != nil {
		s.onChat(msg)
	}
}

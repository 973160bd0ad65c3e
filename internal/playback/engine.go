// Package playback keeps two independent video surfaces at the same
// position by translating local surface events into control messages and
// applying remote control messages back onto the surface, with echo
// suppression in between so the two peers never feed back into each other.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/domain"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

const (
	// suppressWindow is how long local surface events are treated as echoes
	// after a remote command was applied. Fixed for all message types.
	suppressWindow = 400 * time.Millisecond

	// settleDelay is the wait after peer-join before pushing a snapshot,
	// giving the newcomer's surface time to come up.
	settleDelay = 500 * time.Millisecond

	// driftTolerance is the position band, in seconds, inside which a
	// sync-state never seeks. Re-applying an identical snapshot is a no-op.
	driftTolerance = 2.0

	// minSyncProgress gates the peer-join snapshot: nothing is pushed for a
	// paused video still near its start.
	minSyncProgress = 2.0
)

// Player is the video-surface collaborator. Rendering lives elsewhere; the
// engine only drives this contract and listens to its notifications.
type Player interface {
	LoadVideoByID(id string)
	Play()
	Pause()
	SeekTo(seconds float64, allowSeekAhead bool)
	SetPlaybackRate(rate float64)
	CurrentTime() float64
	PlaybackRate() float64
	State() domain.PlayerState
	VideoID() string
	Ready() bool
}

// ControlSender is the outbound half of the control channel.
type ControlSender interface {
	SendControl(protocol.ControlMessage) error
	ControlReady() bool
}

type Engine struct {
	mu            sync.Mutex
	player        Player
	send          ControlSender
	suppressUntil time.Time

	now   func() time.Time
	after func(time.Duration, func()) *time.Timer
}

func New(player Player, send ControlSender) *Engine {
	return &Engine{
		player: player,
		send:   send,
		now:    time.Now,
		after:  time.AfterFunc,
	}
}

// OnPlayerStateChange translates a local surface notification into a control
// message. Inside the suppression window the notification is presumed to be
// the echo of a remotely applied command and is dropped.
func (e *Engine) OnPlayerStateChange(state domain.PlayerState) {
	if !e.player.Ready() {
		return
	}

	e.mu.Lock()
	suppressed := e.now().Before(e.suppressUntil)
	e.mu.Unlock()
	if suppressed {
		log.Debug().Str("module", "playback").Str("state", state.String()).Msg("event suppressed")
		return
	}

	t := e.player.CurrentTime()
	switch state {
	case domain.PlayerPlaying:
		e.sendControl(protocol.ControlMessage{Type: protocol.ControlPlay, Time: protocol.Float(t)})
	case domain.PlayerPaused:
		e.sendControl(protocol.ControlMessage{Type: protocol.ControlPause, Time: protocol.Float(t)})
	case domain.PlayerBuffering:
		// Buffering right after user interaction is a seek/drag; broadcast
		// the new position.
		e.sendControl(protocol.ControlMessage{Type: protocol.ControlSeek, Time: protocol.Float(t)})
	}
}

// OnPlaybackRateChange broadcasts the new rate. Never suppressed.
func (e *Engine) OnPlaybackRateChange() {
	if !e.player.Ready() {
		return
	}
	e.sendControl(protocol.ControlMessage{Type: protocol.ControlRate, Rate: protocol.Float(e.player.PlaybackRate())})
}

// LoadVideo loads a video locally and tells the peer to do the same. Loading
// the id that is already up is a no-op.
func (e *Engine) LoadVideo(id string) {
	if id == "" || !e.player.Ready() {
		return
	}
	if id == e.player.VideoID() {
		log.Info().Str("module", "playback").Str("video", id).Msg("video already loaded")
		return
	}
	e.player.LoadVideoByID(id)
	e.sendControl(protocol.ControlMessage{Type: protocol.ControlLoad, VideoID: id, Time: protocol.Float(0)})
}

// RequestSync asks the peer for its full state.
func (e *Engine) RequestSync() error {
	if !e.send.ControlReady() {
		return domain.ErrChannelNotReady
	}
	return e.send.SendControl(protocol.ControlMessage{Type: protocol.ControlRequestSync})
}

// OnPeerJoined schedules the drift-reconciliation snapshot. It fires only
// when there is something worth reconciling: a loaded video past the
// progress threshold or actively playing.
func (e *Engine) OnPeerJoined() {
	e.after(settleDelay, e.emitJoinSnapshot)
}

func (e *Engine) emitJoinSnapshot() {
	if !e.player.Ready() {
		return
	}
	if e.player.VideoID() == "" {
		log.Info().Str("module", "playback").Msg("peer joined, no video loaded yet")
		return
	}
	if e.player.CurrentTime() > minSyncProgress || e.player.State() == domain.PlayerPlaying {
		e.sendControl(e.snapshot())
	}
}

func (e *Engine) snapshot() protocol.ControlMessage {
	return protocol.ControlMessage{
		Type:    protocol.ControlSyncState,
		VideoID: e.player.VideoID(),
		State:   protocol.State(e.player.State()),
		Time:    protocol.Float(e.player.CurrentTime()),
		Rate:    protocol.Float(e.player.PlaybackRate()),
	}
}

// HandleControl applies one inbound playback message to the local surface.
// Playback messages require a ready surface; call messages never reach this
// engine. Unknown types and absent fields are skipped, not errors.
func (e *Engine) HandleControl(msg protocol.ControlMessage) {
	if msg.IsCall() {
		return
	}
	if !e.player.Ready() {
		return
	}

	switch msg.Type {
	case protocol.ControlLoad:
		if msg.VideoID != "" {
			e.applyAndSuppress(func() {
				e.player.LoadVideoByID(msg.VideoID)
				if msg.Time != nil {
					e.player.SeekTo(*msg.Time, true)
				}
			})
		}
	case protocol.ControlPlay:
		e.applyAndSuppress(func() {
			if msg.Time != nil {
				e.player.SeekTo(*msg.Time, true)
			}
			e.player.Play()
		})
	case protocol.ControlPause:
		e.applyAndSuppress(func() {
			if msg.Time != nil {
				e.player.SeekTo(*msg.Time, true)
			}
			e.player.Pause()
		})
	case protocol.ControlSeek:
		e.applyAndSuppress(func() {
			if msg.Time != nil {
				e.player.SeekTo(*msg.Time, true)
			}
		})
	case protocol.ControlRate:
		e.applyAndSuppress(func() {
			if msg.Rate != nil {
				e.player.SetPlaybackRate(*msg.Rate)
			}
		})
	case protocol.ControlRequestSync:
		e.sendControl(e.snapshot())
	case protocol.ControlSyncState:
		e.applyAndSuppress(func() {
			e.reconcile(msg)
		})
	default:
		log.Debug().Str("module", "playback").Str("type", string(msg.Type)).Msg("ignoring control message")
	}
}

// reconcile applies a peer snapshot idempotently: the video id is compared
// exactly, the position only outside the tolerance band, so re-applying an
// identical snapshot touches nothing but the rate.
func (e *Engine) reconcile(msg protocol.ControlMessage) {
	if msg.VideoID != "" && msg.VideoID != e.player.VideoID() {
		e.player.LoadVideoByID(msg.VideoID)
	}

	if msg.Time != nil {
		diff := e.player.CurrentTime() - *msg.Time
		if diff < 0 {
			diff = -diff
		}
		if diff > driftTolerance {
			e.player.SeekTo(*msg.Time, true)
		}
	}

	if msg.Rate != nil {
		e.player.SetPlaybackRate(*msg.Rate)
	}

	if msg.State != nil {
		switch *msg.State {
		case domain.PlayerPlaying:
			e.player.Play()
		case domain.PlayerPaused:
			e.player.Pause()
		}
	}
}

// applyAndSuppress opens the echo window before touching the surface, so the
// surface notifications this apply generates are dropped.
func (e *Engine) applyAndSuppress(fn func()) {
	e.mu.Lock()
	e.suppressUntil = e.now().Add(suppressWindow)
	e.mu.Unlock()
	fn()
}

func (e *Engine) sendControl(msg protocol.ControlMessage) {
	msg.T0 = e.now().UnixMilli()
	if err := e.send.SendControl(msg); err != nil {
		log.Debug().Err(err).Str("module", "playback").Str("type", string(msg.Type)).Msg("control send skipped")
	}
}

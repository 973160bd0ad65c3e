package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/domain"
)

// HeadlessPlayer is a video surface without any rendering: it tracks what a
// real player would be doing and extrapolates the position from the wall
// clock while playing. The peer binary runs on it; it also behaves exactly
// like a browser surface in that applying an operation emits the same
// notification a user action would, which is what the engine's suppression
// window exists to absorb.
type HeadlessPlayer struct {
	mu        sync.Mutex
	videoID   string
	state     domain.PlayerState
	rate      float64
	position  float64
	updatedAt time.Time

	now           func() time.Time
	onStateChange func(domain.PlayerState)
	onRateChange  func()
}

func NewHeadlessPlayer() *HeadlessPlayer {
	return &HeadlessPlayer{
		state: domain.PlayerUnstarted,
		rate:  1,
		now:   time.Now,
	}
}

// OnStateChange registers the surface notification listener, normally the
// sync engine.
func (p *HeadlessPlayer) OnStateChange(fn func(domain.PlayerState)) { p.onStateChange = fn }

func (p *HeadlessPlayer) OnRateChange(fn func()) { p.onRateChange = fn }

func (p *HeadlessPlayer) Ready() bool { return true }

func (p *HeadlessPlayer) LoadVideoByID(id string) {
	p.mu.Lock()
	p.videoID = id
	p.position = 0
	p.state = domain.PlayerCued
	p.updatedAt = p.now()
	p.mu.Unlock()
	log.Info().Str("module", "playback.headless").Str("video", id).Msg("video loaded")
}

func (p *HeadlessPlayer) Play() {
	p.mu.Lock()
	p.syncPositionLocked()
	p.state = domain.PlayerPlaying
	p.mu.Unlock()
	log.Info().Str("module", "playback.headless").Msg("playing")
	p.notify(domain.PlayerPlaying)
}

func (p *HeadlessPlayer) Pause() {
	p.mu.Lock()
	p.syncPositionLocked()
	p.state = domain.PlayerPaused
	p.mu.Unlock()
	log.Info().Str("module", "playback.headless").Msg("paused")
	p.notify(domain.PlayerPaused)
}

func (p *HeadlessPlayer) SeekTo(seconds float64, _ bool) {
	p.mu.Lock()
	p.position = seconds
	p.updatedAt = p.now()
	p.mu.Unlock()
	log.Info().Str("module", "playback.headless").Float64("position", seconds).Msg("seek")
	// A real surface buffers briefly around a seek.
	p.notify(domain.PlayerBuffering)
}

func (p *HeadlessPlayer) SetPlaybackRate(rate float64) {
	p.mu.Lock()
	p.syncPositionLocked()
	p.rate = rate
	p.mu.Unlock()
	log.Info().Str("module", "playback.headless").Float64("rate", rate).Msg("rate changed")
	if p.onRateChange != nil {
		p.onRateChange()
	}
}

func (p *HeadlessPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.position
	if p.state == domain.PlayerPlaying {
		pos += p.now().Sub(p.updatedAt).Seconds() * p.rate
	}
	return pos
}

func (p *HeadlessPlayer) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *HeadlessPlayer) State() domain.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *HeadlessPlayer) VideoID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoID
}

func (p *HeadlessPlayer) syncPositionLocked() {
	if p.state == domain.PlayerPlaying {
		p.position += p.now().Sub(p.updatedAt).Seconds() * p.rate
	}
	p.updatedAt = p.now()
}

func (p *HeadlessPlayer) notify(s domain.PlayerState) {
	if p.onStateChange != nil {
		p.onStateChange(s)
	}
}

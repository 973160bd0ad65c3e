package protocol

import "github.com/Rahul15205/youtube-stream/internal/domain"

// ControlType discriminates messages on the peer-to-peer control channel.
type ControlType string

const (
	ControlLoad        ControlType = "load"
	ControlPlay        ControlType = "play"
	ControlPause       ControlType = "pause"
	ControlSeek        ControlType = "seek"
	ControlRate        ControlType = "rate"
	ControlRequestSync ControlType = "request-sync"
	ControlSyncState   ControlType = "sync-state"
	ControlCallOffer   ControlType = "call-offer"
	ControlCallAnswer  ControlType = "call-answer"
	ControlCallHangup  ControlType = "call-hangup"
)

// ControlMessage is the single tagged record exchanged on the control
// channel. Optional numeric fields are pointers so that a missing field can
// be told apart from a legitimate zero (position 0, rate 0, state ENDED);
// receivers skip absent fields instead of failing the whole message.
type ControlMessage struct {
	Type ControlType `json:"type"`

	// T0 is the sender's clock in milliseconds since epoch. It is a drift
	// hint only, never used for ordering.
	T0 int64 `json:"t0,omitempty"`

	VideoID string              `json:"videoId,omitempty"`
	Time    *float64            `json:"time,omitempty"`
	Rate    *float64            `json:"rate,omitempty"`
	State   *domain.PlayerState `json:"state,omitempty"`

	// Call signaling fields. Accepted is a pointer so a rejection
	// ("accepted":false) still appears on the wire.
	HasVideo  bool  `json:"hasVideo,omitempty"`
	Accepted  *bool `json:"accepted,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// IsCall reports whether the message belongs to the call protocol. Call
// messages are routed past the playback engine and must work even before any
// video is loaded.
func (m ControlMessage) IsCall() bool {
	switch m.Type {
	case ControlCallOffer, ControlCallAnswer, ControlCallHangup:
		return true
	}
	return false
}

func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }

func State(s domain.PlayerState) *domain.PlayerState { return &s }

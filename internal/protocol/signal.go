// Package protocol defines the wire schemas shared by the coordinator and
// the peers: the websocket signaling envelope and the messages that run over
// the peer-to-peer control and chat channels.
package protocol

// Signal message types on the coordinator websocket.
const (
	SignalJoin             = "join"
	SignalJoined           = "joined"
	SignalOffer            = "offer"
	SignalAnswer           = "answer"
	SignalCandidate        = "candidate"
	SignalPeerJoined       = "peer-joined"
	SignalPeerDisconnected = "peer-disconnected"
	SignalPing             = "ping"
	SignalPong             = "pong"
)

// Envelope is the minimal decode used to dispatch an inbound frame; each
// handler re-decodes the full payload it expects.
type Envelope struct {
	Type string `json:"type"`
}

type JoinRequest struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// JoinAck is the coordinator's answer to a join. ShouldCreateOffer tells the
// second arrival to start negotiation; the first arrival always gets false.
type JoinAck struct {
	Type              string `json:"type"`
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	ShouldCreateOffer bool   `json:"shouldCreateOffer"`
	Clients           int    `json:"clients,omitempty"`
}

// SessionSignal carries an SDP offer or answer. The coordinator never looks
// inside; it only forwards the raw frame to the other occupant.
type SessionSignal struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// CandidateSignal carries one ICE candidate, trickled as produced.
type CandidateSignal struct {
	Type          string  `json:"type"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Event is a payload-free room lifecycle notification (peer-joined,
// peer-disconnected, pong).
type Event struct {
	Type string `json:"type"`
}

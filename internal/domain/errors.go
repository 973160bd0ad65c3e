package domain

import "errors"

// Join errors carry the exact texts the join acknowledgment exposes to
// clients, so Error() can be written into the ack as-is.
var (
	ErrNoRoomID     = errors.New("No roomId provided.")
	ErrRoomFull     = errors.New("Room full (2 users max).")
	ErrTooManyJoins = errors.New("Too many join attempts.")
)

var (
	// ErrChannelNotReady means a control action was attempted before the
	// peer-to-peer control channel opened. The action is refused locally;
	// nothing goes over the wire.
	ErrChannelNotReady = errors.New("control channel not ready")

	// ErrCaptureUnavailable means local camera/microphone capture failed or
	// is not supported on this platform. Calls abort; there is no retry.
	ErrCaptureUnavailable = errors.New("capture device unavailable")

	// ErrCallInProgress means a call action required the idle state.
	ErrCallInProgress = errors.New("call already in progress")
)

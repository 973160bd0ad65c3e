package protocol

// ChatMessage travels on the dedicated chat channel, independent of the
// control stream. Nothing is persisted; history lives only in the two UIs.
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

package rtc

import "github.com/pion/webrtc/v4"

// Channel is the ordered, reliable message pipe the protocol engines write
// to. It exists as an interface so the engines can be tested against an
// in-memory pipe instead of a live data channel.
type Channel interface {
	Label() string
	Ready() bool
	Send([]byte) error
	OnOpen(func())
	OnClose(func())
	OnMessage(func([]byte))
	Close() error
}

type dataChannel struct {
	dc *webrtc.DataChannel
}

func wrapChannel(dc *webrtc.DataChannel) Channel {
	return &dataChannel{dc: dc}
}

func (c *dataChannel) Label() string { return c.dc.Label() }

func (c *dataChannel) Ready() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *dataChannel) Send(data []byte) error { return c.dc.Send(data) }

func (c *dataChannel) OnOpen(fn func()) { c.dc.OnOpen(fn) }

func (c *dataChannel) OnClose(fn func()) { c.dc.OnClose(fn) }

func (c *dataChannel) OnMessage(fn func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *dataChannel) Close() error { return c.dc.Close() }

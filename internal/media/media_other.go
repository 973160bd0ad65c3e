//go:build !linux || !cgo

package media

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/Rahul15205/youtube-stream/internal/call"
	"github.com/Rahul15205/youtube-stream/internal/domain"
)

// Engine on non-Linux platforms is receive-only: mediadevices needs
// platform drivers (V4L2/malgo) that are only wired up for Linux here.
// Calls can still be received; placing one fails with a capture error.
type Engine struct {
	api *webrtc.API
}

func NewEngine() (*Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Engine{api: api}, nil
}

func (e *Engine) API() *webrtc.API { return e.api }

func (e *Engine) Capture(bool) (call.Stream, error) {
	return nil, domain.ErrCaptureUnavailable
}

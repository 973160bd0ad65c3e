//go:build linux && cgo

// Package media acquires local camera/microphone tracks for calls. On Linux
// capture runs through pion/mediadevices (V4L2 + malgo); elsewhere the
// engine is receive-only and capture reports the device as unavailable.
package media

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/call"
	"github.com/Rahul15205/youtube-stream/internal/domain"
)

// Engine bundles a webrtc API whose media engine matches the capture codecs
// (VP8 + Opus) with the codec selector needed for GetUserMedia. The peer
// connection must be built from this API or SDP negotiation will not carry
// the captured tracks.
type Engine struct {
	api      *webrtc.API
	selector *mediadevices.CodecSelector
}

func NewEngine() (*Engine, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Engine{api: api, selector: selector}, nil
}

func (e *Engine) API() *webrtc.API { return e.api }

// Capture opens the microphone, and the camera when withVideo is set.
func (e *Engine) Capture(withVideo bool) (call.Stream, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Codec: e.selector,
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
	}
	if withVideo {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Raw formats only. Some cameras expose an MJPEG node that emits
			// malformed JPEG frames and poisons the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}

	tracks := stream.GetTracks()
	for _, t := range tracks {
		t.OnEnded(func(err error) {
			if err != nil {
				log.Warn().Err(err).Str("module", "media").Msg("local track ended")
			}
		})
	}
	log.Info().Str("module", "media").Int("tracks", len(tracks)).Bool("video", withVideo).Msg("local media captured")

	return &deviceStream{tracks: tracks}, nil
}

type deviceStream struct {
	tracks []mediadevices.Track
}

func (s *deviceStream) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *deviceStream) Close() {
	for _, t := range s.tracks {
		_ = t.Close()
	}
}

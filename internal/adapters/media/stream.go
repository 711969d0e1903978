package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stream is the local capture stream: one Opus track pumped from a Capture.
type Stream struct {
	id      string
	track   *webrtc.TrackLocalStaticSample
	state   trackState
	capture Capture

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newStream(capture Capture) (*Stream, error) {
	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio-"+id,
		"stream-"+id,
	)
	if err != nil {
		return nil, fmt.Errorf("new local track: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		id:      id,
		track:   track,
		capture: capture,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  log.With().Str("module", "media").Str("stream", id).Logger(),
	}
	go s.pump(ctx)
	return s, nil
}

// pump forwards capture frames to the track, replacing them with silence while muted.
func (s *Stream) pump(ctx context.Context) {
	defer close(s.done)
	for {
		frame, err := s.capture.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("capture read failed, stopping pump")
			}
			return
		}
		switch s.state.Get() {
		case TrackStateStopped:
			return
		case TrackStateMuted:
			frame = opusSilence
		case TrackStateLive:
		}
		if err := s.track.WriteSample(pmedia.Sample{Data: frame, Duration: FrameDuration}); err != nil {
			s.logger.Debug().Err(err).Msg("write sample")
		}
	}
}

func (s *Stream) ID() string               { return s.id }
func (s *Stream) Track() webrtc.TrackLocal { return s.track }
func (s *Stream) SetEnabled(enabled bool)  { s.state.SetEnabled(enabled) }
func (s *Stream) Enabled() bool            { return s.state.Get() == TrackStateLive }
func (s *Stream) Stopped() bool            { return s.state.Get() == TrackStateStopped }
func (s *Stream) State() TrackState        { return s.state.Get() }

// Stop releases the capture device and waits for the pump to exit.
func (s *Stream) Stop() {
	s.once.Do(func() {
		s.state.MarkStopped()
		s.cancel()
		if err := s.capture.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("capture close")
		}
		<-s.done
		s.logger.Info().Msg("stream stopped")
	})
}

package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Sink consumes the partner's audio packets.
type Sink interface {
	WriteRTP(pkt *rtp.Packet) error
}

// CountingSink discards audio but keeps totals, which is all a headless
// client can do with it.
type CountingSink struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func (s *CountingSink) WriteRTP(pkt *rtp.Packet) error {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
	return nil
}

func (s *CountingSink) Packets() uint64 { return s.packets.Load() }
func (s *CountingSink) Bytes() uint64   { return s.bytes.Load() }

// playback pumps one remote track into a sink.
type playback struct {
	src    *webrtc.TrackRemote
	sink   Sink
	logger zerolog.Logger
}

func newPlayback(src *webrtc.TrackRemote, sink Sink, logger zerolog.Logger) *playback {
	return &playback{
		src:    src,
		sink:   sink,
		logger: logger.With().Str("track_id", src.ID()).Logger(),
	}
}

// loop reads RTP packets from the remote track until ctx is done or the track ends.
func (pb *playback) loop(ctx context.Context) {
	pb.logger.Info().Msg("starting playback loop")
	for {
		select {
		case <-ctx.Done():
			pb.logger.Info().Msg("playback ctx done")
			return
		default:
		}
		pkt, _, err := pb.src.ReadRTP()
		if err != nil {
			pb.logger.Debug().Err(err).Msg("playback read RTP stopped")
			return
		}
		if err := pb.sink.WriteRTP(pkt); err != nil {
			pb.logger.Error().Err(err).Msg("playback sink write, stopping")
			return
		}
	}
}

package orch

import (
	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
)

// acquire opens the microphone off the loop and continues with next once the
// stream is installed. Results from a torn-down epoch are stopped and dropped.
func (o *Orchestrator) acquire(next func()) {
	o.acquireOr(next, nil)
}

// acquireOr is acquire with a dropped callback, run on the loop when next
// will never run.
func (o *Orchestrator) acquireOr(next, dropped func()) {
	epoch, ctx := o.epoch, o.epochCtx
	go func() {
		s, err := o.media.Acquire(ctx)
		o.post(func() { o.onAcquired(epoch, s, err, next, dropped) })
	}()
}

func (o *Orchestrator) onAcquired(epoch uint64, s core.LocalStream, err error, next, dropped func()) {
	if epoch != o.epoch {
		if s != nil {
			s.Stop()
		}
		if dropped != nil {
			dropped()
		}
		return
	}
	if err == nil && s.Stopped() {
		err = domain.Errorf(domain.KindDeviceUnavailable, "acquire", "stream stopped before use")
	}
	if err != nil {
		o.logger.Warn().Err(err).Msg("microphone unavailable")
		if dropped != nil {
			dropped()
		}
		o.fail(domain.KindDeviceUnavailable, domain.NoticeMicrophoneRequired)
		return
	}
	o.stream = s
	o.muted = false
	o.logger.Debug().Str("stream", s.ID()).Msg("stream ready")
	o.publish()
	next()
}

func (o *Orchestrator) streamLive() bool {
	return o.stream != nil && !o.stream.Stopped()
}

// releaseStream stops every track of the current stream.
func (o *Orchestrator) releaseStream() {
	o.media.Release()
	if o.stream != nil {
		o.stream.Stop()
		o.stream = nil
	}
	o.muted = false
}

func (o *Orchestrator) toggleMute() error {
	if !o.streamLive() {
		return nil
	}
	enabled := !o.stream.Enabled()
	o.stream.SetEnabled(enabled)
	o.muted = !enabled
	o.logger.Info().Bool("muted", o.muted).Msg("mute toggled")
	o.publish()
	return nil
}

// Package media manages the local capture device and its single live stream.
package media

import (
	"context"
	"sync"

	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/rs/zerolog/log"
)

var _ core.MediaManager = (*Manager)(nil)

type Manager struct {
	device Device

	mu      sync.Mutex
	current *Stream
}

func NewManager(device Device) *Manager {
	return &Manager{device: device}
}

// Acquire stops any live stream, then opens the device. Concurrent callers
// are serialized so the device is never opened twice.
func (m *Manager) Acquire(ctx context.Context) (core.LocalStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A canceled caller must not touch the stream a newer caller installed.
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindDeviceUnavailable, "acquire", err)
	}
	m.releaseLocked()

	capture, err := m.device.Open(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("device open failed")
		return nil, domain.Wrap(domain.KindDeviceUnavailable, "acquire", err)
	}
	if err := ctx.Err(); err != nil {
		_ = capture.Close()
		return nil, domain.Wrap(domain.KindDeviceUnavailable, "acquire", err)
	}
	s, err := newStream(capture)
	if err != nil {
		_ = capture.Close()
		return nil, domain.Wrap(domain.KindDeviceUnavailable, "acquire", err)
	}
	m.current = s
	log.Info().Str("module", "media").Str("stream", s.ID()).Msg("stream acquired")
	return s, nil
}

func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.current == nil {
		return
	}
	m.current.Stop()
	m.current = nil
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.Stopped()
}

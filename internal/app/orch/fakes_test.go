package orch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeStream struct {
	id      string
	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (s *fakeStream) ID() string               { return s.id }
func (s *fakeStream) Track() webrtc.TrackLocal { return nil }

func (s *fakeStream) SetEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
}

func (s *fakeStream) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeMedia struct {
	mu      sync.Mutex
	deny    bool
	current *fakeStream
	streams []*fakeStream
	log     []string
}

func (m *fakeMedia) Acquire(context.Context) (core.LocalStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.log = append(m.log, "acquire")
	if m.deny {
		return nil, domain.Wrap(domain.KindDeviceUnavailable, "acquire", fmt.Errorf("permission denied"))
	}
	s := &fakeStream{id: fmt.Sprintf("s%d", len(m.streams)+1), enabled: true}
	m.current = s
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMedia) setDeny(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deny = v
}

func (m *fakeMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *fakeMedia) releaseLocked() {
	if m.current == nil {
		return
	}
	m.current.Stop()
	m.current = nil
	m.log = append(m.log, "release")
}

func (m *fakeMedia) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.Stopped()
}

func (m *fakeMedia) acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *fakeMedia) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

func (m *fakeMedia) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

type emitted struct {
	t       domain.EventType
	payload any
}

type fakeSignal struct {
	connected atomic.Bool
	mu        sync.Mutex
	sent      []emitted
	failWith  map[domain.EventType]error
}

func newFakeSignal() *fakeSignal {
	s := &fakeSignal{failWith: make(map[domain.EventType]error)}
	s.connected.Store(true)
	return s
}

func (s *fakeSignal) Emit(t domain.EventType, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failWith[t]; err != nil {
		return err
	}
	s.sent = append(s.sent, emitted{t: t, payload: payload})
	return nil
}

func (s *fakeSignal) Connected() bool { return s.connected.Load() }

func (s *fakeSignal) count(t domain.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.sent {
		if e.t == t {
			n++
		}
	}
	return n
}

func (s *fakeSignal) last(t domain.EventType) (emitted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].t == t {
			return s.sent[i], true
		}
	}
	return emitted{}, false
}

func (s *fakeSignal) fail(t domain.EventType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith[t] = err
}

type fakeAttempt struct {
	id     string
	peer   domain.PeerID
	h      core.AttemptHandlers
	stream core.LocalStream
	closed atomic.Bool
}

func (a *fakeAttempt) ID() string          { return a.id }
func (a *fakeAttempt) Peer() domain.PeerID { return a.peer }

func (a *fakeAttempt) Close() error {
	a.closed.Store(true)
	return nil
}

func (a *fakeAttempt) remoteStream() { a.h.OnStream(a) }
func (a *fakeAttempt) remoteClose()  { a.h.OnClosed(a) }

type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	id       domain.PeerID
	calls    []*fakeAttempt
	callErr  error
	probes   int
	probeErr error
}

func (t *fakeTransport) ID() domain.PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ""
	}
	return t.id
}

func (t *fakeTransport) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) setOpen(id domain.PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = true
	t.id = id
}

func (t *fakeTransport) Call(target domain.PeerID, stream core.LocalStream, h core.AttemptHandlers) (core.CallAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.callErr != nil {
		return nil, t.callErr
	}
	a := &fakeAttempt{id: fmt.Sprintf("mc_%d", len(t.calls)+1), peer: target, h: h, stream: stream}
	t.calls = append(t.calls, a)
	return a, nil
}

func (t *fakeTransport) Probe(context.Context, domain.PeerID, time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probes++
	return t.probeErr
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *fakeTransport) call(i int) *fakeAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[i]
}

func (t *fakeTransport) probeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probes
}

type fakeIncoming struct {
	id       string
	peer     domain.PeerID
	mu       sync.Mutex
	attempt  *fakeAttempt
	rejected bool
}

func (in *fakeIncoming) ID() string          { return in.id }
func (in *fakeIncoming) Peer() domain.PeerID { return in.peer }

func (in *fakeIncoming) Answer(stream core.LocalStream, h core.AttemptHandlers) (core.CallAttempt, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if stream == nil || stream.Stopped() {
		return nil, fmt.Errorf("answer without a live stream")
	}
	in.attempt = &fakeAttempt{id: in.id, peer: in.peer, h: h, stream: stream}
	return in.attempt, nil
}

func (in *fakeIncoming) Reject() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rejected = true
}

func (in *fakeIncoming) answered() *fakeAttempt {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.attempt
}

func (in *fakeIncoming) wasRejected() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rejected
}

type memPrefs struct {
	mu    sync.Mutex
	p     domain.Preferences
	saves int
}

func newMemPrefs() *memPrefs { return &memPrefs{p: domain.DefaultPreferences()} }

func (m *memPrefs) Load() (domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p, nil
}

func (m *memPrefs) Save(p domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	m.saves++
	return nil
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	calls   []string
	sendErr error
	snap    domain.Snapshot
	updates chan domain.Snapshot
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		snap:    domain.Snapshot{Status: domain.StatusIdle, Theme: domain.ThemeDark},
		updates: make(chan domain.Snapshot, 4),
	}
}

func (f *fakeSession) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if name == "start" {
		f.snap.Status = domain.StatusSearching
	}
	return nil
}

func (f *fakeSession) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) RequestStart(context.Context) error { return f.record("start") }
func (f *fakeSession) RequestSkip(context.Context) error { return f.record("skip") }
func (f *fakeSession) RequestHangup(context.Context) error { return f.record("hangup") }
func (f *fakeSession) RequestHome(context.Context) error { return f.record("home") }
func (f *fakeSession) ToggleMute(context.Context) error { return f.record("mute") }
func (f *fakeSession) ToggleAutoReconnect(context.Context) error { return f.record("auto-reconnect") }
func (f *fakeSession) ToggleTheme(context.Context) error { return f.record("theme") }
func (f *fakeSession) MarkRead(context.Context) error { return f.record("read") }
func (f *fakeSession) DismissNotification(context.Context) error { return f.record("dismiss") }

func (f *fakeSession) SendText(_ context.Context, text string) error {
	_ = f.record("message:" + text)
	return f.sendErr
}

func (f *fakeSession) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Subscribe() (<-chan domain.Snapshot, func()) {
	return f.updates, func() {}
}

func newRouter(t *testing.T, s Session) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir()}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "randomic_probe_total", Help: "probe"}))
	return SetupRouter(context.Background(), cfg, s, reg)
}

func TestStateEndpoint(t *testing.T) {
	r := newRouter(t, newFakeSession())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newRouter(t, newFakeSession())

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestIntentsForward(t *testing.T) {
	s := newFakeSession()
	r := newRouter(t, s)

	for _, name := range []string{"start", "skip", "hangup", "home", "mute", "read", "dismiss", "auto-reconnect", "theme"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/"+name, nil))
		assert.Equal(t, http.StatusOK, w.Code, name)
	}

	assert.Equal(t, []string{"start", "skip", "hangup", "home", "mute", "read", "dismiss", "auto-reconnect", "theme"}, s.history())
	assert.Equal(t, domain.StatusSearching, s.Snapshot().Status)
}

func TestMessageStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"ok", `{"text":"hi"}`, nil, http.StatusOK},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"empty", `{"text":""}`, domain.ErrEmptyMessage, http.StatusBadRequest},
		{"not connected", `{"text":"hi"}`, domain.ErrNotConnected, http.StatusConflict},
		{"rate limited", `{"text":"hi"}`, domain.ErrRateLimited, http.StatusTooManyRequests},
		{"unreachable", `{"text":"hi"}`, domain.ErrSignalingUnreachable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession()
			s.sendErr = tt.err
			r := newRouter(t, s)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/message", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t, newFakeSession())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "randomic_probe_total")
}

func TestStateStream(t *testing.T) {
	s := newFakeSession()
	srv := httptest.NewServer(newRouter(t, s))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	s.updates <- domain.Snapshot{Status: domain.StatusConnected, CallDuration: 3}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snap domain.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, domain.StatusConnected, snap.Status)
	assert.Equal(t, 3, snap.CallDuration)
}

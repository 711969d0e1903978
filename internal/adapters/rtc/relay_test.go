package rtc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeRendezvous is a minimal PeerJS-style server: it registers ids, forwards
// frames by dst and answers EXPIRE for unknown targets.
type fakeRendezvous struct {
	mu     sync.Mutex
	peers  map[string]*relayConn
	taken  map[string]bool
	frames chan message
	opens  map[string]int
	down   bool
	url    string
}

type relayConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *relayConn) write(m message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteJSON(m)
}

func newFakeRendezvous(t *testing.T) *fakeRendezvous {
	t.Helper()
	f := &fakeRendezvous{
		peers:  make(map[string]*relayConn),
		taken:  make(map[string]bool),
		frames: make(chan message, 256),
		opens:  make(map[string]int),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.isDown() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.serve(ws, r.URL.Query().Get("id"))
	}))
	t.Cleanup(srv.Close)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/peerjs"
	return f
}

func (f *fakeRendezvous) serve(ws *websocket.Conn, id string) {
	conn := &relayConn{ws: ws}
	defer ws.Close()

	f.mu.Lock()
	if f.taken[id] {
		f.mu.Unlock()
		conn.write(message{Type: msgIDTaken})
		return
	}
	f.peers[id] = conn
	f.opens[id]++
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		if f.peers[id] == conn {
			delete(f.peers, id)
		}
		f.mu.Unlock()
	}()

	conn.write(message{Type: msgOpen})
	for {
		var m message
		if err := ws.ReadJSON(&m); err != nil {
			return
		}
		select {
		case f.frames <- m:
		default:
		}
		if m.Dst == "" {
			continue
		}
		f.mu.Lock()
		dst, ok := f.peers[m.Dst]
		f.mu.Unlock()
		if !ok {
			conn.write(message{Type: msgExpire, Src: m.Dst, Dst: id})
			continue
		}
		m.Src = id
		dst.write(m)
	}
}

func (f *fakeRendezvous) take(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taken[id] = true
}

func (f *fakeRendezvous) openCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[id]
}

func (f *fakeRendezvous) setDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = v
}

func (f *fakeRendezvous) isDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

// drop cuts id's socket without a close handshake.
func (f *fakeRendezvous) drop(id string) bool {
	f.mu.Lock()
	conn, ok := f.peers[id]
	f.mu.Unlock()
	if !ok {
		return false
	}
	_ = conn.ws.UnderlyingConn().Close()
	return true
}

func (f *fakeRendezvous) sendTo(id string, m message) bool {
	f.mu.Lock()
	conn, ok := f.peers[id]
	f.mu.Unlock()
	if !ok {
		return false
	}
	conn.write(m)
	return true
}

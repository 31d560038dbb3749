package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/store"
)

const writeTimeout = 5 * time.Second

// peer serializes writes to one connection; replies, routed replies and
// pushes may be written from different goroutines.
type peer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (p *peer) closeWith(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
}

// route resolves a session id to its authenticated peer. ready is closed
// once the session either authenticated (peer set) or was rejected.
type route struct {
	ready chan struct{}
	peer  *peer
}

type hub struct {
	mu     sync.Mutex
	routes map[string]*route
	subs   map[string]map[string]struct{} // pattern -> session ids
}

func newHub() *hub {
	return &hub{
		routes: make(map[string]*route),
		subs:   make(map[string]map[string]struct{}),
	}
}

func (h *hub) routeLocked(id string) *route {
	r, ok := h.routes[id]
	if !ok {
		r = &route{ready: make(chan struct{})}
		h.routes[id] = r
	}
	return r
}

// attach registers an authenticated session. It fails if id is already
// bound to another peer.
func (h *hub) attach(id string, p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.routeLocked(id)
	select {
	case <-r.ready:
		return false
	default:
	}
	p.id = id
	r.peer = p
	close(r.ready)
	return true
}

// reject releases command connections waiting on a session that failed to
// authenticate.
func (h *hub) reject(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.routes[id]
	if !ok {
		return
	}
	select {
	case <-r.ready:
		return
	default:
	}
	close(r.ready)
	delete(h.routes, id)
}

// detach forgets a session and its subscriptions.
func (h *hub) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.routes, id)
	for pattern, ids := range h.subs {
		delete(ids, id)
		if len(ids) == 0 {
			delete(h.subs, pattern)
		}
	}
}

// await returns the peer of session id, waiting up to wait for the session
// to finish authenticating. It returns nil when no such session shows up.
func (h *hub) await(ctx context.Context, id string, wait time.Duration) *peer {
	h.mu.Lock()
	r := h.routeLocked(id)
	h.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-r.ready:
		h.mu.Lock()
		defer h.mu.Unlock()
		return r.peer
	case <-timer.C:
	case <-ctx.Done():
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.routes[id] == r && r.peer == nil {
		delete(h.routes, id)
	}
	return r.peer
}

func (h *hub) subscribe(id string, patterns []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range patterns {
		ids, ok := h.subs[p]
		if !ok {
			ids = make(map[string]struct{})
			h.subs[p] = ids
		}
		ids[id] = struct{}{}
	}
}

func (h *hub) unsubscribe(id string, patterns []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range patterns {
		if ids, ok := h.subs[p]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(h.subs, p)
			}
		}
	}
}

func (h *hub) subscriptions() map[string][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]string, len(h.subs))
	for pattern, ids := range h.subs {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		out[pattern] = list
	}
	return out
}

// subscribers returns the live peers subscribed to key directly or through
// a wildcard pattern.
func (h *hub) subscribers(key string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[string]struct{})
	var out []*peer
	for pattern, ids := range h.subs {
		if !matchPattern(pattern, key) {
			continue
		}
		for id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if r, ok := h.routes[id]; ok && r.peer != nil {
				out = append(out, r.peer)
			}
		}
	}
	return out
}

func (h *hub) closeAll() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.routes))
	for _, r := range h.routes {
		if r.peer != nil {
			peers = append(peers, r.peer)
		}
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.closeWith(websocket.CloseGoingAway, "Server shutdown")
		_ = p.conn.Close()
	}
}

// matchPattern reports whether a subscription pattern covers key. A "*"
// segment matches any one segment; a trailing "*" matches one or more.
func matchPattern(pattern, key string) bool {
	if pattern == key {
		return true
	}
	ps := strings.Split(pattern, store.Sep)
	ks := strings.Split(key, store.Sep)
	for i, seg := range ps {
		if i >= len(ks) {
			return false
		}
		last := i == len(ps)-1
		if seg == "*" {
			if last {
				return true
			}
			continue
		}
		if seg != ks[i] {
			return false
		}
		if last {
			return len(ks) == len(ps)
		}
	}
	return false
}

package client

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/protocol"
	"github.com/loganszeto/mgindb-go/internal/server"
	"github.com/loganszeto/mgindb-go/internal/stats"
	"github.com/loganszeto/mgindb-go/internal/store"
)

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func optionsFor(t *testing.T, rawURL string) Options {
	t.Helper()
	u, err := url.Parse(rawURL)
	checkErr(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	checkErr(t, err)
	port, err := strconv.Atoi(portStr)
	checkErr(t, err)
	return Options{Host: host, Port: port}
}

// startServer runs the in-memory MginDB server and returns options that
// point at it.
func startServer(t *testing.T, opts server.Options) Options {
	t.Helper()
	if opts.RouteWait == 0 {
		opts.RouteWait = 200 * time.Millisecond
	}
	srv := server.New("", store.NewMemTable(), nil, stats.New(), opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return optionsFor(t, ts.URL)
}

// fakeServer answers every command line with a fixed reply on the last
// logged in session and records the lines it received.
type fakeServer struct {
	reply   string
	onLogin func(conn *websocket.Conn)
	lines   chan string
	logins  chan string

	once    sync.Once
	ready   chan struct{}
	mu      sync.Mutex
	session *websocket.Conn
}

func newFakeServer(t *testing.T, reply string) (*fakeServer, Options) {
	t.Helper()
	f := &fakeServer{
		reply:  reply,
		lines:  make(chan string, 64),
		logins: make(chan string, 8),
		ready:  make(chan struct{}),
	}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	return f, optionsFor(t, ts.URL)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var up websocket.Upgrader
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_, first, err := conn.ReadMessage()
	if err != nil {
		return
	}

	if _, ok := protocol.ParseCredentials(first); ok {
		select {
		case f.logins <- string(first):
		default:
		}
		f.mu.Lock()
		f.session = conn
		if f.onLogin != nil {
			f.onLogin(conn)
		}
		f.mu.Unlock()
		f.once.Do(func() { close(f.ready) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}

	f.lines <- string(first)
	if f.reply == "" {
		return
	}
	select {
	case <-f.ready:
	case <-time.After(2 * time.Second):
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.session.WriteMessage(websocket.TextMessage, []byte(f.reply))
}

func (f *fakeServer) line(t *testing.T) string {
	t.Helper()
	select {
	case l := <-f.lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatalf("no command line received")
		return ""
	}
}

package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/server"
)

func TestOptionsURL(t *testing.T) {
	for _, tc := range []struct {
		opts Options
		want string
	}{
		{Options{Host: "localhost"}, "ws://localhost:6446"},
		{Options{Scheme: "wss", Host: "db.example.com", Port: 443}, "wss://db.example.com:443"},
		{Options{Host: "::1", Port: 7000}, "ws://[::1]:7000"},
	} {
		if got := tc.opts.URL(); got != tc.want {
			t.Errorf("URL() = %q, want %q", got, tc.want)
		}
	}
}

func TestOpenUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	checkErr(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewSession(Options{Host: "127.0.0.1", Port: port})
	_, err = s.Open(context.Background())
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if ce.Addr != "ws://127.0.0.1:"+strconv.Itoa(port) {
		t.Fatalf("addr = %q", ce.Addr)
	}
	if s.IsOpen() {
		t.Fatalf("session should not be open")
	}
}

func TestOpenSendsCredentials(t *testing.T) {
	f, opts := newFakeServer(t, "")
	opts.Username, opts.Password = "admin", "secret"

	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()

	select {
	case got := <-f.logins:
		if got != `{"username":"admin","password":"secret"}` {
			t.Fatalf("credentials = %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw a login")
	}
}

func TestStreamOrder(t *testing.T) {
	skipShort(t)
	const n = 200
	f, opts := newFakeServer(t, "")
	f.onLogin = func(conn *websocket.Conn) {
		go func() {
			_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
			for i := 0; i < n; i++ {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(strconv.Itoa(i))); err != nil {
					return
				}
			}
		}()
	}
	opts.BufferSize = 4

	s := NewSession(opts)
	msgs, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()

	for i := 0; i < n; i++ {
		select {
		case m := <-msgs:
			if m != strconv.Itoa(i) {
				t.Fatalf("frame %d = %q", i, m)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestOpenTwiceReturnsSameStream(t *testing.T) {
	opts := startServer(t, server.Options{})
	s := NewSession(opts)
	a, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	id := s.ID()

	b, err := s.Open(context.Background())
	checkErr(t, err)
	if a != b || s.ID() != id {
		t.Fatalf("second Open replaced the live connection")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	opts := startServer(t, server.Options{})
	s := NewSession(opts)
	checkErr(t, s.Close())

	msgs, err := s.Open(context.Background())
	checkErr(t, err)
	checkErr(t, s.Close())
	checkErr(t, s.Close())
	if s.IsOpen() {
		t.Fatalf("closed session reports open")
	}

	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatalf("unexpected frame after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream not closed after Close")
	}
}

func TestReopen(t *testing.T) {
	opts := startServer(t, server.Options{})
	s := NewSession(opts)
	c := New(s)
	ctx := context.Background()

	_, err := s.Open(ctx)
	checkErr(t, err)
	first := s.ID()
	checkErr(t, s.Close())

	_, err = s.Open(ctx)
	checkErr(t, err)
	defer s.Close()
	if s.ID() == first {
		t.Fatalf("reopened session kept id %s", first)
	}
	got, err := c.Keys(ctx)
	checkErr(t, err)
	if got != "[]" {
		t.Fatalf("KEYS = %q", got)
	}
}

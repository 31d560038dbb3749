package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loganszeto/mgindb-go/internal/protocol"
	"github.com/loganszeto/mgindb-go/internal/server"
)

func TestCommandLines(t *testing.T) {
	f, opts := newFakeServer(t, "OK")
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	c := New(s)
	ctx := context.Background()

	for i, tc := range []struct {
		call func() (string, error)
		want string
	}{
		{func() (string, error) { return c.Set(ctx, "user:1", `{ "name": "ann", "tags": [ "a" ] }`) }, `SET user:1 {"name":"ann","tags":["a"]}`},
		{func() (string, error) { return c.Set(ctx, "k", "v") }, "SET k v"},
		{func() (string, error) { return c.Set(ctx, "greeting", "hello world") }, "SET greeting hello world"},
		{func() (string, error) { return c.Delete(ctx, "k") }, "DEL k"},
		{func() (string, error) { return c.Query(ctx, "myKey", "", "") }, "QUERY myKey"},
		{func() (string, error) { return c.Query(ctx, "myKey", "age>30", "LIMIT 10") }, "QUERY myKey age>30 LIMIT 10"},
		{func() (string, error) { return c.Query(ctx, "myKey", "", "LIMIT 10") }, "QUERY myKey LIMIT 10"},
		{func() (string, error) { return c.Incr(ctx, "counter", "1") }, "INCR counter 1"},
		{func() (string, error) { return c.Decr(ctx, "counter", "2") }, "DECR counter 2"},
		{func() (string, error) { return c.Delete(ctx, "user:1") }, "DEL user:1"},
		{func() (string, error) { return c.Count(ctx, "users") }, "COUNT users"},
		{func() (string, error) { return c.Indices(ctx, "LIST", "", "") }, "INDICES LIST"},
		{func() (string, error) { return c.Indices(ctx, "CREATE", "users:city", "string") }, "INDICES CREATE users:city string"},
		{func() (string, error) { return c.Schedule(ctx, "SHOW", "ALL", "") }, "SCHEDULE SHOW ALL"},
		{func() (string, error) { return c.Sub(ctx, "users:*") }, "SUB users:*"},
		{func() (string, error) { return c.Unsub(ctx, "users:*") }, "UNSUB users:*"},
		{func() (string, error) { return c.SubList(ctx) }, "SUBLIST"},
		{func() (string, error) { return c.Keys(ctx) }, "KEYS"},
		{func() (string, error) { return c.Rename(ctx, "users:1", "2") }, "RENAME users:1 TO 2"},
		{func() (string, error) { return c.FlushAll(ctx) }, "FLUSHALL"},
		{func() (string, error) { return c.SendCommand(ctx, "PING", "", "") }, "PING"},
	} {
		reply, err := tc.call()
		if err != nil {
			t.Fatalf("[%d] %s: %v", i, tc.want, err)
		}
		if reply != "OK" {
			t.Errorf("[%d] reply = %q", i, reply)
		}
		if got := f.line(t); got != tc.want {
			t.Errorf("[%d] sent %q, want %q", i, got, tc.want)
		}
	}
}

func TestCommandsRoundTrip(t *testing.T) {
	skipShort(t)
	opts := startServer(t, server.Options{Username: "admin", Password: "secret"})
	opts.Username, opts.Password = "admin", "secret"
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	c := New(s)
	ctx := context.Background()

	for i, tc := range []struct {
		call func() (string, error)
		want string
	}{
		{func() (string, error) { return c.Set(ctx, "users:1", `{ "name": "ann", "age": 30 }`) }, "OK"},
		{func() (string, error) { return c.Query(ctx, "users:1", "", "") }, `{"age":30,"name":"ann"}`},
		{func() (string, error) { return c.Query(ctx, "users", "age>20", "LIMIT 1") }, `{"1":{"age":30,"name":"ann"}}`},
		{func() (string, error) { return c.Incr(ctx, "users:1:age", "2") }, "OK"},
		{func() (string, error) { return c.Decr(ctx, "users:1:age", "1") }, "OK"},
		{func() (string, error) { return c.Query(ctx, "users:1:age", "", "") }, "31"},
		{func() (string, error) { return c.Count(ctx, "users") }, "1"},
		{func() (string, error) { return c.Keys(ctx) }, `["users"]`},
		{func() (string, error) { return c.Rename(ctx, "users:1", "2") }, "RENAME successful: 2 keys renamed."},
		{func() (string, error) { return c.Indices(ctx, "CREATE", "users:name", "string") }, "OK"},
		{func() (string, error) { return c.Indices(ctx, "GET", "users:name", "") }, `{"data":{"ann":"users:2"},"type":"string"}`},
		{func() (string, error) { return c.Schedule(ctx, "ADD", "0 0 * * *", "COMMAND(DEL users:2)") }, "OK"},
		{func() (string, error) { return c.Schedule(ctx, "SHOW", "ALL", "") }, `{"0 0 * * *":{"users:2":{"command":"DEL users:2"}}}`},
		{func() (string, error) { return c.SubList(ctx) }, "{}"},
		{func() (string, error) { return c.Delete(ctx, "users:2") }, "OK"},
		{func() (string, error) { return c.Delete(ctx, "users:2") }, "ERROR: Key does not exist"},
		{func() (string, error) { return c.FlushAll(ctx) }, "OK"},
		{func() (string, error) { return c.Keys(ctx) }, "[]"},
	} {
		got, err := tc.call()
		if err != nil {
			t.Fatalf("[%d] unexpected error: %v", i, err)
		}
		if got != tc.want {
			t.Errorf("[%d] got %q, want %q", i, got, tc.want)
		}
	}
}

func TestSubscriptionPush(t *testing.T) {
	skipShort(t)
	opts := startServer(t, server.Options{})
	ctx := context.Background()

	listener := NewSession(opts)
	_, err := listener.Open(ctx)
	checkErr(t, err)
	defer listener.Close()
	sub := New(listener)

	writer := NewSession(opts)
	_, err = writer.Open(ctx)
	checkErr(t, err)
	defer writer.Close()
	pub := New(writer)

	reply, err := sub.Sub(ctx, "users:*")
	checkErr(t, err)
	if reply != "OK" {
		t.Fatalf("SUB reply = %q", reply)
	}
	reply, err = pub.Set(ctx, "users:1:name", "ann")
	checkErr(t, err)
	if reply != "OK" {
		t.Fatalf("SET reply = %q", reply)
	}

	ctx2, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	frame, err := sub.Next(ctx2)
	checkErr(t, err)
	p, ok := protocol.DecodePush(frame)
	if !ok || p.Key != "users:1:name" || p.Data != "ann" {
		t.Fatalf("push = %q", frame)
	}
}

// Replies pair with commands purely by arrival order, so a greeting or a
// push sitting on the stream is returned as the next command's reply.
func TestWelcomeTakesFirstReply(t *testing.T) {
	opts := startServer(t, server.Options{Welcome: protocol.Welcome})
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	c := New(s)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i, want := range []string{protocol.Welcome, "OK", "v"} {
		var got string
		switch i {
		case 0:
			got, err = c.Set(ctx, "k", "v")
		case 1:
			got, err = c.Query(ctx, "k", "", "")
		default:
			got, err = c.Next(ctx)
		}
		checkErr(t, err)
		if got != want {
			t.Fatalf("[%d] got %q, want %q", i, got, want)
		}
	}
}

func TestOwnPushTakesReply(t *testing.T) {
	opts := startServer(t, server.Options{})
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	c := New(s)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := c.Sub(ctx, "k")
	checkErr(t, err)
	if reply != "OK" {
		t.Fatalf("SUB reply = %q", reply)
	}

	reply, err = c.Set(ctx, "k", "v")
	checkErr(t, err)
	p, ok := protocol.DecodePush(reply)
	if !ok || p.Key != "k" || p.Data != "v" {
		t.Fatalf("Set returned %q, want the push frame", reply)
	}
	reply, err = c.Next(ctx)
	checkErr(t, err)
	if reply != "OK" {
		t.Fatalf("trailing reply = %q", reply)
	}
}

func TestAuthFailureClosesStream(t *testing.T) {
	opts := startServer(t, server.Options{Username: "admin", Password: "secret"})
	opts.Username, opts.Password = "admin", "wrong"
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()
	c := New(s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := c.Next(ctx)
	checkErr(t, err)
	if msg != protocol.AuthFailed {
		t.Fatalf("got %q", msg)
	}
	_, err = c.Next(ctx)
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply after rejection, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	opts := startServer(t, server.Options{})
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	checkErr(t, s.Close())

	_, err = New(s).SendCommand(context.Background(), protocol.VerbKeys)
	var nre *NoReplyError
	if !errors.As(err, &nre) || !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected NoReplyError, got %v", err)
	}
	if nre.Command != "KEYS" {
		t.Fatalf("command = %q", nre.Command)
	}
}

func TestSendWithoutOpen(t *testing.T) {
	opts := startServer(t, server.Options{})
	_, err := New(NewSession(opts)).Keys(context.Background())
	if !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestSendUnreachable(t *testing.T) {
	_, opts := newFakeServer(t, "OK")
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()

	// point the command side at a closed port
	s.opts.Port = 1
	_, err = New(s).Keys(context.Background())
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if se.Command != "KEYS" {
		t.Fatalf("command = %q", se.Command)
	}
}

func TestReplyTimeout(t *testing.T) {
	f, opts := newFakeServer(t, "")
	s := NewSession(opts)
	_, err := s.Open(context.Background())
	checkErr(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = New(s).Count(ctx, "users")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if got := f.line(t); got != "COUNT users" {
		t.Fatalf("sent %q", got)
	}
}

package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/protocol"
)

const closeGrace = time.Second

// Session owns the authenticated connection to an MginDB endpoint and the
// stream of text frames read from it.
//
// A Session holds at most one live connection. Open dials and sends the
// credentials; Close releases the connection. A closed session can be opened
// again, which authenticates a new connection under a new identifier.
type Session struct {
	opts Options

	mu    sync.Mutex
	conn  *websocket.Conn
	id    string
	msgs  chan string
	done  chan struct{} // closed by Close
	ended chan struct{} // closed when the read loop exits
}

func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Open performs the WebSocket handshake, writes the credential payload and
// starts the read loop. It does not wait for any acknowledgement: a rejected
// login only shows up in later replies.
//
// Calling Open on an open session returns the existing stream.
func (s *Session) Open(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !isClosed(s.ended) {
		return s.msgs, nil
	}
	s.release()

	addr := s.opts.URL()
	id := uuid.NewString()
	conn, _, err := s.opts.dialer().DialContext(ctx, addr, sessionHeader(id))
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	payload, err := protocol.EncodeCredentials(s.opts.Username, s.opts.Password)
	if err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	s.conn = conn
	s.id = id
	s.msgs = make(chan string, s.opts.bufferSize())
	s.done = make(chan struct{})
	s.ended = make(chan struct{})
	go readLoop(conn, s.msgs, s.done, s.ended)
	return s.msgs, nil
}

// readLoop is the only producer of msgs. It forwards text frames in order
// and closes msgs when the connection fails or the session is closed.
func readLoop(conn *websocket.Conn, msgs chan<- string, done <-chan struct{}, ended chan<- struct{}) {
	defer close(ended)
	defer close(msgs)
	for {
		typ, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case msgs <- string(payload):
		case <-done:
			return
		}
	}
}

// Close releases the connection and stops the read loop. Closing a closed
// or never-opened session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	close(s.done)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return conn.Close()
}

// release drops a connection whose read loop already ended.
func (s *Session) release() {
	if s.conn == nil {
		return
	}
	close(s.done)
	_ = s.conn.Close()
	s.conn = nil
}

// IsOpen reports whether the session holds a connection with a running
// read loop.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !isClosed(s.ended)
}

// Messages returns the inbound stream of the current or last connection,
// or nil if the session was never opened.
func (s *Session) Messages() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs
}

// ID returns the identifier of the current or last connection.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) URL() string {
	return s.opts.URL()
}

// next takes one element off the inbound stream. An explicitly closed
// session never hands out frames still sitting in the buffer.
func (s *Session) next(ctx context.Context) (string, error) {
	s.mu.Lock()
	msgs, done := s.msgs, s.done
	s.mu.Unlock()

	if msgs == nil {
		return "", ErrNotOpen
	}
	if isClosed(done) {
		return "", ErrNoReply
	}
	select {
	case msg, ok := <-msgs:
		if !ok {
			return "", ErrNoReply
		}
		return msg, nil
	case <-done:
		return "", ErrNoReply
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func sessionHeader(id string) http.Header {
	h := http.Header{}
	if id != "" {
		h.Set(SessionHeader, id)
	}
	return h
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

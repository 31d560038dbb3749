package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/logger"
	"github.com/loganszeto/mgindb-go/internal/protocol"
)

// handleWS serves one connection. The first frame decides its role:
//
//   - a credential payload makes it a session, answered on itself;
//   - any other frame on a connection whose session header names a live
//     session makes it a command connection, answered on that session;
//   - otherwise the first frame is taken as credentials, as the real server
//     does.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Err("upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	s.stats.RecordConnection()

	p := &peer{conn: conn}
	id := r.Header.Get(protocol.SessionHeader)

	first, err := readFrame(conn)
	if err != nil {
		return
	}

	creds, isCreds := protocol.ParseCredentials(first)
	if !isCreds && id != "" {
		if owner := s.hub.await(r.Context(), id, s.opts.RouteWait); owner != nil {
			s.serveCommands(conn, owner, first)
			return
		}
	}

	if !s.authorize(creds, isCreds) {
		s.stats.RecordAuthFailure()
		msg := protocol.AuthFailed
		if !isCreds {
			msg = protocol.AuthRequired
		}
		if isCreds && id != "" {
			s.hub.reject(id)
		}
		_ = p.send(msg)
		p.closeWith(websocket.ClosePolicyViolation, "")
		return
	}

	// the greeting precedes any reply routed to this session
	if s.opts.Welcome != "" {
		if err := p.send(s.opts.Welcome); err != nil {
			if isCreds && id != "" {
				s.hub.reject(id)
			}
			return
		}
	}

	// only a credential frame may claim the id from the handshake header
	if !isCreds || id == "" || !s.hub.attach(id, p) {
		id = uuid.NewString()
		s.hub.attach(id, p)
	}
	defer s.hub.detach(id)
	logger.Trace("session %s opened from %s", id, r.RemoteAddr)
	for {
		payload, err := readFrame(conn)
		if err != nil {
			logger.Trace("session %s closed: %v", id, err)
			return
		}
		if err := p.send(s.execute(id, payload)); err != nil {
			return
		}
	}
}

// serveCommands executes every frame on conn, starting with first, and
// writes the replies to owner.
func (s *Server) serveCommands(conn *websocket.Conn, owner *peer, first []byte) {
	payload := first
	for {
		if err := owner.send(s.execute(owner.id, payload)); err != nil {
			logger.Trace("reply to session %s dropped: %v", owner.id, err)
		}
		var err error
		if payload, err = readFrame(conn); err != nil {
			return
		}
	}
}

func (s *Server) authorize(c protocol.Credentials, ok bool) bool {
	if s.opts.Username == "" && s.opts.Password == "" {
		return true
	}
	return ok && c.Username == s.opts.Username && c.Password == s.opts.Password
}

// readFrame returns the next text or binary frame.
func readFrame(conn *websocket.Conn) ([]byte, error) {
	for {
		typ, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

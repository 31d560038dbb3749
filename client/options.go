package client

import (
	"net"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/protocol"
)

const (
	DefaultScheme     = "ws"
	DefaultPort       = 6446
	DefaultBufferSize = 32
)

// SessionHeader carries the session identifier on every handshake so a
// server can route replies for per-command connections back to the session.
// Servers that do not know it ignore it.
const SessionHeader = protocol.SessionHeader

// Options configures a Session. Zero values fall back to the defaults above
// and to websocket.DefaultDialer.
type Options struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string

	// BufferSize bounds the inbound stream. A full stream blocks the read
	// loop until a consumer catches up.
	BufferSize int

	Dialer *websocket.Dialer
}

// URL returns the endpoint as scheme://host:port.
func (o Options) URL() string {
	scheme := o.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(o.Host, strconv.Itoa(port))}
	return u.String()
}

func (o Options) dialer() *websocket.Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	return websocket.DefaultDialer
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}

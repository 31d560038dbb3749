package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReply is wrapped by NoReplyError when the inbound stream closes
	// before a reply arrives.
	ErrNoReply = errors.New("inbound stream closed before reply")
	// ErrNotOpen is returned when a session has never been opened.
	ErrNotOpen = errors.New("session not open")
)

// ConnectionError reports a failed handshake or credential write on the
// session connection.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a failed dial or write on a per-command connection.
type SendError struct {
	Addr    string
	Command string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %q to %s: %v", e.Command, e.Addr, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// NoReplyError reports that no reply could be read for Command.
type NoReplyError struct {
	Command string
	Err     error
}

func (e *NoReplyError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *NoReplyError) Unwrap() error { return e.Err }

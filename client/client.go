package client

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/mgindb-go/internal/protocol"
)

// Client formats MginDB commands and pairs each one with the next frame on
// a borrowed Session's inbound stream.
//
// Every command is written on a fresh connection to the session endpoint,
// while the reply is read from the session stream. Pairing is purely by
// order: replies, replies to other callers and subscription pushes share one
// FIFO queue, so callers that need correct correlation must not issue
// commands concurrently.
type Client struct {
	s *Session
}

func New(s *Session) *Client {
	return &Client{s: s}
}

func (c *Client) Session() *Session {
	return c.s
}

// SendCommand formats verb and the non-empty args into one line, sends it
// and returns the next inbound frame unparsed.
func (c *Client) SendCommand(ctx context.Context, verb string, args ...string) (string, error) {
	return c.SendRaw(ctx, protocol.Format(verb, args...))
}

// SendRaw sends an already formatted command line.
func (c *Client) SendRaw(ctx context.Context, line string) (string, error) {
	if err := c.write(ctx, line); err != nil {
		return "", err
	}
	reply, err := c.s.next(ctx)
	if err != nil {
		if errors.Is(err, ErrNoReply) || errors.Is(err, ErrNotOpen) {
			return "", &NoReplyError{Command: line, Err: err}
		}
		return "", err
	}
	return reply, nil
}

// Next returns the next inbound frame without sending anything. It is how
// subscription pushes are consumed.
func (c *Client) Next(ctx context.Context) (string, error) {
	reply, err := c.s.next(ctx)
	if err != nil && (errors.Is(err, ErrNoReply) || errors.Is(err, ErrNotOpen)) {
		return "", &NoReplyError{Err: err}
	}
	return reply, err
}

func (c *Client) write(ctx context.Context, line string) error {
	addr := c.s.URL()
	conn, _, err := c.s.opts.dialer().DialContext(ctx, addr, sessionHeader(c.s.ID()))
	if err != nil {
		return &SendError{Addr: addr, Command: line, Err: err}
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return &SendError{Addr: addr, Command: line, Err: err}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return nil
}

func (c *Client) Set(ctx context.Context, key, value string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbSet, key, protocol.CompactValue(value))
}

// Indices manages secondary indices. key and value may be empty.
func (c *Client) Indices(ctx context.Context, action, key, value string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbIndices, action, key, value)
}

func (c *Client) Incr(ctx context.Context, key, value string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbIncr, key, value)
}

func (c *Client) Decr(ctx context.Context, key, value string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbDecr, key, value)
}

func (c *Client) Delete(ctx context.Context, key string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbDel, key)
}

// Query reads key. queryString and options may be empty.
func (c *Client) Query(ctx context.Context, key, queryString, options string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbQuery, key, queryString, options)
}

func (c *Client) Count(ctx context.Context, key string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbCount, key)
}

// Schedule manages scheduled commands. cronOrKey and command may be empty.
func (c *Client) Schedule(ctx context.Context, action, cronOrKey, command string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbSchedule, action, cronOrKey, command)
}

// Sub subscribes the session to key. Notifications arrive on the same
// stream as replies; read them with Next.
func (c *Client) Sub(ctx context.Context, key string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbSub, key)
}

func (c *Client) Unsub(ctx context.Context, key string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbUnsub, key)
}

func (c *Client) SubList(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, protocol.VerbSubList)
}

func (c *Client) Keys(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, protocol.VerbKeys)
}

func (c *Client) Rename(ctx context.Context, path, newKey string) (string, error) {
	return c.SendCommand(ctx, protocol.VerbRename, path, "TO", newKey)
}

func (c *Client) FlushAll(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, protocol.VerbFlushAll)
}

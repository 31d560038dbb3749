package stats

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Stats counts commands by verb along with pushes, auth failures and
// errors. It is safe for concurrent use.
type Stats struct {
	mu       sync.Mutex
	commands map[string]*atomic.Int64

	pushes      atomic.Int64
	authFailed  atomic.Int64
	errors      atomic.Int64
	connections atomic.Int64
}

func New() *Stats {
	return &Stats{commands: make(map[string]*atomic.Int64)}
}

func (s *Stats) RecordCommand(verb string) {
	s.mu.Lock()
	c, ok := s.commands[verb]
	if !ok {
		c = new(atomic.Int64)
		s.commands[verb] = c
	}
	s.mu.Unlock()
	c.Add(1)
}

func (s *Stats) RecordPush() {
	s.pushes.Add(1)
}

func (s *Stats) RecordAuthFailure() {
	s.authFailed.Add(1)
}

func (s *Stats) RecordError() {
	s.errors.Add(1)
}

func (s *Stats) RecordConnection() {
	s.connections.Add(1)
}

// Snapshot returns the counters keyed by lower-case name; command counters
// are prefixed with "cmd_".
func (s *Stats) Snapshot() map[string]int64 {
	out := map[string]int64{
		"pushes":      s.pushes.Load(),
		"auth_failed": s.authFailed.Load(),
		"errors":      s.errors.Load(),
		"connections": s.connections.Load(),
	}
	s.mu.Lock()
	for verb, c := range s.commands {
		out["cmd_"+strings.ToLower(verb)] = c.Load()
	}
	s.mu.Unlock()
	return out
}

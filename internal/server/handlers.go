package server

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/loganszeto/mgindb-go/internal/logger"
	"github.com/loganszeto/mgindb-go/internal/persistence"
	"github.com/loganszeto/mgindb-go/internal/protocol"
	"github.com/loganszeto/mgindb-go/internal/store"
)

// multiSep joins several SET, DEL, INCR or DECR operations in one line.
const multiSep = "|"

var errNotNumber = errors.New("value is not a number")

// execute runs one command line for session sid and returns the reply text.
func (s *Server) execute(sid string, payload []byte) string {
	req, err := protocol.ParseLine(string(payload))
	if err != nil {
		s.stats.RecordError()
		return protocol.InvalidCommand
	}
	s.stats.RecordCommand(req.Verb)
	reply := s.dispatch(sid, req)
	if req.Mutating() && s.wal != nil {
		if err := s.wal.Commit(context.Background()); err != nil {
			s.stats.RecordError()
			return "ERROR: persistence upload failed: " + err.Error()
		}
	}
	return reply
}

func (s *Server) dispatch(sid string, req protocol.Request) string {
	switch req.Type {
	case protocol.CmdSet:
		return each(req.Args, s.set)
	case protocol.CmdQuery:
		return s.query(req.Args)
	case protocol.CmdIncr:
		return each(req.Args, func(cmd string) string { return s.incr(cmd, true) })
	case protocol.CmdDecr:
		return each(req.Args, func(cmd string) string { return s.incr(cmd, false) })
	case protocol.CmdDel:
		return each(req.Args, s.del)
	case protocol.CmdCount:
		return s.count(req.Args)
	case protocol.CmdKeys:
		return s.keys()
	case protocol.CmdRename:
		return s.rename(req.Args)
	case protocol.CmdFlushAll:
		return s.flushAll()
	case protocol.CmdIndices:
		return s.indices.command(s.st, req.Args)
	case protocol.CmdSchedule:
		return s.schedule.command(req.Args)
	case protocol.CmdSub:
		keys := protocol.SplitList(req.Args)
		if len(keys) == 0 {
			return "ERROR: Missing keys for SUB command"
		}
		s.hub.subscribe(sid, keys)
		return "OK"
	case protocol.CmdUnsub:
		keys := protocol.SplitList(req.Args)
		if len(keys) == 0 {
			return "ERROR: Missing keys for UNSUB command"
		}
		s.hub.unsubscribe(sid, keys)
		return "OK"
	case protocol.CmdSubList:
		return toJSON(s.hub.subscriptions())
	default:
		s.stats.RecordError()
		return protocol.InvalidCommand
	}
}

func each(args string, fn func(string) string) string {
	parts := strings.Split(args, multiSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, fn(strings.TrimSpace(p)))
	}
	return strings.Join(out, "\n")
}

// set stores "key value". A JSON object value is stored field by field
// under key.
func (s *Server) set(cmd string) string {
	key, raw, ok := strings.Cut(cmd, " ")
	raw = strings.TrimSpace(raw)
	if !ok || key == "" || raw == "" {
		return "ERROR: Invalid SET syntax"
	}
	leaves := make(map[string]string)
	flatten(key, raw, leaves)

	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := s.logMutation(persistence.Record{Op: persistence.OpSet, Key: p, Value: leaves[p]}); err != nil {
			return "ERROR: " + err.Error()
		}
		s.st.Set(p, leaves[p])
		s.notify(p, leafValue(leaves[p]))
	}
	return "OK"
}

func flatten(key, raw string, out map[string]string) {
	if !strings.HasPrefix(raw, "{") {
		out[key] = raw
		return
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		out[key] = raw
		return
	}
	flattenValue(key, obj, out)
}

func flattenValue(key string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flattenValue(key+store.Sep+k, child, out)
		}
	case string:
		out[key] = t
	case json.Number:
		out[key] = t.String()
	default:
		b, _ := json.Marshal(t)
		out[key] = string(b)
	}
}

func (s *Server) incr(cmd string, increment bool) string {
	parts := strings.Fields(cmd)
	if len(parts) < 2 {
		return "ERROR: Invalid syntax"
	}
	key := parts[0]
	amount, err := parseNumber(parts[1])
	if err != nil {
		return "ERROR: Invalid amount"
	}
	if !increment {
		amount = amount.neg()
	}
	v, err := s.st.Update(key, func(old string, ok bool) (string, error) {
		var cur number
		if ok {
			n, perr := parseNumber(old)
			if perr != nil {
				return "", errNotNumber
			}
			cur = n
		}
		next := cur.add(amount).String()
		if err := s.logMutation(persistence.Record{Op: persistence.OpSet, Key: key, Value: next}); err != nil {
			return "", err
		}
		return next, nil
	})
	if err != nil {
		if errors.Is(err, errNotNumber) {
			return "ERROR: Value is not a number"
		}
		return "ERROR: " + err.Error()
	}
	s.notify(key, leafValue(v))
	return "OK"
}

func (s *Server) del(key string) string {
	if key == "" || strings.Contains(key, " ") {
		return "ERROR: Invalid DEL syntax"
	}
	if !s.exists(key) {
		return "ERROR: Key does not exist"
	}
	if err := s.logMutation(persistence.Record{Op: persistence.OpDel, Key: key}); err != nil {
		return "ERROR: " + err.Error()
	}
	s.st.Del(key)
	s.notify(key, nil)
	return "OK"
}

func (s *Server) rename(args string) string {
	path, newKey, ok := strings.Cut(args, " TO ")
	path, newKey = strings.TrimSpace(path), strings.TrimSpace(newKey)
	if !ok || path == "" || newKey == "" {
		return "ERROR: Invalid RENAME syntax"
	}
	if !s.exists(path) {
		return "Nothing to rename"
	}
	if err := s.logMutation(persistence.Record{Op: persistence.OpRename, Key: path, Value: newKey}); err != nil {
		return "ERROR: " + err.Error()
	}
	n := s.st.Rename(path, newKey)
	return "RENAME successful: " + strconv.Itoa(n) + " keys renamed."
}

func (s *Server) flushAll() string {
	if err := s.logMutation(persistence.Record{Op: persistence.OpFlush}); err != nil {
		return "ERROR: " + err.Error()
	}
	s.st.Flush()
	return "OK"
}

// keys lists the top-level keys.
func (s *Server) keys() string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, k := range s.st.Keys("") {
		root, _, _ := strings.Cut(k, store.Sep)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		out = append(out, root)
	}
	return toJSON(out)
}

func (s *Server) exists(key string) bool {
	if _, ok := s.st.Get(key); ok {
		return true
	}
	return len(s.st.Subtree(key)) > 0
}

func (s *Server) logMutation(rec persistence.Record) error {
	if s.wal == nil {
		return nil
	}
	if err := s.wal.Append(rec); err != nil {
		s.stats.RecordError()
		logger.Err("wal append: %v", err)
		return err
	}
	return nil
}

// notify pushes {"key","data"} to every session subscribed to key.
func (s *Server) notify(key string, data any) {
	subs := s.hub.subscribers(key)
	if len(subs) == 0 {
		return
	}
	frame, err := protocol.EncodePush(key, data)
	if err != nil {
		logger.Err("encode push for %s: %v", key, err)
		return
	}
	for _, p := range subs {
		if err := p.send(frame); err != nil {
			logger.Trace("push to %s failed: %v", p.id, err)
			continue
		}
		s.stats.RecordPush()
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	return string(b)
}

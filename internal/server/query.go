package server

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/loganszeto/mgindb-go/internal/store"
)

var errBadCondition = errors.New("invalid query condition")

// operators in match order: two-character operators first.
var operators = []string{">=", "<=", "!=", "=", ">", "<"}

type condition struct {
	field string
	op    string
	value string
}

type querySpec struct {
	key   string
	conds []condition
	limit int
}

// parseQuery reads "key [WHERE] [cond [AND cond...]] [LIMIT n]".
func parseQuery(args string) (querySpec, error) {
	tokens := strings.Fields(args)
	if len(tokens) == 0 {
		return querySpec{}, errors.New("missing key")
	}
	q := querySpec{key: tokens[0]}
	rest := tokens[1:]
	if n := len(rest); n >= 2 && strings.EqualFold(rest[n-2], "LIMIT") {
		limit, err := strconv.Atoi(rest[n-1])
		if err != nil || limit < 0 {
			return querySpec{}, errors.New("invalid LIMIT")
		}
		q.limit = limit
		rest = rest[:n-2]
	}
	if len(rest) > 0 && strings.EqualFold(rest[0], "WHERE") {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return q, nil
	}
	for _, part := range strings.Split(strings.Join(rest, " "), " AND ") {
		c, err := parseCondition(strings.TrimSpace(part))
		if err != nil {
			return querySpec{}, err
		}
		q.conds = append(q.conds, c)
	}
	return q, nil
}

func parseCondition(s string) (condition, error) {
	for _, op := range operators {
		if i := strings.Index(s, op); i > 0 {
			value := strings.TrimSpace(s[i+len(op):])
			value = strings.Trim(value, `"'`)
			return condition{field: strings.TrimSpace(s[:i]), op: op, value: value}, nil
		}
	}
	return condition{}, errBadCondition
}

func (c condition) match(node map[string]any) bool {
	v, ok := lookup(node, c.field)
	if !ok {
		return c.op == "!="
	}
	got := leafString(v)
	a, aerr := strconv.ParseFloat(got, 64)
	b, berr := strconv.ParseFloat(c.value, 64)
	cmp := 0
	if aerr == nil && berr == nil {
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(got, c.value)
	}
	switch c.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func lookup(node map[string]any, field string) (any, bool) {
	var cur any = node
	for _, seg := range strings.Split(field, store.Sep) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// query returns a leaf value as is, or the subtree under the key as a JSON
// object, optionally filtered on child fields and limited.
func (s *Server) query(args string) string {
	q, err := parseQuery(args)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	sub := s.st.Subtree(q.key)
	if len(sub) == 0 {
		if v, ok := s.st.Get(q.key); ok {
			return v
		}
		return "{}"
	}
	return toJSON(q.apply(buildTree(sub)))
}

// count returns how many children of the key match the optional filter.
func (s *Server) count(args string) string {
	q, err := parseQuery(args)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	sub := s.st.Subtree(q.key)
	if len(sub) == 0 {
		if _, ok := s.st.Get(q.key); ok {
			return "1"
		}
		return "0"
	}
	return strconv.Itoa(len(q.apply(buildTree(sub))))
}

func (q querySpec) apply(tree map[string]any) map[string]any {
	names := make([]string, 0, len(tree))
	for name, node := range tree {
		if len(q.conds) > 0 {
			m, ok := node.(map[string]any)
			if !ok || !q.matchAll(m) {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if q.limit > 0 && len(names) > q.limit {
		names = names[:q.limit]
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = tree[name]
	}
	return out
}

func (q querySpec) matchAll(node map[string]any) bool {
	for _, c := range q.conds {
		if !c.match(node) {
			return false
		}
	}
	return true
}

// buildTree nests flat relative paths into maps. When a path is both a leaf
// and a parent the parent wins.
func buildTree(flat map[string]string) map[string]any {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	root := make(map[string]any)
	for _, p := range paths {
		segs := strings.Split(p, store.Sep)
		cur := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[seg] = next
			}
			cur = next
		}
		last := segs[len(segs)-1]
		if _, isMap := cur[last].(map[string]any); !isMap {
			cur[last] = leafValue(flat[p])
		}
	}
	return root
}

// leafValue renders numeric strings as JSON numbers.
func leafValue(v string) any {
	if v == "" {
		return v
	}
	if c := v[0]; (c == '-' || (c >= '0' && c <= '9')) && json.Valid([]byte(v)) {
		return json.Number(v)
	}
	return v
}

func leafString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

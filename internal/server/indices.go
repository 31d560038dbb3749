package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/loganszeto/mgindb-go/internal/store"
)

const (
	indexString = "string"
	indexSet    = "set"
)

// indexRegistry holds declared secondary indices by path, e.g.
// "users:city". Index contents are computed from the store on read.
type indexRegistry struct {
	mu    sync.RWMutex
	types map[string]string
}

func newIndexRegistry() *indexRegistry {
	return &indexRegistry{types: make(map[string]string)}
}

func (r *indexRegistry) command(st store.Store, args string) string {
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToUpper(sub) {
	case "":
		return "ERROR: Missing arguments for INDEX command"
	case "LIST":
		if rest != "" {
			return "ERROR: LIST sub-command does not require additional arguments"
		}
		return r.list()
	case "GET":
		return r.get(st, rest)
	case "CREATE":
		return r.create(rest)
	case "DEL":
		return r.del(rest)
	case "FLUSH":
		return r.flush(rest)
	default:
		return "ERROR: Invalid INDEX operation"
	}
}

func (r *indexRegistry) list() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.types) == 0 {
		return `{"message":"No indices defined."}`
	}
	out := make(map[string]string, len(r.types))
	for path, typ := range r.types {
		out[path] = typ
	}
	return toJSON(out)
}

func (r *indexRegistry) get(st store.Store, path string) string {
	if path == "" {
		return `{"error":"No index path provided"}`
	}
	r.mu.RLock()
	typ, ok := r.types[path]
	r.mu.RUnlock()
	if !ok {
		return toJSON(map[string]string{"error": fmt.Sprintf("Index '%s' not found", path)})
	}
	return toJSON(map[string]any{"type": typ, "data": build(st, path, typ)})
}

// build scans "<collection>:<id>:<field>" entries for the indexed field.
func build(st store.Store, path, typ string) any {
	collection, field, _ := strings.Cut(path, store.Sep)
	strIdx := make(map[string]string)
	setIdx := make(map[string][]string)

	sub := st.Subtree(collection)
	rels := make([]string, 0, len(sub))
	for rel := range sub {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		id, f, ok := strings.Cut(rel, store.Sep)
		if !ok || f != field {
			continue
		}
		entity := collection + store.Sep + id
		for _, v := range indexValues(sub[rel], typ) {
			if typ == indexSet {
				setIdx[v] = append(setIdx[v], entity)
			} else {
				strIdx[v] = entity
			}
		}
	}
	if typ == indexSet {
		return setIdx
	}
	return strIdx
}

// indexValues expands a JSON array value into its members for set indices.
func indexValues(v, typ string) []string {
	if typ != indexSet || !strings.HasPrefix(v, "[") {
		return []string{v}
	}
	var items []any
	if err := json.Unmarshal([]byte(v), &items); err != nil {
		return []string{v}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, leafString(it))
	}
	return out
}

func (r *indexRegistry) create(args string) string {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return "ERROR: Missing index name or type"
	}
	path, typ := parts[0], parts[1]
	if typ != indexString && typ != indexSet {
		return fmt.Sprintf("ERROR: Invalid index type '%s' specified. Choose 'string' or 'set'.", typ)
	}
	if !strings.Contains(path, store.Sep) {
		return "ERROR: Index path must be collection:field"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[path]; ok {
		return "ERROR: Index already exists"
	}
	r.types[path] = typ
	return "OK"
}

func (r *indexRegistry) del(path string) string {
	if path == "" {
		return "ERROR: Missing arguments for INDEX DEL command"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[path]; !ok {
		return fmt.Sprintf("ERROR: Index %s not found", path)
	}
	delete(r.types, path)
	return "OK"
}

// flush drops every index under the given prefix, or all of them.
func (r *indexRegistry) flush(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prefix == "" || strings.EqualFold(prefix, "ALL") {
		r.types = make(map[string]string)
		return "OK"
	}
	for path := range r.types {
		if path == prefix || strings.HasPrefix(path, prefix+store.Sep) {
			delete(r.types, path)
		}
	}
	return "OK"
}

package store

import (
	"sort"
	"strings"
	"sync"
)

const Sep = ":"

type MemTable struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemTable() *MemTable {
	return &MemTable{
		m: make(map[string]string),
	}
}

func (t *MemTable) Get(key string) (string, bool) {
	t.mu.RLock()
	v, ok := t.m[key]
	t.mu.RUnlock()
	return v, ok
}

func (t *MemTable) Set(key string, value string) {
	t.mu.Lock()
	t.m[key] = value
	t.mu.Unlock()
}

// Update replaces key with the result of fn under the write lock. The store
// is left untouched when fn fails.
func (t *MemTable) Update(key string, fn func(old string, ok bool) (string, error)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.m[key]
	v, err := fn(old, ok)
	if err != nil {
		return "", err
	}
	t.m[key] = v
	return v, nil
}

// Del removes key and its subtree and returns how many entries went away.
func (t *MemTable) Del(key string) int {
	prefix := key + Sep
	n := 0
	t.mu.Lock()
	for k := range t.m {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(t.m, k)
			n++
		}
	}
	t.mu.Unlock()
	return n
}

// Rename moves path and its subtree so that the last path segment becomes
// newKey. It returns the number of moved entries.
func (t *MemTable) Rename(path, newKey string) int {
	target := newKey
	if i := strings.LastIndex(path, Sep); i >= 0 {
		target = path[:i+1] + newKey
	}
	if target == path {
		return 0
	}
	prefix := path + Sep
	t.mu.Lock()
	defer t.mu.Unlock()
	moved := make(map[string]string)
	for k, v := range t.m {
		switch {
		case k == path:
			moved[target] = v
		case strings.HasPrefix(k, prefix):
			moved[target+Sep+k[len(prefix):]] = v
		default:
			continue
		}
		delete(t.m, k)
	}
	for k, v := range moved {
		t.m[k] = v
	}
	return len(moved)
}

func (t *MemTable) Keys(prefix string) []string {
	out := make([]string, 0)
	t.mu.RLock()
	for k := range t.m {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Subtree returns every entry below key, keyed by the path relative to key.
func (t *MemTable) Subtree(key string) map[string]string {
	prefix := key + Sep
	out := make(map[string]string)
	t.mu.RLock()
	for k, v := range t.m {
		if strings.HasPrefix(k, prefix) {
			out[k[len(prefix):]] = v
		}
	}
	t.mu.RUnlock()
	return out
}

func (t *MemTable) Flush() {
	t.mu.Lock()
	t.m = make(map[string]string)
	t.mu.Unlock()
}

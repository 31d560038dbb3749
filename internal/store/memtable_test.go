package store

import (
	"errors"
	"reflect"
	"strconv"
	"testing"
)

func seed() *MemTable {
	t := NewMemTable()
	t.Set("users:1:name", "alice")
	t.Set("users:1:age", "42")
	t.Set("users:2:name", "bob")
	t.Set("users10:name", "carol")
	return t
}

func TestMemTableSubtree(t *testing.T) {
	st := seed()
	got := st.Subtree("users")
	want := map[string]string{"1:name": "alice", "1:age": "42", "2:name": "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Subtree = %v, want %v", got, want)
	}
	if got := st.Keys("users:1"); !reflect.DeepEqual(got, []string{"users:1:age", "users:1:name"}) {
		t.Fatalf("Keys = %v", got)
	}
}

func TestMemTableDel(t *testing.T) {
	st := seed()
	if n := st.Del("users:1"); n != 2 {
		t.Fatalf("Del removed %d, want 2", n)
	}
	if _, ok := st.Get("users10:name"); !ok {
		t.Fatal("sibling with shared prefix was removed")
	}
	if n := st.Del("missing"); n != 0 {
		t.Fatalf("Del missing removed %d", n)
	}
}

func TestMemTableRename(t *testing.T) {
	st := seed()
	if n := st.Rename("users:1:name", "fullname"); n != 1 {
		t.Fatalf("Rename moved %d, want 1", n)
	}
	if v, ok := st.Get("users:1:fullname"); !ok || v != "alice" {
		t.Fatalf("renamed value = %q %v", v, ok)
	}
	if n := st.Rename("users:2", "3"); n != 1 {
		t.Fatalf("Rename subtree moved %d, want 1", n)
	}
	if _, ok := st.Get("users:3:name"); !ok {
		t.Fatal("subtree not moved")
	}
}

func TestMemTableUpdate(t *testing.T) {
	st := seed()
	add := func(old string, ok bool) (string, error) {
		n := 0
		if ok {
			var err error
			if n, err = strconv.Atoi(old); err != nil {
				return "", err
			}
		}
		return strconv.Itoa(n + 1), nil
	}
	if v, err := st.Update("users:1:age", add); err != nil || v != "43" {
		t.Fatalf("Update = %q %v", v, err)
	}
	if v, err := st.Update("hits", add); err != nil || v != "1" {
		t.Fatalf("Update new key = %q %v", v, err)
	}
	boom := errors.New("boom")
	if _, err := st.Update("users:1:name", func(string, bool) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if v, _ := st.Get("users:1:name"); v != "alice" {
		t.Fatalf("failed update changed value to %q", v)
	}
}

func TestMemTableFlush(t *testing.T) {
	st := seed()
	st.Flush()
	if keys := st.Keys(""); len(keys) != 0 {
		t.Fatalf("keys after flush: %v", keys)
	}
}

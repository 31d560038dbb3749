package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/loganszeto/mgindb-go/internal/protocol"
)

// render prints a reply. Subscription pushes get a one-line "push" form,
// other JSON replies are indented, or laid out as a table when table is
// set; anything else is printed as is.
func render(w io.Writer, reply string, table bool) {
	trimmed := strings.TrimSpace(reply)
	if p, ok := protocol.DecodePush(trimmed); ok {
		data, _ := json.Marshal(p.Data)
		fmt.Fprintf(w, "push %s => %s\n", p.Key, data)
		return
	}
	if (!strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[")) || !json.Valid([]byte(trimmed)) {
		fmt.Fprintln(w, reply)
		return
	}
	if table {
		var v any
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&v); err == nil && printTable(w, v) {
			return
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		fmt.Fprintln(w, reply)
		return
	}
	fmt.Fprintln(w, buf.String())
}

// printTable lays out an object of objects (one row per key) or an array of
// objects. It reports false for any other shape.
func printTable(w io.Writer, v any) bool {
	var ids []string
	rows := make(map[string]map[string]any)
	switch t := v.(type) {
	case map[string]any:
		for id, child := range t {
			m, ok := child.(map[string]any)
			if !ok {
				return false
			}
			ids = append(ids, id)
			rows[id] = m
		}
		sort.Strings(ids)
	case []any:
		for i, child := range t {
			m, ok := child.(map[string]any)
			if !ok {
				return false
			}
			id := fmt.Sprint(i)
			ids = append(ids, id)
			rows[id] = m
		}
	default:
		return false
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No data available.")
		return true
	}

	colSet := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "KEY\t%s\n", strings.Join(cols, "\t"))
	for _, id := range ids {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(rows[id][c])
		}
		fmt.Fprintf(tw, "%s\t%s\n", id, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	return true
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

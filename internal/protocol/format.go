package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Format renders a command line: the verb followed by every non-empty
// argument, single-space separated.
func Format(verb string, args ...string) string {
	var b strings.Builder
	b.WriteString(verb)
	for _, arg := range args {
		if arg == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	return b.String()
}

// CompactValue returns value unchanged unless it is a JSON object or array,
// in which case the compact encoding is returned.
func CompactValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return value
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return value
	}
	return buf.String()
}

func EncodeCredentials(username, password string) ([]byte, error) {
	return json.Marshal(Credentials{Username: username, Password: password})
}

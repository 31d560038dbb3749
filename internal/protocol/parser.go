package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRequest = errors.New("invalid request")

// ParseLine splits a command line into its verb and raw argument string.
func ParseLine(line string) (Request, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\n"))
	if line == "" {
		return Request{}, ErrInvalidRequest
	}
	verb, args, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(verb)
	typ, ok := verbs[verb]
	if !ok {
		return Request{Verb: verb}, fmt.Errorf("%w: unknown command %q", ErrInvalidRequest, verb)
	}
	return Request{Type: typ, Verb: verb, Args: strings.TrimSpace(args)}, nil
}

// ParseCredentials decodes a credential frame. ok is false when the payload
// is not a JSON object.
func ParseCredentials(payload []byte) (Credentials, bool) {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "{") {
		return Credentials{}, false
	}
	var c Credentials
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return Credentials{}, false
	}
	return c, true
}

// SplitList splits a comma separated key list as used by SUB and UNSUB.
func SplitList(args string) []string {
	parts := strings.Split(args, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

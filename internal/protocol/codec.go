package protocol

import "encoding/json"

func EncodePush(key string, data any) (string, error) {
	b, err := json.Marshal(Push{Key: key, Data: data})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePush reports whether frame is a subscription push: a JSON object
// with exactly the fields "key" (non-empty) and "data".
func DecodePush(frame string) (Push, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frame), &fields); err != nil || len(fields) != 2 {
		return Push{}, false
	}
	if _, ok := fields["data"]; !ok {
		return Push{}, false
	}
	var p Push
	if err := json.Unmarshal([]byte(frame), &p); err != nil || p.Key == "" {
		return Push{}, false
	}
	return p, true
}

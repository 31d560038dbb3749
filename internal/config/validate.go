package config

import "fmt"

// Error describes one invalid setting.
type Error struct {
	Field string
	Value any
	Msg   string
}

func (e *Error) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Msg)
}

func (c *Config) Validate() error {
	if c.Scheme != "ws" && c.Scheme != "wss" {
		return &Error{Field: "scheme", Value: c.Scheme, Msg: "must be ws or wss"}
	}
	if c.Host == "" {
		return &Error{Field: "host", Msg: "required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &Error{Field: "port", Value: c.Port, Msg: "out of range 1-65535"}
	}
	if c.Timeout.Duration < 0 {
		return &Error{Field: "timeout", Value: c.Timeout, Msg: "must not be negative"}
	}
	return nil
}

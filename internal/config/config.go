// Package config assembles the connection settings used by the mgindb
// binaries.
//
// Precedence, highest first: command-line flags (applied by each binary),
// MGINDB_* environment variables, the YAML config file, defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ghodss/yaml"

	"github.com/loganszeto/mgindb-go/client"
)

const (
	DefaultHost = "127.0.0.1"
	EnvPrefix   = "MGINDB_"
)

// Config mirrors the connection keys of the MginDB conf.json. The json tags
// are what ghodss/yaml matches YAML keys against.
type Config struct {
	Scheme   string   `json:"scheme"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Timeout  Duration `json:"timeout"`
}

// Duration accepts "1500ms"-style strings or a plain number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// parseDuration reads a Go duration ("1500ms") or a number of seconds ("5").
func parseDuration(s string) (time.Duration, error) {
	if v, err := time.ParseDuration(s); err == nil {
		return v, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func Default() *Config {
	return &Config{
		Scheme: client.DefaultScheme,
		Host:   DefaultHost,
		Port:   client.DefaultPort,
	}
}

// Load returns the defaults overlaid with path (when non-empty) and then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML (or JSON) document at path onto cfg. Keys
// missing from the file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays non-empty MGINDB_* variables onto cfg. A malformed
// port or timeout is reported as an *Error naming the variable.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "SCHEME"); v != "" {
		cfg.Scheme = v
	}
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: EnvPrefix + "PORT", Value: v, Msg: "not an integer"}
		}
		cfg.Port = n
	}
	if v := os.Getenv(EnvPrefix + "USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPrefix + "PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return &Error{Field: EnvPrefix + "TIMEOUT", Value: v, Msg: "not a duration or number of seconds"}
		}
		cfg.Timeout.Duration = d
	}
	return nil
}

// Options converts the config into client session options.
func (c *Config) Options() client.Options {
	return client.Options{
		Scheme:   c.Scheme,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
	}
}

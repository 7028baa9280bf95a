// Package config loads parley's TOML configuration file and environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// Dir is the directory under $HOME holding parley's files.
const Dir = ".parley"

// Config is the parley configuration.
type Config struct {
	// Chat model name (e.g., "gpt-4o-mini")
	Model string `toml:"model"`

	// Provider endpoint override, empty for the OpenAI default
	BaseURL string `toml:"base_url"`

	// OpenAI organization id sent with every request
	Organization string `toml:"organization"`

	// Default stop sequence
	Stop string `toml:"stop"`

	// Transcript file path
	Transcript string `toml:"transcript"`

	// Upstream request timeout
	Timeout Duration `toml:"timeout"`

	Storage StorageConfig `toml:"storage"`
	Vectors VectorsConfig `toml:"vectors"`
	Server  ServerConfig  `toml:"server"`

	// APIKey is only read from the environment.
	APIKey string `toml:"-"`
}

// StorageConfig configures the conversation DAG.
type StorageConfig struct {
	// SQLite database path, empty for in-memory
	SQLite string `toml:"sqlite"`
}

// VectorsConfig configures the embedding store.
type VectorsConfig struct {
	SQLite string `toml:"sqlite"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration decoded from strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:      "gpt-4o-mini",
		Stop:       completion.DefaultStop,
		Transcript: transcript.DefaultPath,
		Timeout:    Duration{2 * time.Minute},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// DefaultPath returns ~/.parley/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, Dir, "config.toml"), nil
}

// Load reads the configuration at path over the defaults and applies the
// environment. An empty path loads DefaultPath, which may be missing.
func Load(path string) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("could not load config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_ORG_ID"); v != "" {
		c.Organization = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("PARLEY_MODEL"); v != "" {
		c.Model = v
	}
}

// Completion returns the completion client configuration.
func (c *Config) Completion() completion.Config {
	return completion.Config{
		Model:        c.Model,
		BaseURL:      c.BaseURL,
		Organization: c.Organization,
		APIKey:       c.APIKey,
		Stop:         c.Stop,
		Timeout:      c.Timeout.Duration,
	}
}

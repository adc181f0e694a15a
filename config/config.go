// Package config loads the bugstomper YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Editor   EditorConfig   `yaml:"editor"`
	Tags     TagsConfig     `yaml:"tags"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
	Client   ClientConfig   `yaml:"client"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"base_url"`
	// SessionTTL is a Go duration string such as "168h".
	SessionTTL   string `yaml:"session_ttl"`
	CookieSecure bool   `yaml:"cookie_secure"`
	// DraftTTL bounds how long an idle editing draft is kept.
	DraftTTL string `yaml:"draft_ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	Dir            string `yaml:"dir"`
	PublicURL      string `yaml:"public_url"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type EditorConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

type TagsConfig struct {
	Debounce string `yaml:"debounce"`
	MaxTags  int    `yaml:"max_tags"`
}

// LLMConfig enables tag suggestions. An empty provider disables them.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, mock
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ClientConfig is used by the ask command.
type ClientConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			BaseURL:    "http://localhost:8080",
			SessionTTL: "168h",
			DraftTTL:   "2h",
		},
		Database: DatabaseConfig{Path: filepath.Join("data", "bugstomper.db")},
		Storage: StorageConfig{
			Dir:            filepath.Join("data", "objects"),
			PublicURL:      "/objects",
			MaxUploadBytes: 5 << 20,
		},
		Editor:  EditorConfig{HistoryLimit: 50},
		Tags:    TagsConfig{Debounce: "300ms", MaxTags: 5},
		Logging: LoggingConfig{Level: "info"},
		Client:  ClientConfig{BaseURL: "http://localhost:8080"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BUGSTOMPER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BUGSTOMPER_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("BUGSTOMPER_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if c.LLM.APIKey == "" {
		if v := os.Getenv("BUGSTOMPER_LLM_API_KEY"); v != "" {
			c.LLM.APIKey = v
		} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if !strings.HasPrefix(c.Storage.PublicURL, "/") {
		errs = append(errs, errors.New("storage.public_url must start with /"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("storage.max_upload_bytes must be positive"))
	}
	if c.Editor.HistoryLimit < 1 {
		errs = append(errs, errors.New("editor.history_limit must be at least 1"))
	}
	if c.Tags.MaxTags < 1 {
		errs = append(errs, errors.New("tags.max_tags must be at least 1"))
	}
	for name, v := range map[string]string{
		"server.session_ttl": c.Server.SessionTTL,
		"server.draft_ttl":   c.Server.DraftTTL,
		"tags.debounce":      c.Tags.Debounce,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "", "mock":
	case "openai":
		if c.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is required for provider openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

// SessionTTL returns the parsed server.session_ttl.
func (c *Config) SessionTTL() time.Duration {
	return mustDuration(c.Server.SessionTTL)
}

func (c *Config) DraftTTL() time.Duration {
	return mustDuration(c.Server.DraftTTL)
}

func (c *Config) TagDebounce() time.Duration {
	return mustDuration(c.Tags.Debounce)
}

// mustDuration is only used on validated values.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

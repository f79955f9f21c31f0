// Package config loads the runtime configuration of the triage binaries.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// then TRIAGE_* environment variables (after .env files are loaded).
// Command line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config aggregates every configurable part of the service.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	Events   EventsConfig   `yaml:"events"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Flow     FlowConfig     `yaml:"flow"`
}

// RemoteConfig points at the triage service.
type RemoteConfig struct {
	// URL of the service. Empty selects the in-process mock.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Mock reports whether the in-process mock service should be used.
func (r RemoteConfig) Mock() bool {
	return strings.TrimSpace(r.URL) == ""
}

// StoreConfig selects the blob store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Path is the directory of the file driver or the database file of bolt.
	Path string `yaml:"path"`
	// URL is the redis address or postgres DSN.
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	// Lock enables the redis distributed session lock.
	Lock bool `yaml:"lock"`
}

// SecurityConfig configures the at-rest middlewares.
type SecurityConfig struct {
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	PIIFields     []string `yaml:"pii_fields"`
	// PIIScopes are key prefixes to mask; history and profile when empty.
	PIIScopes []string `yaml:"pii_scopes"`
}

// EventsConfig enables record publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FlowConfig selects the questionnaire.
type FlowConfig struct {
	// Definition is a YAML flow file. Empty uses the embedded flow.
	Definition string `yaml:"definition"`
	Variant    string `yaml:"variant"`
	HistoryCap int    `yaml:"history_cap"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{Timeout: 30 * time.Second},
		Store:  StoreConfig{Driver: DriverFile, Path: ".triage", Prefix: "triage:"},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "INFO", Format: "text"},
		Flow:   FlowConfig{Variant: "bilingual", HistoryCap: 300},
	}
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are ignored; existing variables are not overridden.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverBolt:
	case DriverRedis, DriverPostgres:
		if c.Store.URL == "" {
			return fmt.Errorf("store driver %s requires a url", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Lock && c.Store.Driver != DriverRedis {
		return errors.New("distributed locking requires the redis store driver")
	}
	if len(c.Security.FallbackKeys) > 0 && c.Security.EncryptionKey == "" {
		return errors.New("fallback keys require an encryption key")
	}
	if c.Flow.HistoryCap < 0 {
		return fmt.Errorf("history cap must not be negative, got %d", c.Flow.HistoryCap)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	str("TRIAGE_REMOTE_URL", &c.Remote.URL)
	str("TRIAGE_STORE", &c.Store.Driver)
	str("TRIAGE_STORE_PATH", &c.Store.Path)
	str("TRIAGE_STORE_URL", &c.Store.URL)
	str("TRIAGE_STORE_PASSWORD", &c.Store.Password)
	str("TRIAGE_STORE_PREFIX", &c.Store.Prefix)
	str("TRIAGE_ENCRYPTION_KEY", &c.Security.EncryptionKey)
	list("TRIAGE_ENCRYPTION_FALLBACK_KEYS", &c.Security.FallbackKeys)
	list("TRIAGE_PII_FIELDS", &c.Security.PIIFields)
	list("TRIAGE_PII_SCOPES", &c.Security.PIIScopes)
	str("TRIAGE_AMQP_URL", &c.Events.AMQPURL)
	str("TRIAGE_AMQP_EXCHANGE", &c.Events.Exchange)
	str("TRIAGE_ADDR", &c.Server.Addr)
	str("TRIAGE_LOG_LEVEL", &c.Log.Level)
	str("TRIAGE_LOG_FORMAT", &c.Log.Format)
	str("TRIAGE_FLOW", &c.Flow.Definition)
	str("TRIAGE_VARIANT", &c.Flow.Variant)

	var errs []error
	if v, ok := lookup("TRIAGE_REMOTE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_REMOTE_TIMEOUT: %w", err))
		}
		c.Remote.Timeout = d
	}
	if v, ok := lookup("TRIAGE_STORE_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_STORE_TTL: %w", err))
		}
		c.Store.TTL = d
	}
	if v, ok := lookup("TRIAGE_STORE_LOCK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_STORE_LOCK: %w", err))
		}
		c.Store.Lock = b
	}
	if v, ok := lookup("TRIAGE_HISTORY_CAP"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIAGE_HISTORY_CAP: %w", err))
		}
		c.Flow.HistoryCap = n
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

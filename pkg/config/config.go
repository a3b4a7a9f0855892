// Package config loads synote settings from a YAML file, an optional .env file
// and SYNOTE_* environment variables, in increasing order of precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SYNOTE_"

// Config holds every tunable of a synote client.
type Config struct {
	DataDir        string         `yaml:"data_dir"`
	SortField      core.SortField `yaml:"sort_field"`
	DebounceDelay  time.Duration  `yaml:"debounce_delay"`
	ConfirmWindow  time.Duration  `yaml:"confirm_window"`
	Compress       bool           `yaml:"compress"`
	GuestNamespace string         `yaml:"guest_namespace"`
	EventBuffer    int            `yaml:"event_buffer"`
	Secret         string         `yaml:"secret"`
	TokenTTL       time.Duration  `yaml:"token_ttl"`
	LogLevel       string         `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	dir := ".synote"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".synote")
	}
	return Config{
		DataDir:        dir,
		SortField:      core.SortUpdatedAt,
		DebounceDelay:  500 * time.Millisecond,
		ConfirmWindow:  5 * time.Second,
		Compress:       true,
		GuestNamespace: local.DefaultNamespace,
		EventBuffer:    100,
		TokenTTL:       720 * time.Hour,
		LogLevel:       "info",
	}
}

// Load builds the configuration. path may be empty or name a missing file.
// A .env file in the working directory is read if present.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// Missing .env is the common case.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("DATA_DIR", &c.DataDir)
	str("GUEST_NAMESPACE", &c.GuestNamespace)
	str("SECRET", &c.Secret)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup(EnvPrefix + "SORT_FIELD"); ok {
		c.SortField = core.SortField(v)
	}
	if v, ok := lookup(EnvPrefix + "COMPRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOMPRESS: %w", EnvPrefix, err)
		}
		c.Compress = b
	}
	if v, ok := lookup(EnvPrefix + "EVENT_BUFFER"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEVENT_BUFFER: %w", EnvPrefix, err)
		}
		c.EventBuffer = n
	}
	return errors.Join(
		dur("DEBOUNCE_DELAY", &c.DebounceDelay),
		dur("CONFIRM_WINDOW", &c.ConfirmWindow),
		dur("TOKEN_TTL", &c.TokenTTL),
	)
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, &core.ValidationError{Field: "data_dir", Message: "data_dir is required"})
	}
	if !c.SortField.Valid() {
		errs = append(errs, &core.ValidationError{Field: "sort_field", Message: fmt.Sprintf("sort_field must be createdAt or updatedAt, got %q", c.SortField)})
	}
	if c.DebounceDelay <= 0 {
		errs = append(errs, &core.ValidationError{Field: "debounce_delay", Message: "debounce_delay must be positive"})
	}
	if c.ConfirmWindow <= 0 {
		errs = append(errs, &core.ValidationError{Field: "confirm_window", Message: "confirm_window must be positive"})
	}
	if c.EventBuffer < 0 {
		errs = append(errs, &core.ValidationError{Field: "event_buffer", Message: "event_buffer must not be negative"})
	}
	if strings.TrimSpace(c.GuestNamespace) == "" {
		errs = append(errs, &core.ValidationError{Field: "guest_namespace", Message: "guest_namespace is required"})
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, &core.ValidationError{Field: "log_level", Message: err.Error()})
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return l, nil
}

// GuestDir holds the guest note blob.
func (c Config) GuestDir() string { return filepath.Join(c.DataDir, "guest") }

// DocumentsPath is the document store file of signed-in users.
func (c Config) DocumentsPath() string { return filepath.Join(c.DataDir, "notes.db") }

func (c Config) AccountsPath() string { return filepath.Join(c.DataDir, "accounts.db") }

// TokenPath is where the CLI keeps the session token between runs.
func (c Config) TokenPath() string { return filepath.Join(c.DataDir, "session.token") }

// SecretBytes returns the token signing key. Without a configured secret a
// per-install key is created under DataDir.
func (c Config) SecretBytes() ([]byte, error) {
	if c.Secret != "" {
		return []byte(c.Secret), nil
	}
	path := filepath.Join(c.DataDir, "secret.key")
	if raw, err := os.ReadFile(path); err == nil && len(raw) > 0 {
		return raw, nil
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	key := []byte(hex.EncodeToString(buf))
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// Package daemon wires agrolend together: configuration, logging, the preview
// ledger, the HTTP server and the housekeeping jobs.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agrocredit/agrolend/internal/i18n"
	"github.com/agrocredit/agrolend/internal/infra/directory"
)

// ─── Config ─────────────────────────────────────────────────────────────────

// Config is the full agrolend configuration, read from config.toml.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	API       APIConfig       `toml:"api"`
	Polling   PollingConfig   `toml:"polling"`
	Confirm   ConfirmConfig   `toml:"confirm"`
	Session   SessionConfig   `toml:"session"`
	Directory DirectoryConfig `toml:"directory"`
	UI        UIConfig        `toml:"ui"`
	Log       LogConfig       `toml:"log"`
	Probe     ProbeConfig     `toml:"probe"`
}

// ServerConfig is the served HTTP surface.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	DataDir         string   `toml:"data_dir"`
	Metrics         bool     `toml:"metrics"`
	RequestTimeout  string   `toml:"request_timeout"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// APIConfig points at the remote lending API.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Key     string `toml:"key"`
	Timeout string `toml:"timeout"`
}

// PollingConfig holds the live view refresh intervals.
type PollingConfig struct {
	Loans         string `toml:"loans"`
	Notifications string `toml:"notifications"`
}

// ConfirmConfig controls preview tokens.
type ConfirmConfig struct {
	TTL   string `toml:"ttl"`
	Sweep string `toml:"sweep"` // cron spec for purging expired previews
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret string `toml:"secret"`
	TTL    string `toml:"ttl"`
	Secure bool   `toml:"secure"`
}

// DirectoryConfig selects the bank's farmer directory source.
type DirectoryConfig struct {
	Source string `toml:"source"` // fixture | live
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Locale string `toml:"locale"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // console | json
}

// ProbeConfig controls the upstream availability probe.
type ProbeConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
	Path     string `toml:"path"`
}

// DefaultAPIURL is the hosted lending API.
const DefaultAPIURL = "https://agrocredit-api.onrender.com/api"

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			DataDir:         Home(),
			Metrics:         true,
			RequestTimeout:  "60s",
			ShutdownTimeout: "10s",
		},
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: "30s",
		},
		Polling: PollingConfig{
			Loans:         "5s",
			Notifications: "10s",
		},
		Confirm: ConfirmConfig{
			TTL:   "10m",
			Sweep: "@every 5m",
		},
		Session: SessionConfig{
			TTL: "12h",
		},
		Directory: DirectoryConfig{
			Source: directory.SourceFixture,
		},
		UI: UIConfig{
			Locale: i18n.Fallback,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Probe: ProbeConfig{
			Enabled:  true,
			Schedule: "@every 1m",
			Path:     "/bank/dashboard",
		},
	}
}

// Home returns the agrolend home directory: $AGROLEND_HOME or ~/.agrolend.
func Home() string {
	if env := os.Getenv("AGROLEND_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agrolend"
	}
	return filepath.Join(home, ".agrolend")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.toml")
}

// ─── Loading ────────────────────────────────────────────────────────────────

// Load reads the config at path over the defaults, applies .env and
// AGROLEND_* overrides, then validates. An empty path reads DefaultPath,
// which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides file values with AGROLEND_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"AGROLEND_HOST":             &c.Server.Host,
		"AGROLEND_DATA_DIR":         &c.Server.DataDir,
		"AGROLEND_API_URL":          &c.API.BaseURL,
		"AGROLEND_API_KEY":          &c.API.Key,
		"AGROLEND_SESSION_SECRET":   &c.Session.Secret,
		"AGROLEND_DIRECTORY_SOURCE": &c.Directory.Source,
		"AGROLEND_LOCALE":           &c.UI.Locale,
		"AGROLEND_LOG_LEVEL":        &c.Log.Level,
		"AGROLEND_LOG_FORMAT":       &c.Log.Format,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("AGROLEND_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGROLEND_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("AGROLEND_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	return nil
}

// Validate checks every field that the daemon would otherwise fail on later.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an http(s) URL", c.API.BaseURL))
	}

	durations := map[string]string{
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"polling.loans":           c.Polling.Loans,
		"polling.notifications":   c.Polling.Notifications,
		"confirm.ttl":             c.Confirm.TTL,
		"session.ttl":             c.Session.TTL,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}

	// api.timeout may be 0, which leaves requests bounded by their context only.
	if d, err := time.ParseDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout))
	}

	if _, err := cron.ParseStandard(c.Confirm.Sweep); err != nil {
		errs = append(errs, fmt.Errorf("confirm.sweep: %w", err))
	}
	if c.Probe.Enabled {
		if _, err := cron.ParseStandard(c.Probe.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("probe.schedule: %w", err))
		}
	}

	switch c.Directory.Source {
	case directory.SourceFixture, directory.SourceLive:
	default:
		errs = append(errs, fmt.Errorf("directory.source %q: want %s or %s",
			c.Directory.Source, directory.SourceFixture, directory.SourceLive))
	}
	if !slices.Contains(i18n.Languages(), c.UI.Locale) {
		errs = append(errs, fmt.Errorf("ui.locale %q: want one of %v", c.UI.Locale, i18n.Languages()))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// duration parses a validated duration string.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ─── Logging ────────────────────────────────────────────────────────────────

// NewLogger builds a zap logger: JSON for production, console otherwise.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

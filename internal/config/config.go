// Package config loads catch log settings from defaults, an optional .env
// file, CATCHLOG_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CATCHLOG"

// Keys shared by viper, flags and the environment. "db_path" is read from
// CATCHLOG_DB_PATH and bound to the --db-path flag.
const (
	KeyPort        = "port"
	KeyDBPath      = "db_path"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyCORSOrigins = "cors_origins"
)

// Config holds everything the server needs to start.
type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

// Defaults applied before any other source.
var defaults = map[string]any{
	KeyPort:        8000,
	KeyDBPath:      "data/catches.db",
	KeyLogLevel:    "info",
	KeyLogFormat:   "text",
	KeyCORSOrigins: []string{"*"},
}

// NewViper returns a viper instance with defaults and environment binding
// set up. Flags are bound separately with BindFlags.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv reads key=value pairs from the given files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// BindFlags registers the server flags on fs and binds them to v.
// Flag names use dashes: --port, --db-path, --log-level, --log-format,
// --cors-origins.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.Int("port", defaults[KeyPort].(int), "HTTP listen port")
	flags.String("db-path", defaults[KeyDBPath].(string), "SQLite database file, or :memory:")
	flags.String("log-level", defaults[KeyLogLevel].(string), "log level: debug, info, warn, error")
	flags.String("log-format", defaults[KeyLogFormat].(string), "log format: text or json")
	flags.StringSlice("cors-origins", defaults[KeyCORSOrigins].([]string), "allowed CORS origins")

	for key, name := range map[string]string{
		KeyPort:        "port",
		KeyDBPath:      "db-path",
		KeyLogLevel:    "log-level",
		KeyLogFormat:   "log-format",
		KeyCORSOrigins: "cors-origins",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the current values out of v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetInt(KeyPort),
		DBPath:      strings.TrimSpace(v.GetString(KeyDBPath)),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:   strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		CORSOrigins: splitOrigins(v.GetStringSlice(KeyCORSOrigins)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitOrigins accepts both a list and a single comma-separated value, which
// is what an environment variable produces.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the process logger described by c, writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

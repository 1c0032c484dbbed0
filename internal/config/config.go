// Package config handles stockbook configuration using Viper.
//
// Sources, lowest precedence first: built-in defaults, the YAML config file
// (~/.stockbook/config.yaml), STOCKBOOK_* environment variables, command
// line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/stockbook/internal/api"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "STOCKBOOK"

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Console ConsoleConfig `mapstructure:"console"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// APIConfig configures the backend transport.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout is parsed separately so bare integers mean milliseconds.
	Timeout time.Duration `mapstructure:"-"`
}

// SessionConfig selects where the session is persisted.
type SessionConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	RedisURL    string `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ConsoleConfig configures the local web console.
type ConsoleConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Flag names bound to configuration keys when present on the flag set.
var flagKeys = map[string]string{
	"api-url":         "api.base_url",
	"api-timeout":     "api.timeout",
	"session-backend": "session.backend",
	"session-dir":     "session.dir",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"addr":            "console.addr",
}

// Options controls Load.
type Options struct {
	// Path overrides the config file location.
	Path string
	// Flags, when set, are bound on top of every other source.
	Flags *pflag.FlagSet
}

// Dir returns ~/.stockbook.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockbook"
	}
	return filepath.Join(home, ".stockbook")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Session: SessionConfig{
			Backend:     sessionstore.KindFile,
			Dir:         filepath.Join(Dir(), "session"),
			RedisPrefix: sessionstore.DefaultRedisPrefix,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Console: ConsoleConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout.String())
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.dir", d.Session.Dir)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.redis_prefix", d.Session.RedisPrefix)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("console.addr", d.Console.Addr)
}

// Load reads configuration from defaults, file, environment and flags.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The documented name for the base URL is shorter than its key.
	if err := v.BindEnv("api.base_url", EnvPrefix+"_API_URL", EnvPrefix+"_API_BASE_URL"); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, sberrors.Wrap(sberrors.ErrCodeConfigRead, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeConfigRead, "failed to decode configuration", err)
	}
	cfg.File = v.ConfigFileUsed()

	timeout, err := ParseTimeout(v.GetString("api.timeout"))
	if err != nil {
		return nil, sberrors.NewConfigInvalidError(err.Error())
	}
	cfg.API.Timeout = timeout
	cfg.Session.Dir = expandHome(cfg.Session.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseTimeout accepts a Go duration ("15s", "1m") or a bare integer
// number of milliseconds ("15000").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return api.DefaultTimeout, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("api.timeout must be positive, got %s", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("api.timeout %q is neither a duration nor milliseconds", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api.timeout must be positive, got %s", s)
	}
	return d, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return sberrors.NewConfigInvalidError("api.base_url must not be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return sberrors.NewConfigInvalidError(fmt.Sprintf("api.base_url %q must start with http:// or https://", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		return sberrors.NewConfigInvalidError("api.timeout must be positive")
	}

	switch c.Session.Backend {
	case sessionstore.KindFile:
		if c.Session.Dir == "" {
			return sberrors.NewConfigInvalidError("session.dir is required for the file backend")
		}
	case sessionstore.KindRedis:
		if c.Session.RedisURL == "" {
			return sberrors.NewConfigInvalidError("session.redis_url is required for the redis backend")
		}
	case sessionstore.KindMemory:
	default:
		return sberrors.NewConfigInvalidError(fmt.Sprintf("session.backend %q must be file, redis or memory", c.Session.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return sberrors.NewConfigInvalidError(fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	return nil
}

// APIClientConfig returns the transport configuration.
func (c *Config) APIClientConfig(userAgent string) api.Config {
	return api.Config{
		BaseURL:   c.API.BaseURL,
		Timeout:   c.API.Timeout,
		UserAgent: userAgent,
	}
}

// StoreOptions returns the session store configuration.
func (c *Config) StoreOptions(logger *log.Logger) sessionstore.Options {
	return sessionstore.Options{
		Kind:        c.Session.Backend,
		Dir:         c.Session.Dir,
		RedisURL:    c.Session.RedisURL,
		RedisPrefix: c.Session.RedisPrefix,
		Logger:      logger,
	}
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() log.Config {
	return log.ConfigFrom(c.Log.Level, c.Log.Format)
}

// YAML renders the configuration as it would appear in the config file.
// The Redis URL may carry a password and is masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Session.RedisURL != "" {
		out.Session.RedisURL = maskURL(out.Session.RedisURL)
	}
	return yaml.Marshal(fileView(out))
}

// fileConfig mirrors Config with the timeout as a string.
type fileConfig struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Console ConsoleConfig `yaml:"console"`
}

func fileView(c Config) fileConfig {
	var f fileConfig
	f.API.BaseURL = c.API.BaseURL
	f.API.Timeout = c.API.Timeout.String()
	f.Session = c.Session
	f.Log = c.Log
	f.Console = c.Console
	return f
}

func maskURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "****" + raw[at:]
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return sberrors.New(sberrors.ErrCodeConfigWrite, fmt.Sprintf("config file already exists: %s", path)).
				WithSuggestion("Pass --force to overwrite it")
		}
	}

	d := Defaults()
	data, err := yaml.Marshal(fileView(d))
	if err != nil {
		return sberrors.Wrap(sberrors.ErrCodeConfigWrite, "failed to encode config", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeConfigWrite, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeConfigWrite, "failed to write config file", err)
	}
	return nil
}

// Package config loads ArtAtlas settings from defaults, an optional YAML
// file, ARTATLAS_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ARTATLAS_SERVER_PORT.
const EnvPrefix = "ARTATLAS"

var ErrInvalid = errors.New("config: invalid")

// Config holds all configuration for the API, CLI and worker.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `mapstructure:"rate_burst"`
}

// Addr is the listen address for Port.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

// LogConfig configures slog.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// BackendConfig points at the search backend.
type BackendConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// Neo4jConfig configures the snapshot store.
type Neo4jConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NATSConfig configures the resolver worker and event stream. An empty URL
// disables NATS.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	ResolveSubject string `mapstructure:"resolve_subject"`
	EventsSubject  string `mapstructure:"events_subject"`
}

// TelemetryConfig toggles tracing output.
type TelemetryConfig struct {
	Stdout bool `mapstructure:"stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.breaker_threshold", 5)
	v.SetDefault("backend.breaker_cooldown", 30*time.Second)

	v.SetDefault("neo4j.url", "neo4j://localhost:7687")
	v.SetDefault("neo4j.user", "")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.resolve_subject", "artatlas.resolve")
	v.SetDefault("nats.events_subject", "artatlas.search.resolved")

	v.SetDefault("telemetry.stdout", false)
}

// Bind maps a config key such as "log.level" to a command-line flag. A
// flag only overrides the key when it was set explicitly.
type Bind struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads file (skipped when empty), applies environment overrides and
// binds, then validates the result.
func Load(file string, binds ...Bind) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	for _, b := range binds {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", b.Key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		bad("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		bad("server.write_timeout must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		bad("server.rate_limit and server.rate_burst must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		bad("log.format %q must be json or text", c.Log.Format)
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		bad("backend.base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		bad("backend.timeout must be positive")
	}
	if c.Backend.BreakerThreshold <= 0 {
		bad("backend.breaker_threshold must be positive")
	}
	if c.Backend.BreakerCooldown <= 0 {
		bad("backend.breaker_cooldown must be positive")
	}
	if c.NATS.URL != "" && (c.NATS.ResolveSubject == "" || c.NATS.EventsSubject == "") {
		bad("nats subjects must be set when nats.url is")
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

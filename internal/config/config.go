package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. STOCKDASH_SERVER_PORT.
const EnvPrefix = "STOCKDASH"

// DefaultBaseURL is the evaluation price service.
const DefaultBaseURL = "http://20.244.56.144/evaluation-service"

// Upstream providers.
const (
	ProviderEvaluation = "evaluation"
	ProviderAlpaca     = "alpaca"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockdash.
type Config struct {
	Server    Server    `yaml:"server" envconfig:"SERVER"`
	Upstream  Upstream  `yaml:"upstream" envconfig:"UPSTREAM"`
	Alpaca    Alpaca    `yaml:"alpaca" envconfig:"ALPACA"`
	Cache     Cache     `yaml:"cache" envconfig:"CACHE"`
	Recorder  Recorder  `yaml:"recorder" envconfig:"RECORDER"`
	Logging   Logging   `yaml:"logging" envconfig:"LOGGING"`
	Sentry    Sentry    `yaml:"sentry" envconfig:"SENTRY"`
	Dashboard Dashboard `yaml:"dashboard" envconfig:"DASHBOARD"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	GRPCPort        int           `yaml:"grpc_port" envconfig:"GRPC_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// HTTPAddr returns host:port for the HTTP listener.
func (s Server) HTTPAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr returns host:port for the gRPC listener.
func (s Server) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }

// Upstream configures the remote price source.
type Upstream struct {
	Provider        string        `yaml:"provider" envconfig:"PROVIDER"`
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	Token           string        `yaml:"token" envconfig:"TOKEN"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min" envconfig:"RATE_LIMIT_PER_MIN"`
	Attempts        int           `yaml:"attempts" envconfig:"ATTEMPTS"`
	RetryDelay      time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
}

// Alpaca holds credentials and the tracked universe for the Alpaca
// market-data source.
type Alpaca struct {
	APIKey    string `yaml:"api_key" envconfig:"API_KEY"`
	APISecret string `yaml:"api_secret" envconfig:"API_SECRET"`
	DataURL   string `yaml:"data_url" envconfig:"DATA_URL"`
	Feed      string `yaml:"feed" envconfig:"FEED"`
	// Universe maps display name to ticker.
	Universe map[string]string `yaml:"universe" ignored:"true"`
}

// Cache configures the optional Redis tier behind the in-memory cache.
type Cache struct {
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
}

// Recorder configures periodic correlation snapshots.
type Recorder struct {
	Enabled    bool   `yaml:"enabled" envconfig:"ENABLED"`
	Schedule   string `yaml:"schedule" envconfig:"SCHEDULE"`
	Windows    []int  `yaml:"windows" envconfig:"WINDOWS"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	ArchiveDir string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// Sentry configures error tracking. An empty DSN disables it.
type Sentry struct {
	DSN         string `yaml:"dsn" envconfig:"DSN"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// Dashboard configures the views.
type Dashboard struct {
	DefaultWindow int    `yaml:"default_window" envconfig:"DEFAULT_WINDOW"`
	Timezone      string `yaml:"timezone" envconfig:"TIMEZONE"`
}

// Location resolves Timezone, falling back to UTC.
func (d Dashboard) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
// An empty path skips the file. A .env file in the working directory, if
// present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays STOCKDASH_* variables on top of the file values.
// Unset variables leave the file values alone.
func applyEnvOverrides(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("processing env config: %w", err)
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Upstream.Provider == "" {
		c.Upstream.Provider = ProviderEvaluation
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if c.Upstream.Attempts == 0 {
		c.Upstream.Attempts = 1
	}
	if c.Upstream.RetryDelay == 0 {
		c.Upstream.RetryDelay = 500 * time.Millisecond
	}

	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = "iex"
	}

	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "stockdash:"
	}

	if c.Recorder.Schedule == "" {
		c.Recorder.Schedule = "0 */5 * * * *"
	}
	if len(c.Recorder.Windows) == 0 {
		c.Recorder.Windows = []int{5, 15, 30, 60}
	}
	if c.Recorder.SQLitePath == "" {
		c.Recorder.SQLitePath = "data/stockdash.db"
	}
	if c.Recorder.ArchiveDir == "" {
		c.Recorder.ArchiveDir = "data/archive"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Sentry.Environment == "" {
		c.Sentry.Environment = "development"
	}

	if c.Dashboard.DefaultWindow == 0 {
		c.Dashboard.DefaultWindow = 5
	}
}

// Validate reports configuration errors that would prevent startup.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	switch c.Upstream.Provider {
	case ProviderEvaluation:
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("upstream.provider alpaca requires alpaca.api_key and alpaca.api_secret")
		}
		if len(c.Alpaca.Universe) == 0 {
			return fmt.Errorf("upstream.provider alpaca requires a non-empty alpaca.universe")
		}
	default:
		return fmt.Errorf("unknown upstream.provider %q", c.Upstream.Provider)
	}
	if c.Upstream.Attempts < 1 {
		return fmt.Errorf("upstream.attempts must be at least 1")
	}
	if c.Upstream.RateLimitPerMin < 0 {
		return fmt.Errorf("upstream.rate_limit_per_min must not be negative")
	}
	for _, w := range c.Recorder.Windows {
		if w < 0 {
			return fmt.Errorf("recorder.windows: negative window %d", w)
		}
	}
	if c.Dashboard.DefaultWindow < 0 {
		return fmt.Errorf("dashboard.default_window must not be negative")
	}
	return nil
}

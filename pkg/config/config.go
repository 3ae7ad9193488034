// Package config loads chatledger configuration from defaults, an optional YAML file,
// a .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/storage"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable pointing at a YAML config file.
const FileEnv = "CHATLEDGER_CONFIG"

// DefaultDataPath is where the bolt backend keeps the ledger when nothing else is configured.
const DefaultDataPath = "data/chat-to-rich.db"

// Config is the full application configuration.
type Config struct {
	// Profile scopes the snapshot key so several ledgers can share one backend.
	Profile string `yaml:"profile"`

	// MonthlyBudget for a fresh ledger, as a decimal string. Empty keeps the built-in default.
	MonthlyBudget string `yaml:"monthly_budget"`

	Storage    StorageConfig    `yaml:"storage"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Resilience ResilienceConfig `yaml:"resilience"`
	HTTP       HTTPConfig       `yaml:"http"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Parser     ParserConfig     `yaml:"parser"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        logging.Options  `yaml:"log"`
}

// StorageConfig lists the backends the snapshot is mirrored to, primary first.
type StorageConfig struct {
	Backends []storage.BackendConfig `yaml:"backends"`
}

// SnapshotConfig tunes the snapshot writer.
type SnapshotConfig struct {
	// Key overrides the slot derived from Profile.
	Key string `yaml:"key"`

	WriteTimeout time.Duration `yaml:"write_timeout"`

	// FlushTimeout bounds how long shutdown waits for pending writes.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// ResilienceConfig configures the circuit breaker put around every backend.
type ResilienceConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CheckpointConfig schedules full-snapshot saves. An empty schedule disables them.
type CheckpointConfig struct {
	Schedule string `yaml:"schedule"`
}

// ParserConfig points at an optional rules file.
type ParserConfig struct {
	RulesPath  string        `yaml:"rules"`
	ReplyDelay time.Duration `yaml:"reply_delay"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backends: []storage.BackendConfig{{Driver: storage.DriverBolt, Path: DefaultDataPath}},
		},
		Snapshot: SnapshotConfig{
			WriteTimeout: 5 * time.Second,
			FlushTimeout: 5 * time.Second,
		},
		Resilience: ResilienceConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Checkpoint: CheckpointConfig{Schedule: "@every 5m"},
		Metrics:    MetricsConfig{Enabled: true, Namespace: "chatledger"},
		Log:        logging.DefaultOptions(),
	}
}

// Load builds the configuration. It reads envPath if given, otherwise .env in the
// working directory when present, then the YAML file named by CHATLEDGER_CONFIG,
// then environment variables. The result is validated.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("config: load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays the environment variables that are set.
func (c *Config) applyEnv() error {
	setString(&c.Profile, "PROFILE")
	setString(&c.MonthlyBudget, "MONTHLY_BUDGET")
	setString(&c.Snapshot.Key, "SNAPSHOT_KEY")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Parser.RulesPath, "PARSER_RULES")
	setString(&c.Metrics.Namespace, "METRICS_NAMESPACE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := os.LookupEnv("CHECKPOINT_SCHEDULE"); ok {
		c.Checkpoint.Schedule = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid LOG_DEV %q: %w", v, err)
		}
		c.Log.Development = dev
		if dev && os.Getenv("LOG_FORMAT") == "" {
			c.Log.Format = "console"
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid METRICS_ENABLED %q: %w", v, err)
		}
		c.Metrics.Enabled = enabled
	}
	if v := os.Getenv("REPLY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid REPLY_DELAY %q: %w", v, err)
		}
		c.Parser.ReplyDelay = d
	}

	if v := os.Getenv("STORAGE_BACKENDS"); v != "" {
		var backends []storage.BackendConfig
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			driver, err := storage.ParseDriver(name)
			if err != nil {
				return fmt.Errorf("config: STORAGE_BACKENDS: %w", err)
			}
			backends = append(backends, c.backendFor(driver))
		}
		c.Storage.Backends = backends
	}

	for i := range c.Storage.Backends {
		b := &c.Storage.Backends[i]
		switch b.Driver {
		case storage.DriverBolt:
			setString(&b.Path, "BOLT_PATH")
		case storage.DriverSQLite:
			setString(&b.Path, "SQLITE_PATH")
		case storage.DriverRedis:
			setString(&b.Addr, "REDIS_ADDR")
		case storage.DriverPostgres:
			setString(&b.DSN, "POSTGRES_DSN")
		}
	}
	return nil
}

// backendFor reuses the configured backend for driver, or returns a fresh one with defaults.
func (c *Config) backendFor(driver storage.Driver) storage.BackendConfig {
	for _, b := range c.Storage.Backends {
		if b.Driver == driver {
			return b
		}
	}
	b := storage.BackendConfig{Driver: driver}
	switch driver {
	case storage.DriverBolt:
		b.Path = DefaultDataPath
	case storage.DriverSQLite:
		b.Path = "data/chat-to-rich.sqlite"
	case storage.DriverRedis:
		b.Addr = "localhost:6379"
	}
	return b
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Budget returns the configured monthly budget, or nil when unset.
func (c *Config) Budget() (*decimal.Decimal, error) {
	if strings.TrimSpace(c.MonthlyBudget) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(c.MonthlyBudget))
	if err != nil {
		return nil, fmt.Errorf("config: invalid monthly budget %q: %w", c.MonthlyBudget, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("config: monthly budget must not be negative, got %s", d)
	}
	return &d, nil
}

// SnapshotKey returns the slot key: Snapshot.Key when set, otherwise one derived from Profile.
func (c *Config) SnapshotKey() (string, error) {
	if c.Snapshot.Key != "" {
		if err := storage.ValidateKey(c.Snapshot.Key); err != nil {
			return "", fmt.Errorf("config: snapshot key: %w", err)
		}
		return c.Snapshot.Key, nil
	}
	return storage.SnapshotKey(c.Profile)
}

// Validate checks the configuration for values that would fail at startup.
func (c *Config) Validate() error {
	if len(c.Storage.Backends) == 0 {
		return errors.New("config: at least one storage backend is required")
	}
	seen := make(map[string]bool)
	for i := range c.Storage.Backends {
		b := &c.Storage.Backends[i]
		if err := b.Validate(); err != nil {
			return fmt.Errorf("config: backend %d: %w", i, err)
		}
		name := b.DisplayName()
		if seen[name] {
			return fmt.Errorf("config: duplicate backend name %q", name)
		}
		seen[name] = true
	}

	if _, err := c.SnapshotKey(); err != nil {
		return err
	}
	if _, err := c.Budget(); err != nil {
		return err
	}
	if c.Snapshot.WriteTimeout < 0 || c.Snapshot.FlushTimeout < 0 {
		return errors.New("config: snapshot timeouts must not be negative")
	}
	if c.Resilience.Timeout < 0 || c.Resilience.OpenTimeout < 0 {
		return errors.New("config: resilience timeouts must not be negative")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("config: http address is required")
	}
	if c.Checkpoint.Schedule != "" {
		if _, err := cron.ParseStandard(c.Checkpoint.Schedule); err != nil {
			return fmt.Errorf("config: invalid checkpoint schedule %q: %w", c.Checkpoint.Schedule, err)
		}
	}
	if c.Parser.ReplyDelay < 0 {
		return errors.New("config: reply delay must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New("config: metrics namespace is required when metrics are enabled")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

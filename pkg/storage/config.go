package storage

import (
	"fmt"
	"strings"
	"time"
)

// Driver names a backend implementation.
type Driver string

// Supported drivers.
const (
	DriverMemory   Driver = "memory"
	DriverBolt     Driver = "bolt"
	DriverRedis    Driver = "redis"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver converts a configuration string into a Driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverMemory, DriverBolt, DriverRedis, DriverSQLite, DriverPostgres:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown storage driver %q", ErrInvalidValue, s)
	}
}

// BackendConfig holds configuration for one backend.
type BackendConfig struct {
	// Driver selects the implementation
	Driver Driver `yaml:"driver"`

	// Name is the identifier used in logs and metrics (defaults to the driver name)
	Name string `yaml:"name"`

	// Path is the database file for bolt and sqlite
	Path string `yaml:"path"`

	// Addr is the server address for redis
	Addr string `yaml:"addr"`

	// DSN is the connection string for postgres
	DSN string `yaml:"dsn"`

	// Timeout bounds each operation once wrapped by the resilience layer (0 = resilience default)
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks that the fields the driver needs are present.
func (c *BackendConfig) Validate() error {
	if _, err := ParseDriver(string(c.Driver)); err != nil {
		return err
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidValue)
	}

	switch c.Driver {
	case DriverBolt, DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("%w: %s backend requires a path", ErrInvalidValue, c.Driver)
		}
	case DriverRedis:
		if c.Addr == "" {
			return fmt.Errorf("%w: redis backend requires an address", ErrInvalidValue)
		}
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("%w: postgres backend requires a DSN", ErrInvalidValue)
		}
	}

	return nil
}

// DisplayName returns Name, falling back to the driver name.
func (c *BackendConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Driver)
}

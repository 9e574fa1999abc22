package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the Parley service.
type Config struct {
	BindAddr         string        `yaml:"bind_addr"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`

	// StoreBackend selects persistence: "memory" (default) or "redis".
	StoreBackend string `yaml:"store_backend"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	// SweepInterval is the period of the approval timeout sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// AuditLimit caps how many audit events history queries return by default.
	AuditLimit int `yaml:"audit_limit"`
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("PARLEY_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("PARLEY_METRICS_NAMESPACE", "parley"),
		StoreBackend:     envOrDefault("PARLEY_STORE", "memory"),
		RedisAddr:        envOrDefault("PARLEY_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("PARLEY_REDIS_PASSWORD"),
		RedisPrefix:      envOrDefault("PARLEY_REDIS_PREFIX", "parley:"),
		ShutdownTimeout:  5 * time.Second,
		SweepInterval:    60 * time.Second,
		AuditLimit:       100,
	}

	var err error
	if cfg.RedisDB, err = envInt("PARLEY_REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.AuditLimit, err = envInt("PARLEY_AUDIT_LIMIT", cfg.AuditLimit); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = envDuration("PARLEY_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = envDuration("PARLEY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}
	if cfg.RedisTTL, err = envDuration("PARLEY_REDIS_TTL", 0); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile loads defaults from the environment and overlays a YAML file.
// Fields absent from the file keep their environment/default values.
func LoadFile(path string) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q (want memory or redis)", c.StoreBackend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

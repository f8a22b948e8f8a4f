package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the process-wide configuration. It is loaded once in main and
// never mutated afterwards.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Tracing   TracingConfig   `toml:"tracing"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	RequestTimeout  Duration `toml:"request_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig selects the task store. Driver is one of sqlite, mysql or
// memory. For sqlite an empty DSN is derived from Path.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// RateLimitConfig disables limiting when RPS <= 0.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

type TracingConfig struct {
	Exporter    string `toml:"exporter"`
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

// Duration lets TOML files carry values like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Default returns the configuration used when neither a file nor the
// environment say otherwise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			RequestTimeout:  Duration{15 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "tasks.db",
		},
		Log: LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{
			RPS:   0,
			Burst: 10,
		},
		Tracing: TracingConfig{
			Exporter:    ExporterNone,
			ServiceName: "task-manager-api",
		},
	}
}

// Load reads the file named by TASKS_CONFIG (default config.toml) and then
// applies environment overrides.
func Load() (Config, error) {
	path := strings.TrimSpace(os.Getenv("TASKS_CONFIG"))
	if path == "" {
		path = "config.toml"
	}
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom is Load with an explicit file path and environment lookup.
// A missing file is not an error.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("reading config file: %w", err)
		default:
			if _, err := toml.Decode(string(data), &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("PORT"); ok {
		cfg.Server.Addr = ":" + v
	}
	if v, ok := get("ADDR"); ok {
		cfg.Server.Addr = v
	}
	for key, dst := range map[string]*Duration{
		"REQUEST_TIMEOUT":  &cfg.Server.RequestTimeout,
		"SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
	} {
		if v, ok := get(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	if v, ok := get("DB_DRIVER"); ok {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v, ok := get("DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v, ok := get("DB_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}

	if v, ok := get("RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = rps
	}
	if v, ok := get("RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = burst
	}

	if v, ok := get("TRACING_EXPORTER"); ok {
		cfg.Tracing.Exporter = strings.ToLower(v)
	}
	if v, ok := get("OTLP_ENDPOINT"); ok {
		cfg.Tracing.Endpoint = v
	}
	if v, ok := get("OTLP_INSECURE"); ok {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTLP_INSECURE: %w", err)
		}
		cfg.Tracing.Insecure = insecure
	}
	if v, ok := get("SERVICE_NAME"); ok {
		cfg.Tracing.ServiceName = v
	}
	return nil
}

// Validate reports the first setting that cannot be used to start the server.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("database: sqlite needs a path or dsn")
		}
	case DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database: mysql needs a dsn")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("tracing: unknown exporter %q", c.Tracing.Exporter)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server: addr is empty")
	}
	if c.Server.RequestTimeout.Duration <= 0 || c.Server.ShutdownTimeout.Duration <= 0 {
		return fmt.Errorf("server: timeouts must be positive")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit: burst must be at least 1")
	}
	return nil
}

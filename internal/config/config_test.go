package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFrom_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"), envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("expected default addr :5000, got %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "tasks.db" {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Server.RequestTimeout.Duration != 15*time.Second {
		t.Errorf("expected 15s request timeout, got %s", cfg.Server.RequestTimeout)
	}
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
addr = ":9000"
request_timeout = "3s"

[database]
driver = "memory"

[tracing]
exporter = "stdout"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path, envMap(map[string]string{
		"PORT":           "7070",
		"LOG_LEVEL":      "debug",
		"RATE_LIMIT_RPS": "2.5",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("PORT should override file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("expected 3s from file, got %s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Database.Driver)
	}
	if cfg.Tracing.Exporter != ExporterStdout {
		t.Errorf("expected stdout exporter, got %q", cfg.Tracing.Exporter)
	}
	if cfg.Log.Level != "debug" || cfg.RateLimit.RPS != 2.5 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":    {"DB_DRIVER": "postgres"},
		"mysql without dsn": {"DB_DRIVER": "mysql"},
		"bad exporter":      {"TRACING_EXPORTER": "zipkin"},
		"bad duration":      {"REQUEST_TIMEOUT": "soon"},
		"bad rps":           {"RATE_LIMIT_RPS": "fast"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom("", envMap(env)); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

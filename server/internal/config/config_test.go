package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Machine.MaxSuccessSteps != 5 || cfg.Machine.MaxEscalations != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Classifier.PredicatePoints != 25 {
		t.Fatalf("expected default classifier weights, got %+v", cfg.Classifier)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ROBOTCOACH_DB", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
storage:
  driver: sqlite
  path: /tmp/coach.db
machine:
  max_success_steps: 4
classifier:
  predicate_points: 25
  ratio_max_slope: 40
paths:
  rules: rules.yaml
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Addr() != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr())
	}
	if cfg.Machine.MaxSuccessSteps != 4 || cfg.Machine.MaxEscalations != 3 {
		t.Fatalf("unexpected machine config: %+v", cfg.Machine)
	}
	if cfg.Classifier.RatioMaxSlope != 40 {
		t.Fatalf("expected slope override, got %+v", cfg.Classifier)
	}
	if cfg.Paths.Rules != "rules.yaml" {
		t.Fatalf("unexpected rules path %q", cfg.Paths.Rules)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROBOTCOACH_DB", "/data/env.db")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/data/env.db" {
		t.Fatalf("expected env storage override, got %+v", cfg.Storage)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("ROBOTCOACH_DB", "")
	t.Setenv("GIN_MODE", "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "robotcoach.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Server.Port != 8080 {
		t.Fatalf("unexpected shipped config: %+v", cfg)
	}
	if cfg.Server.ReadTimeout.Seconds() != 15 {
		t.Fatalf("expected 15s read timeout, got %v", cfg.Server.ReadTimeout)
	}
}

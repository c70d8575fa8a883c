package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  db_path: "/var/lib/lucerna"
tokens:
  models:
    my-fine-tune: cl100k_base
security:
  api_keys: ["k1", "k2"]
  rate_limit:
    rps: 10
    burst: 20
retention:
  enabled: true
  cron: "0 3 * * *"
  period: "720h"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr: got %s", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/var/lib/lucerna" {
		t.Fatalf("db_path: got %s", cfg.Storage.DBPath)
	}
	if cfg.Tokens.Models["my-fine-tune"] != "cl100k_base" {
		t.Fatalf("tokens.models not parsed: %+v", cfg.Tokens.Models)
	}
	if len(cfg.Security.APIKeys) != 2 || cfg.Security.RateLimit.RPS != 10 {
		t.Fatalf("security not parsed: %+v", cfg.Security)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Period != "720h" {
		t.Fatalf("retention not parsed: %+v", cfg.Retention)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("default Addr: got %s", cfg.Addr())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LUCERNA_ADDR", "10.0.0.5:7000")
	t.Setenv("LUCERNA_DB_PATH", "/tmp/luc-db")
	t.Setenv("LUCERNA_API_KEYS", "a, b,,c")
	t.Setenv("LUCERNA_ALLOW_UNAUTH", "true")
	t.Setenv("LUCERNA_RATE_RPS", "5.5")
	t.Setenv("LUCERNA_RETENTION_PERIOD", "168h")

	var cfg Config
	if !LoadEnvOverrides(&cfg) {
		t.Fatal("expected envUsed")
	}
	if cfg.Addr() != "10.0.0.5:7000" {
		t.Fatalf("Addr: got %s", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/tmp/luc-db" {
		t.Fatalf("db_path: got %s", cfg.Storage.DBPath)
	}
	if got := cfg.Security.APIKeys; len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("api keys: got %+v", got)
	}
	if !cfg.Security.AllowUnauth {
		t.Fatal("allow_unauth not applied")
	}
	if cfg.Security.RateLimit.RPS != 5.5 {
		t.Fatalf("rps: got %v", cfg.Security.RateLimit.RPS)
	}
	// a period implies retention is on
	if !cfg.Retention.Enabled || cfg.Retention.Period != "168h" {
		t.Fatalf("retention: %+v", cfg.Retention)
	}
}

func TestEnvHostPortSplit(t *testing.T) {
	t.Setenv("LUCERNA_ADDRESS", "192.168.1.2")
	t.Setenv("LUCERNA_PORT", "8443")
	var cfg Config
	LoadEnvOverrides(&cfg)
	if cfg.Addr() != "192.168.1.2:8443" {
		t.Fatalf("Addr: got %s", cfg.Addr())
	}
}

func TestLoadEffectiveMissingFileNotFatal(t *testing.T) {
	t.Setenv("LUCERNA_DB_PATH", "/data/x")
	cfg, envUsed, err := LoadEffective(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if !envUsed || cfg.Storage.DBPath != "/data/x" {
		t.Fatalf("env overrides not applied: used=%v cfg=%+v", envUsed, cfg.Storage)
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("./flagged.yaml", true); got != "./flagged.yaml" {
		t.Fatalf("flag wins: got %s", got)
	}
	t.Setenv("LUCERNA_CONFIG", "/etc/lucerna/config.yaml")
	if got := ResolveConfigPath("./default.yaml", false); got != "/etc/lucerna/config.yaml" {
		t.Fatalf("env fallback: got %s", got)
	}
}

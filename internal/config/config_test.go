package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "elasto.yaml")
	content := `
azure:
  account: acc1
  account_key: a2V5
conn:
  insecure_http: true
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Azure.Account != "acc1" || cfg.Azure.AccountKey != "a2V5" {
		t.Errorf("azure = %+v", cfg.Azure)
	}
	if !cfg.Conn.InsecureHTTP {
		t.Error("insecure_http not picked up")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("s3 region default = %q", cfg.S3.Region)
	}
	if got := cfg.Conn.InactivityTimeout(); got != 30*time.Second {
		t.Errorf("inactivity timeout = %v, want 30s", got)
	}
}

func TestLoadFallsBackToExampleFile(t *testing.T) {
	dir := t.TempDir()
	example := filepath.Join(dir, "elasto.example.yaml")
	if err := os.WriteFile(example, []byte("s3:\n  region: eu-west-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(filepath.Join(dir, "elasto.yaml"))
	if err != nil {
		t.Fatalf("Load via fallback: %v", err)
	}
	if cfg.S3.Region != "eu-west-1" {
		t.Errorf("region = %q, want eu-west-1", cfg.S3.Region)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "elasto.yaml")
	if err := os.WriteFile(p, []byte(":\n\t- not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Error("malformed YAML did not fail")
	}
}

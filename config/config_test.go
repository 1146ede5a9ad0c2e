package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkName != "paystream-local" {
		t.Fatalf("unexpected network name %q", cfg.NetworkName)
	}
	if len(cfg.Tokens) == 0 {
		t.Fatalf("default config has no tokens")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.MetricsAddress != cfg.MetricsAddress {
		t.Fatalf("reload mismatch: %q != %q", reloaded.MetricsAddress, cfg.MetricsAddress)
	}
}

func TestLoadRejectsUnnamedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "DataDir = \"./data\"\n\n[[Tokens]]\nSymbol = \"\"\nName = \"Broken\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for token without symbol")
	}
}

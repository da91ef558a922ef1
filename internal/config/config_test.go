package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 18789 {
		t.Errorf("default port = %d, want 18789", cfg.Server.Port)
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("default provider = %q, want anthropic", cfg.DefaultProvider)
	}
}

func TestWriteDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.HistoryLimit != 50 {
		t.Errorf("history limit = %d, want 50", cfg.Session.HistoryLimit)
	}
}

func TestValidateRejectsUnknownDefaultProvider(t *testing.T) {
	cfg := applyDefaults()
	cfg.DefaultProvider = "does-not-exist"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for unknown default_provider")
	}
}

func TestValidateRejectsUnpairedTLS(t *testing.T) {
	cfg := applyDefaults()
	cfg.Server.TLS.Cert = "cert.pem"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for cert without key")
	}
}

func TestValidateRejectsConfiguredTLS(t *testing.T) {
	cfg := applyDefaults()
	cfg.Server.TLS.Cert = "cert.pem"
	cfg.Server.TLS.Key = "key.pem"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for configured TLS cert/key")
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := applyDefaults()
	cfg.Server.Port = 0
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8500 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8500)
	}
	if cfg.API.Addr() != "127.0.0.1:8500" {
		t.Errorf("Addr() = %q", cfg.API.Addr())
	}
	if cfg.Database.Path != "airgrid.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Stream.KeepaliveSeconds != 25 {
		t.Errorf("Stream.KeepaliveSeconds = %d, want 25", cfg.Stream.KeepaliveSeconds)
	}
	if cfg.Stream.SubscriberBuffer != 64 {
		t.Errorf("Stream.SubscriberBuffer = %d, want 64", cfg.Stream.SubscriberBuffer)
	}
	if cfg.Jobs.RetentionHours != 24 {
		t.Errorf("Jobs.RetentionHours = %d, want 24", cfg.Jobs.RetentionHours)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis should be opt-in")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != 8500 {
		t.Errorf("API.Port = %d, want the default", cfg.API.Port)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airgrid.toml")
	doc := `
timezone = "Europe/Paris"

[api]
host = "0.0.0.0"
port = 9000

[redis]
enabled = true
addr = "redis:6379"

[stream]
keepalive_seconds = 15

[log]
level = "debug"
pretty = true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q", cfg.API.Addr())
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Stream.KeepaliveSeconds != 15 {
		t.Errorf("KeepaliveSeconds = %d, want 15", cfg.Stream.KeepaliveSeconds)
	}
	// Unset sections keep defaults.
	if cfg.Database.Path != "airgrid.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if cfg.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
}

func TestLoad_RejectsBadKeepalive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airgrid.toml")
	doc := "[stream]\nkeepalive_seconds = 60\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for keepalive above 30s")
	}
}

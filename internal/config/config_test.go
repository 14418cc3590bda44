package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "commhub" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "commhub")
	}
	if cfg.DefaultTimeout != 5*time.Minute {
		t.Errorf("DefaultTimeout = %v, want 5m", cfg.DefaultTimeout)
	}
	if cfg.ConsensusTimeout != 60*time.Second {
		t.Errorf("ConsensusTimeout = %v, want 60s", cfg.ConsensusTimeout)
	}
	if !slices.Equal(cfg.SupervisorRoles, []string{"ceo", "supervisor"}) {
		t.Errorf("SupervisorRoles = %v, want [ceo supervisor]", cfg.SupervisorRoles)
	}
	if cfg.HealthAddress() != ":8080" {
		t.Errorf("HealthAddress() = %q, want %q", cfg.HealthAddress(), ":8080")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("COMMHUB_NAME", "hub-eu-1")
	t.Setenv("COMMHUB_DEFAULT_TIMEOUT", "90s")
	t.Setenv("COMMHUB_SUPERVISOR_ROLES", "lead, manager ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HubName != "hub-eu-1" {
		t.Errorf("HubName = %q, want %q", cfg.HubName, "hub-eu-1")
	}
	if cfg.DefaultTimeout != 90*time.Second {
		t.Errorf("DefaultTimeout = %v, want 90s", cfg.DefaultTimeout)
	}
	if !slices.Equal(cfg.SupervisorRoles, []string{"lead", "manager"}) {
		t.Errorf("SupervisorRoles = %v, want [lead manager]", cfg.SupervisorRoles)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("COMMHUB_DEFAULT_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultTimeout != 5*time.Minute {
		t.Errorf("DefaultTimeout = %v, want the 5m default", cfg.DefaultTimeout)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commhub.yaml")
	data := []byte("hub_name: hub-from-file\nlog_level: WARN\nsupervisor_roles: [lead]\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("COMMHUB_NAME", "hub-from-env")
	t.Setenv("COMMHUB_HEALTH_PORT", "9999")
	t.Setenv("COMMHUB_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// File keys win over environment keys.
	if cfg.HubName != "hub-from-file" {
		t.Errorf("HubName = %q, want the file value", cfg.HubName)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want warn", cfg.SlogLevel())
	}
	if !slices.Equal(cfg.SupervisorRoles, []string{"lead"}) {
		t.Errorf("SupervisorRoles = %v, want [lead]", cfg.SupervisorRoles)
	}
	// Keys absent from the file keep their environment values.
	if cfg.HealthPort != "9999" {
		t.Errorf("HealthPort = %q, want the env value", cfg.HealthPort)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("COMMHUB_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for a missing config file")
	}
}

func TestSlogLevelUnknownFallsBack(t *testing.T) {
	cfg := &AppConfig{LogLevel: "VERBOSE"}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want info fallback", cfg.SlogLevel())
	}
}

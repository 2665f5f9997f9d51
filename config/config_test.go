package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsOverEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "event:\n  name: \"Winter Field Day\"\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Event.Name != "Winter Field Day" {
		t.Fatalf("expected event.name from file, got %q", cfg.Event.Name)
	}
	if cfg.Network.Port != 12060 {
		t.Fatalf("expected default port 12060, got %d", cfg.Network.Port)
	}
	if cfg.Pipeline.QueueSize != 4096 {
		t.Fatalf("expected default queue_size 4096, got %d", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.GracePeriodSeconds != 30 {
		t.Fatalf("expected default grace_period_seconds 30, got %d", cfg.Pipeline.GracePeriodSeconds)
	}
	if cfg.Database.Path != "data/qso_log.db" {
		t.Fatalf("expected default database path, got %q", cfg.Database.Path)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `network:
  port: 13070
  read_timeout_seconds: 2
database:
  path: "contest/log.db"
pipeline:
  queue_size: 512
dedup:
  window_seconds: 600
journal:
  enabled: true
  path: "contest/journal"
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Network.Port != 13070 {
		t.Fatalf("expected port 13070, got %d", cfg.Network.Port)
	}
	if cfg.Database.Path != "contest/log.db" {
		t.Fatalf("expected overridden database path, got %q", cfg.Database.Path)
	}
	if cfg.Pipeline.QueueSize != 512 {
		t.Fatalf("expected queue_size 512, got %d", cfg.Pipeline.QueueSize)
	}
	if cfg.Dedup.WindowSeconds != 600 {
		t.Fatalf("expected dedup window 600, got %d", cfg.Dedup.WindowSeconds)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "contest/journal" {
		t.Fatalf("expected journal enabled at contest/journal, got %+v", cfg.Journal)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"port out of range", "network:\n  port: 70000\n"},
		{"negative dedup window", "dedup:\n  window_seconds: -1\n"},
		{"negative journal retention", "journal:\n  retention_hours: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected Load() to reject %s", tc.name)
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected Load() to fail on a missing file")
	}
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	if _, err := Load(writeConfig(t, "network: [not a mapping\n")); err == nil {
		t.Fatal("expected Load() to fail on malformed YAML")
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default configuration failed validation: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"confagenda/internal/model"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Role != RolePrimary || cfg.Sync.Key != "climate2025_sync" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Timing.Highlight != 12*time.Second || again.Sync.StaleAfter != 3*time.Second {
		t.Fatalf("durations did not survive a round trip: %+v %+v", again.Timing, again.Sync)
	}
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `role: secondary
timezone: Europe/Berlin
timing:
  highlight: 5s
conference:
  name: Summit
  days:
    - label: Day 1
      date: 2026-03-02
sync:
  poll_interval: 500ms
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Role != RoleSecondary || cfg.Timing.Highlight != 5*time.Second {
		t.Fatalf("explicit values lost: %+v", cfg)
	}
	if cfg.Timing.Tick != time.Second || cfg.Timing.PreEventWindow != 120 {
		t.Fatalf("timing defaults missing: %+v", cfg.Timing)
	}
	if cfg.Sync.PollInterval != 500*time.Millisecond || cfg.Sync.Store != StoreSQLite {
		t.Fatalf("sync = %+v", cfg.Sync)
	}
	days := cfg.Days()
	if len(days) != 1 || days[0].Date != model.MustDate("2026-03-02") {
		t.Fatalf("Days = %+v", days)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("Location = %v", cfg.Location())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNormalize_UnknownRoleFallsBack(t *testing.T) {
	cfg := &Config{Role: "tertiary"}
	cfg.Normalize()
	if cfg.Role != RolePrimary {
		t.Fatalf("Role = %q", cfg.Role)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"bad timezone":  func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad day cron":  func(c *Config) { c.Timing.DayCheck = "every minute" },
		"bad capture":   func(c *Config) { c.Capture.Every = "soon" },
		"file and url":  func(c *Config) { c.Agenda.File, c.Agenda.URL = "a.yaml", "https://x/a.ics" },
		"dup day":       func(c *Config) { c.Conference.Days = []DayConfig{day("A"), day("A")} },
		"unlabeled day": func(c *Config) { c.Conference.Days = []DayConfig{{Date: model.MustDate("2026-01-01")}} },
		"both on disk":  func(c *Config) { c.Role = RoleBoth },
		"split memory":  func(c *Config) { c.Sync.Store = StoreMemory },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	both := DefaultConfig()
	both.Role, both.Sync.Store = RoleBoth, StoreMemory
	if err := both.Validate(); err != nil {
		t.Fatalf("both+memory invalid: %v", err)
	}
}

func day(label string) DayConfig {
	return DayConfig{Label: label, Date: model.MustDate("2026-01-01")}
}

func TestSave_DoesNotLeaveTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "ops", Password: "secret"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".confagenda-config-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BasicAuth == nil || loaded.BasicAuth.Username != "ops" {
		t.Fatalf("BasicAuth = %+v", loaded.BasicAuth)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // kiosk images often ship without zoneinfo

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"confagenda/internal/model"
)

// Display roles.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
	// RoleBoth runs the two displays in one process over an in-memory store.
	RoleBoth = "both"
)

// Sync store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// DayConfig names one conference day.
type DayConfig struct {
	Label string     `yaml:"label" json:"label"`
	Date  model.Date `yaml:"date" json:"date"`
}

// ConferenceConfig describes the event. Days are only needed for calendar
// agendas; YAML and JSON agenda files carry their own.
type ConferenceConfig struct {
	Name string      `yaml:"name" json:"name"`
	Days []DayConfig `yaml:"days" json:"days"`
}

// AgendaConfig selects the agenda source. With File and URL empty the
// built-in timetable is used.
type AgendaConfig struct {
	File     string `yaml:"file" json:"file"`
	URL      string `yaml:"url" json:"url"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// TimingConfig holds every cadence of the display loop.
type TimingConfig struct {
	Tick time.Duration `yaml:"tick" json:"tick"`
	// DayCheck is a cron spec for day detection and the pre-event window.
	DayCheck  string        `yaml:"day_check" json:"day_check"`
	Highlight time.Duration `yaml:"highlight" json:"highlight"`
	// PreEventWindow is in minutes.
	PreEventWindow int           `yaml:"pre_event_window" json:"pre_event_window"`
	Health         time.Duration `yaml:"health" json:"health"`
	ManualTimeout  time.Duration `yaml:"manual_timeout" json:"manual_timeout"`
}

// SyncConfig configures the cross-display channel.
type SyncConfig struct {
	Store           string        `yaml:"store" json:"store"`
	Path            string        `yaml:"path" json:"path"`
	Key             string        `yaml:"key" json:"key"`
	PublishInterval time.Duration `yaml:"publish_interval" json:"publish_interval"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	StaleAfter      time.Duration `yaml:"stale_after" json:"stale_after"`
}

// CaptureConfig configures headless screenshots of the display page.
type CaptureConfig struct {
	// URL defaults to the local /display page.
	URL    string `yaml:"url" json:"url"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	// Every is a cron spec; empty disables periodic capture.
	Every string `yaml:"every" json:"every"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the operator API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the operator API.
	Listen string `yaml:"listen" json:"listen"`
	Role   string `yaml:"role" json:"role"`
	// Timezone is the IANA zone the agenda is written in (e.g. "Asia/Colombo").
	Timezone string `yaml:"timezone" json:"timezone"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Conference ConferenceConfig `yaml:"conference" json:"conference"`
	Agenda     AgendaConfig     `yaml:"agenda" json:"agenda"`
	Timing     TimingConfig     `yaml:"timing" json:"timing"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Capture    CaptureConfig    `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Role:     RolePrimary,
		Timezone: "Asia/Colombo",
		LogLevel: "info",
		Conference: ConferenceConfig{
			Days: []DayConfig{},
		},
		Agenda: AgendaConfig{
			CacheDir: "./var/agenda-cache",
		},
		Timing: TimingConfig{
			Tick:           time.Second,
			DayCheck:       "* * * * *",
			Highlight:      12 * time.Second,
			PreEventWindow: 120,
			Health:         30 * time.Second,
			ManualTimeout:  30 * time.Second,
		},
		Sync: SyncConfig{
			Store:           StoreSQLite,
			Path:            "./var/sync.db",
			Key:             "climate2025_sync",
			PublishInterval: time.Second,
			PollInterval:    2 * time.Second,
			StaleAfter:      3 * time.Second,
		},
		Capture: CaptureConfig{
			Output: "./var/display.png",
			Width:  1280,
			Height: 720,
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially
// filled configs still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}
	switch c.Role {
	case RolePrimary, RoleSecondary, RoleBoth:
	default:
		c.Role = d.Role
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Conference.Days == nil {
		c.Conference.Days = []DayConfig{}
	}
	if c.Agenda.CacheDir == "" {
		c.Agenda.CacheDir = d.Agenda.CacheDir
	}

	t := &c.Timing
	if t.Tick <= 0 {
		t.Tick = d.Timing.Tick
	}
	if t.DayCheck == "" {
		t.DayCheck = d.Timing.DayCheck
	}
	if t.Highlight <= 0 {
		t.Highlight = d.Timing.Highlight
	}
	if t.PreEventWindow <= 0 {
		t.PreEventWindow = d.Timing.PreEventWindow
	}
	if t.Health <= 0 {
		t.Health = d.Timing.Health
	}
	if t.ManualTimeout <= 0 {
		t.ManualTimeout = d.Timing.ManualTimeout
	}

	s := &c.Sync
	switch s.Store {
	case StoreMemory, StoreSQLite:
	default:
		s.Store = d.Sync.Store
	}
	if s.Path == "" {
		s.Path = d.Sync.Path
	}
	if s.Key == "" {
		s.Key = d.Sync.Key
	}
	if s.PublishInterval <= 0 {
		s.PublishInterval = d.Sync.PublishInterval
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.Sync.PollInterval
	}
	if s.StaleAfter <= 0 {
		s.StaleAfter = d.Sync.StaleAfter
	}

	if c.Capture.Output == "" {
		c.Capture.Output = d.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.Timing.DayCheck); err != nil {
		return fmt.Errorf("config: timing.day_check %q: %w", c.Timing.DayCheck, err)
	}
	if c.Capture.Every != "" {
		if _, err := cron.ParseStandard(c.Capture.Every); err != nil {
			return fmt.Errorf("config: capture.every %q: %w", c.Capture.Every, err)
		}
	}
	if c.Agenda.File != "" && c.Agenda.URL != "" {
		return errors.New("config: agenda.file and agenda.url are mutually exclusive")
	}
	seen := make(map[string]bool, len(c.Conference.Days))
	for _, d := range c.Conference.Days {
		if d.Label == "" || d.Date.IsZero() {
			return errors.New("config: conference day needs a label and a date")
		}
		if seen[d.Label] {
			return fmt.Errorf("config: duplicate conference day %q", d.Label)
		}
		seen[d.Label] = true
	}
	if c.Role == RoleBoth && c.Sync.Store != StoreMemory {
		return fmt.Errorf("config: role %q shares one process and needs sync.store %q", RoleBoth, StoreMemory)
	}
	if c.Role != RoleBoth && c.Sync.Store == StoreMemory {
		return fmt.Errorf("config: role %q needs sync.store %q to reach the other display", c.Role, StoreSQLite)
	}
	return nil
}

// Location returns the configured zone, or time.Local when it is invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Days returns the conference days as day schedules without entries.
func (c *Config) Days() []model.DaySchedule {
	out := make([]model.DaySchedule, 0, len(c.Conference.Days))
	for _, d := range c.Conference.Days {
		out = append(out, model.DaySchedule{Label: d.Label, Date: d.Date})
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can run without a file.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confagenda-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "eventflow/internal/log"
)

// DefaultPath is where the service looks for its configuration.
const DefaultPath = "/etc/eventflow/config.yaml"

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Local"
	defaultLogLevel     = "info"
	defaultHorizonDays  = 30
	defaultBackfillDays = 7
	defaultCacheDir     = "/var/lib/eventflow/ics-cache"
	defaultSnapshotCron = "*/15 * * * *"
	defaultSnapshotDir  = "/var/lib/eventflow"
	defaultWidth        = 1280
	defaultHeight       = 960
)

// cronParser accepts the classic 5-field form used by the scheduler.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RemoteConfig points at the upstream backend. An empty BaseURL means the
// tracker runs local-only.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// ICSConfig describes a single ICS calendar used as fallback dataset.
type ICSConfig struct {
	// URL is an http(s) URL, a file:// URL or a filesystem path.
	URL string `yaml:"url" json:"url"`
	// ID is used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// FallbackConfig selects the dataset loaded when the upstream is unreachable.
// With no ICS sources the built-in demo list is used.
type FallbackConfig struct {
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// HorizonDays / BackfillDays bound recurrence expansion around today.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// SnapshotConfig drives the periodic ICS export and page capture.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Cron is a 5-field cron expression (e.g. "*/15 * * * *").
	Cron string `yaml:"cron" json:"cron"`
	// Dir receives events.ics and preview.png.
	Dir string `yaml:"dir" json:"dir"`
	// Capture also renders the UI to preview.png with headless Chromium.
	Capture bool `yaml:"capture" json:"capture"`
	Width   int  `yaml:"width" json:"width"`
	Height  int  `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides "today" (e.g. "Asia/Seoul").
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Remote   RemoteConfig   `yaml:"remote" json:"remote"`
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		LogLevel: defaultLogLevel,
		Fallback: FallbackConfig{
			ICS:          []ICSConfig{},
			HorizonDays:  defaultHorizonDays,
			BackfillDays: defaultBackfillDays,
			CacheDir:     defaultCacheDir,
		},
		Snapshot: SnapshotConfig{
			Cron:   defaultSnapshotCron,
			Dir:    defaultSnapshotDir,
			Width:  defaultWidth,
			Height: defaultHeight,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Fallback.ICS == nil {
		c.Fallback.ICS = []ICSConfig{}
	}
	if c.Fallback.HorizonDays <= 0 {
		c.Fallback.HorizonDays = defaultHorizonDays
	}
	if c.Fallback.BackfillDays < 0 {
		c.Fallback.BackfillDays = 0
	}
	if c.Fallback.CacheDir == "" {
		c.Fallback.CacheDir = defaultCacheDir
	}
	if c.Snapshot.Cron == "" {
		c.Snapshot.Cron = defaultSnapshotCron
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = defaultSnapshotDir
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = defaultWidth
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = defaultHeight
	}
	// Empty credentials disable auth rather than locking everyone out.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Validate reports the first setting that cannot be used as written.
func (c *Config) Validate() error {
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cronParser.Parse(c.Snapshot.Cron); err != nil {
		return fmt.Errorf("config: snapshot.cron %q: %w", c.Snapshot.Cron, err)
	}
	if c.Remote.BaseURL != "" {
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: remote.base_url %q is not an http(s) URL", c.Remote.BaseURL)
		}
	}
	for i, src := range c.Fallback.ICS {
		if src.URL == "" {
			return fmt.Errorf("config: fallback.ics[%d] has no url", i)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Schedule parses Snapshot.Cron.
func (c *Config) Schedule() (cron.Schedule, error) {
	return cronParser.Parse(c.Snapshot.Cron)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".eventflow-config-*.tmp")
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

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

package config

import (
	"io/fs"
	"os"
	"time"
	_ "time/tzdata" // zone names must validate on hosts without a zoneinfo db

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"w2wcal/internal/fsutil"
	"w2wcal/internal/ics"
)

// Validation errors.
var (
	ErrEmptyPath         = errors.New("config path is empty")
	ErrNilConfig         = errors.New("config is nil")
	ErrSourceMissingID   = errors.New("source id is required")
	ErrSourceMissingData = errors.New("source needs either url or file")
	ErrInvalidRefresh    = errors.New("refresh must be a standard 5-field cron spec")
	ErrInvalidTimezone   = errors.New("timezone is not a known IANA zone")
	ErrInvalidLogLevel   = errors.New("log_level must be one of: debug, info, warn, error")
)

const (
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "./var/ics-cache"
	defaultOutput   = "./data/w2w-data.json"
	defaultLogLevel = "info"
	defaultListen   = "127.0.0.1:8080"
)

// SourceConfig describes a single calendar export.
type SourceConfig struct {
	// ID is used in logs and in the exported document.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// URL is an iCal feed endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// File is a local .ics path; it wins over URL.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// Source converts the config entry into a loader source.
func (s SourceConfig) Source() ics.Source {
	return ics.Source{ID: s.ID, URL: s.URL, File: s.File}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the upload server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address used by the serve command.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone display strings are rendered in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects the short date/time layouts (BCP 47, e.g. "vi-VN").
	Locale string `yaml:"locale" json:"locale"`

	// LocalTimezone is the zone floating wall-clock values are read in.
	// Empty means the process's local zone.
	LocalTimezone string `yaml:"local_timezone,omitempty" json:"local_timezone,omitempty"`

	// Refresh is the cron schedule used by the watch command.
	Refresh string `yaml:"refresh" json:"refresh"`

	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Output is where watch writes the exported JSON document.
	Output string `yaml:"output" json:"output"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: ics.DefaultDisplayZone,
		Locale:   ics.DefaultLocale,
		Refresh:  defaultRefresh,
		CacheDir: defaultCacheDir,
		Output:   defaultOutput,
		LogLevel: defaultLogLevel,
		Sources:  []SourceConfig{},
	}
}

// Normalize fills in missing values so partially-filled configs still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = ics.DefaultDisplayZone
	}
	if c.Locale == "" {
		c.Locale = ics.DefaultLocale
	}
	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.Refresh); err != nil {
		return errors.Wrapf(ErrInvalidRefresh, "%q: %v", c.Refresh, err)
	}
	for _, zone := range []string{c.Timezone, c.LocalTimezone} {
		if zone == "" {
			continue
		}
		if _, err := time.LoadLocation(zone); err != nil {
			return errors.Wrapf(ErrInvalidTimezone, "%q", zone)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalidLogLevel, "%q", c.LogLevel)
	}
	for i, s := range c.Sources {
		if s.ID == "" {
			return errors.Wrapf(ErrSourceMissingID, "sources[%d]", i)
		}
		if s.URL == "" && s.File == "" {
			return errors.Wrapf(ErrSourceMissingData, "source %q", s.ID)
		}
	}
	return nil
}

// DisplayLocation resolves Timezone, falling back to time.Local.
func (c *Config) DisplayLocation() *time.Location {
	return ics.LoadLocationOr(c.Timezone, time.Local)
}

// Local resolves LocalTimezone, falling back to time.Local.
func (c *Config) Local() *time.Location {
	return ics.LoadLocationOr(c.LocalTimezone, time.Local)
}

// Load reads configuration from path. On first run, when the file does not
// exist, a default config is written with 0600 perms and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return fsutil.WriteFileAtomic(path, data, ".w2wcal-config-*.tmp")
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

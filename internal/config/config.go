package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"agenda/internal/agenda"
	appLog "agenda/internal/log"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultDigest      = "0 7 * * *"
	defaultHorizonDays = 7
	defaultLogLevel    = "info"
)

// EventConfig describes one event as written in the YAML file.
type EventConfig struct {
	Title string `yaml:"title" json:"title"`
	// Start is a floating date-time, "2006-01-02T15:04" or with seconds.
	Start string `yaml:"start" json:"start"`
	// Duration uses Go syntax ("1h30m"); empty means zero.
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`

	// Repeat is "daily", "weekly" or "monthly"; empty means a single occurrence.
	Repeat     string   `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	Exceptions []string `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`

	// At most one of Until (a date) and Count may be set.
	Until string `yaml:"until,omitempty" json:"until,omitempty"`
	Count int    `yaml:"count,omitempty" json:"count,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Digest is a standard 5-field cron expression; on each tick the
	// server logs the events of the current day.
	Digest string `yaml:"digest" json:"digest"`

	// HorizonDays is the default number of days returned by /api/days.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Events []EventConfig `yaml:"events" json:"events"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		LogLevel:    defaultLogLevel,
		Digest:      defaultDigest,
		HorizonDays: defaultHorizonDays,
		Events:      []EventConfig{},
	}
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok || c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.Digest) == "" {
		c.Digest = defaultDigest
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
}

// Validate checks the digest schedule and every event definition.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.Digest); err != nil {
		return fmt.Errorf("digest %q: %w", c.Digest, err)
	}
	var errs []error
	for i, ec := range c.Events {
		if _, err := ec.Event(); err != nil {
			errs = append(errs, fmt.Errorf("events[%d] %q: %w", i, ec.Title, err))
		}
	}
	return errors.Join(errs...)
}

// Agenda builds the configured events. Invalid entries are logged and
// skipped; the returned error joins all of them.
func (c *Config) Agenda() (*agenda.Agenda, error) {
	var (
		a    agenda.Agenda
		errs []error
	)
	for i, ec := range c.Events {
		e, err := ec.Event()
		if err != nil {
			appLog.Error("config: skipping invalid event", err, "index", i, "title", ec.Title)
			errs = append(errs, fmt.Errorf("events[%d] %q: %w", i, ec.Title, err))
			continue
		}
		a.Add(e)
	}
	appLog.Debug("config: agenda built", "events", a.Len(), "skipped", len(errs))
	return &a, errors.Join(errs...)
}

// Event converts the YAML form into an agenda event.
func (ec EventConfig) Event() (*agenda.Event, error) {
	start, err := ParseDateTime(ec.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	var d time.Duration
	if strings.TrimSpace(ec.Duration) != "" {
		if d, err = time.ParseDuration(strings.TrimSpace(ec.Duration)); err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
	}

	e, err := agenda.NewEvent(ec.Title, start, d)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ec.Repeat) == "" {
		if len(ec.Exceptions) > 0 || ec.Until != "" || ec.Count != 0 {
			return nil, errors.New("exceptions, until and count require repeat")
		}
		return e, nil
	}

	freq, err := agenda.ParseFrequency(ec.Repeat)
	if err != nil {
		return nil, err
	}
	if err := e.SetRepetition(freq); err != nil {
		return nil, err
	}
	for _, s := range ec.Exceptions {
		ex, err := civil.ParseDate(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("exception: %w", err)
		}
		e.AddException(ex)
	}

	switch {
	case ec.Until != "" && ec.Count != 0:
		return nil, fmt.Errorf("%w: until and count are mutually exclusive", agenda.ErrInvalidTermination)
	case ec.Until != "":
		until, err := civil.ParseDate(strings.TrimSpace(ec.Until))
		if err != nil {
			return nil, fmt.Errorf("until: %w", err)
		}
		if err := e.SetTerminationDate(until); err != nil {
			return nil, err
		}
	case ec.Count != 0:
		if err := e.SetTerminationCount(ec.Count); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// FromEvent converts an agenda event back into its YAML form. A terminated
// series is written with its occurrence count.
func FromEvent(e *agenda.Event) EventConfig {
	ec := EventConfig{
		Title: e.Title(),
		Start: FormatDateTime(e.Start()),
	}
	if e.Duration() != 0 {
		ec.Duration = e.Duration().String()
	}
	if r, ok := e.Repetition(); ok {
		ec.Repeat = r.Frequency().String()
		for _, d := range r.Exceptions() {
			ec.Exceptions = append(ec.Exceptions, d.String())
		}
		if t, ok := r.Termination(); ok {
			ec.Count = t.Count()
		}
	}
	return ec
}

// ParseDateTime accepts "2006-01-02T15:04", "2006-01-02T15:04:05" and a
// bare date meaning midnight.
func ParseDateTime(s string) (civil.DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateTimeOf(t), nil
		}
	}
	return civil.ParseDateTime(s)
}

// FormatDateTime is the inverse of ParseDateTime. Seconds are written only
// when non-zero.
func FormatDateTime(dt civil.DateTime) string {
	layout := "2006-01-02T15:04"
	if dt.Time.Second != 0 {
		layout = "2006-01-02T15:04:05"
	}
	return dt.In(time.UTC).Format(layout)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("config: creating default config", "path", path)
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
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

	tmp, err := os.CreateTemp(dir, ".agenda-config-*.tmp")
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

/*
Package config loads server configuration.

SOURCES (later wins):
 1. Defaults
 2. YAML file (optional, -config flag)
 3. .env file in the working directory (optional)
 4. TIMESHEET_* environment variables

EXAMPLE FILE:

	server:
	  port: 8080
	  cors_origins: ["http://localhost:5173"]
	database:
	  path: ./data/timesheets.db
	log:
	  level: info
	  format: json
	pay_period:
	  anchor: "2025-01-06"
	reminders:
	  enabled: true
	  interval: 24h
	slack:
	  token: xoxb-...
	  review_channel: C0123456
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/williambergmann/timesheet/calendar"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TIMESHEET_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	PayPeriod PayPeriodConfig `yaml:"pay_period"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Slack     SlackConfig     `yaml:"slack"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is a SQLite file path, or ":memory:" for the in-memory store.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type PayPeriodConfig struct {
	Anchor string `yaml:"anchor"` // YYYY-MM-DD, first day of any pay period
}

type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type SlackConfig struct {
	Token         string `yaml:"token"`
	ReviewChannel string `yaml:"review_channel"`
}

type NotifyConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Default returns a configuration that runs locally without any file.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database:  DatabaseConfig{Path: "./data/timesheets.db"},
		Log:       LogConfig{Level: "info", Format: "json"},
		PayPeriod: PayPeriodConfig{Anchor: calendar.DefaultPayPeriodAnchor.String()},
		Reminders: ReminderConfig{Enabled: true, Interval: 24 * time.Hour},
		Notify:    NotifyConfig{QueueSize: 256},
	}
}

// Load reads path (if non-empty), then .env, then the environment, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("PAY_PERIOD_ANCHOR"); ok {
		c.PayPeriod.Anchor = v
	}
	if v, ok := lookup("REMINDERS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREMINDERS_ENABLED: %w", EnvPrefix, err)
		}
		c.Reminders.Enabled = enabled
	}
	if v, ok := lookup("REMINDER_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREMINDER_INTERVAL: %w", EnvPrefix, err)
		}
		c.Reminders.Interval = d
	}
	if v, ok := lookup("SLACK_BOT_TOKEN"); ok {
		c.Slack.Token = v
	}
	if v, ok := lookup("SLACK_REVIEW_CHANNEL"); ok {
		c.Slack.ReviewChannel = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", f))
	}
	if _, err := c.PayPeriods(); err != nil {
		errs = append(errs, err)
	}
	if c.Reminders.Enabled && c.Reminders.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("reminders.interval %s must be at least 1m", c.Reminders.Interval))
	}
	if c.Slack.Token != "" && c.Slack.ReviewChannel == "" {
		errs = append(errs, errors.New("slack.review_channel is required when slack.token is set"))
	}
	if c.Notify.QueueSize < 0 {
		errs = append(errs, errors.New("notify.queue_size must not be negative"))
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// PayPeriods builds the pay-period grid from the configured anchor.
func (c Config) PayPeriods() (calendar.PayPeriodConfig, error) {
	anchor, err := calendar.ParseDate(c.PayPeriod.Anchor)
	if err != nil {
		return calendar.PayPeriodConfig{}, fmt.Errorf("pay_period.anchor %q: %w", c.PayPeriod.Anchor, err)
	}
	if !calendar.IsWeekStart(anchor) {
		return calendar.PayPeriodConfig{}, fmt.Errorf("pay_period.anchor %s must be a Monday", anchor)
	}
	return calendar.PayPeriodConfig{Anchor: anchor}, nil
}

// SlackEnabled reports whether the Slack sink should be wired.
func (c Config) SlackEnabled() bool {
	return c.Slack.Token != ""
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

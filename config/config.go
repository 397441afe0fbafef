// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wattle/billing-engine/billing"
	"github.com/wattle/billing-engine/store"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Amber    AmberConfig    `yaml:"amber"`
	Billing  BillingConfig  `yaml:"billing"`
	Refresh  RefreshConfig  `yaml:"refresh"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AmberConfig struct {
	// Token may also come from the AMBER_TOKEN environment variable,
	// which takes precedence so the secret can stay out of the file.
	Token    string   `yaml:"token"`
	BaseURL  string   `yaml:"base_url"`
	Timezone string   `yaml:"timezone"`
	Sites    []string `yaml:"sites"`
}

type BillingConfig struct {
	StartDay       int     `yaml:"start_day"`
	SurchargeCents float64 `yaml:"surcharge_cents"`
	Subscription   float64 `yaml:"subscription"`
}

type RefreshConfig struct {
	Interval Duration `yaml:"interval"`
}

// Duration wraps time.Duration so YAML can carry "1h" / "30m" strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/billing.db"
	}
	if c.Amber.Timezone == "" {
		c.Amber.Timezone = "Australia/Sydney"
	}
	if c.Billing.StartDay == 0 {
		c.Billing.StartDay = 1
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = Duration(1 * time.Hour)
	}
	if env := os.Getenv("AMBER_TOKEN"); env != "" {
		c.Amber.Token = env
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Amber.Token == "" {
		return errors.New("amber.token (or AMBER_TOKEN) is required")
	}
	if c.Billing.StartDay < billing.MinStartDay || c.Billing.StartDay > billing.MaxStartDay {
		return fmt.Errorf("billing.start_day must be between %d and %d, got %d",
			billing.MinStartDay, billing.MaxStartDay, c.Billing.StartDay)
	}
	if c.Billing.SurchargeCents < 0 {
		return errors.New("billing.surcharge_cents must not be negative")
	}
	if c.Billing.Subscription < 0 {
		return errors.New("billing.subscription must not be negative")
	}
	if _, err := time.LoadLocation(c.Amber.Timezone); err != nil {
		return fmt.Errorf("amber.timezone invalid: %w", err)
	}
	if c.Refresh.Interval < Duration(time.Minute) {
		return errors.New("refresh.interval must be at least 1m")
	}
	return nil
}

// Location resolves the configured reporting timezone. Validate has
// already confirmed it loads.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Amber.Timezone)
	return loc
}

// DefaultSettings converts the configured billing defaults into the form
// the store and refresher use.
func (c *Config) DefaultSettings() store.SiteSettings {
	return store.SiteSettings{
		StartDay:       c.Billing.StartDay,
		SurchargeCents: decimal.NewFromFloat(c.Billing.SurchargeCents),
		Subscription:   decimal.NewFromFloat(c.Billing.Subscription),
	}
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"timecard/internal/domain"
)

// Config models timecard.yml.
type Config struct {
	Accounting struct {
		DailyCapHours float64 `yaml:"daily_cap_hours"`
		MaxEntryHours float64 `yaml:"max_entry_hours"`
	} `yaml:"accounting"`
	Compliance struct {
		SkipWeekends  bool    `yaml:"skip_weekends"`
		HolidayRegion string  `yaml:"holiday_region"`
		OvertimeCap   float64 `yaml:"overtime_cap_hours"`
	} `yaml:"compliance"`
	TaskTypes []string        `yaml:"task_types"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one audit-record delivery target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Actions        []string `yaml:"actions"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with tc config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Accounting.DailyCapHours <= 0 {
		return fmt.Errorf("config.accounting.daily_cap_hours must be positive")
	}
	if c.Accounting.MaxEntryHours <= 0 || c.Accounting.MaxEntryHours > 24 {
		return fmt.Errorf("config.accounting.max_entry_hours must be in (0,24]")
	}
	if c.Accounting.DailyCapHours > 24 {
		return fmt.Errorf("config.accounting.daily_cap_hours must not exceed 24")
	}
	if c.Compliance.OvertimeCap <= 0 {
		return fmt.Errorf("config.compliance.overtime_cap_hours must be positive")
	}
	for _, t := range c.TaskTypes {
		if !domain.ValidTaskType(t) {
			return fmt.Errorf("config.task_types contains unknown type %s", t)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "timecard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `accounting:
  # Hard ceiling for the sum of hours one user may log on one calendar date.
  daily_cap_hours: 12
  # Ceiling for a single entry.
  max_entry_hours: 24

compliance:
  skip_weekends: true
  holiday_region: ""
  overtime_cap_hours: 12

task_types:
  - development
  - qa
  - ux
  - ui
  - meeting
  - rnd
  - adhoc
  - process
  - operations
`

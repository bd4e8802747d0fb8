// Package config loads pickmode settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/pickmode/internal/picker"
)

// Config is the top-level pickmode configuration.
type Config struct {
	Picker  PickerConfig  `yaml:"picker"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
}

// PickerConfig mirrors picker.Config.
type PickerConfig struct {
	HighlightColor    string        `yaml:"highlight_color"`
	HighlightOpacity  *float64      `yaml:"highlight_opacity"`
	BorderWidth       *float64      `yaml:"border_width"`
	ZIndex            int           `yaml:"z_index"`
	EnableMultiSelect *bool         `yaml:"enable_multi_select"`
	PersistSelection  *bool         `yaml:"persist_selection"`
	MaxSelectionCount int           `yaml:"max_selection_count"`
	PersistMaxAge     time.Duration `yaml:"persist_max_age"`
	HoverThrottle     time.Duration `yaml:"hover_throttle"`
	MutationDebounce  time.Duration `yaml:"mutation_debounce"`
}

// BrowserConfig controls the Chromium session.
type BrowserConfig struct {
	Remote     string        `yaml:"remote"`
	Headless   bool          `yaml:"headless"`
	Stealth    bool          `yaml:"stealth"`
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Timeout    time.Duration `yaml:"timeout"`
	ProfileDir string        `yaml:"profile_dir"`
}

// StorageConfig selects where selections persist.
type StorageConfig struct {
	// Backend is localstorage, sqlite or memory.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// AIConfig selects the describe provider.
type AIConfig struct {
	// Provider is claude or openai.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file. Unset fields keep defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := picker.DefaultConfig()
	p := &c.Picker
	if p.HighlightColor == "" {
		p.HighlightColor = d.HighlightColor
	}
	if p.HighlightOpacity == nil {
		p.HighlightOpacity = &d.HighlightOpacity
	}
	if p.BorderWidth == nil {
		p.BorderWidth = &d.BorderWidth
	}
	if p.ZIndex == 0 {
		p.ZIndex = d.ZIndex
	}
	if p.EnableMultiSelect == nil {
		p.EnableMultiSelect = &d.EnableMultiSelect
	}
	if p.PersistSelection == nil {
		p.PersistSelection = &d.PersistSelection
	}
	if p.MaxSelectionCount <= 0 {
		p.MaxSelectionCount = d.MaxSelectionCount
	}
	if p.PersistMaxAge <= 0 {
		p.PersistMaxAge = d.PersistMaxAge
	}
	if p.HoverThrottle <= 0 {
		p.HoverThrottle = d.HoverThrottle
	}
	if p.MutationDebounce <= 0 {
		p.MutationDebounce = d.MutationDebounce
	}

	if c.Browser.Width <= 0 {
		c.Browser.Width = 1280
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 720
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "localstorage"
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "pickmode.db"
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "claude"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "localstorage", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.AI.Provider {
	case "claude", "openai":
	default:
		return fmt.Errorf("config: unknown ai provider %q", c.AI.Provider)
	}
	return nil
}

// PickerConfig converts the picker section into an engine configuration.
func (c *Config) PickerConfig() picker.Config {
	p := c.Picker
	cfg := picker.DefaultConfig()
	cfg.HighlightColor = p.HighlightColor
	cfg.ZIndex = p.ZIndex
	cfg.MaxSelectionCount = p.MaxSelectionCount
	cfg.PersistMaxAge = p.PersistMaxAge
	cfg.HoverThrottle = p.HoverThrottle
	cfg.MutationDebounce = p.MutationDebounce
	if p.HighlightOpacity != nil {
		cfg.HighlightOpacity = *p.HighlightOpacity
	}
	if p.BorderWidth != nil {
		cfg.BorderWidth = *p.BorderWidth
	}
	if p.EnableMultiSelect != nil {
		cfg.EnableMultiSelect = *p.EnableMultiSelect
	}
	if p.PersistSelection != nil {
		cfg.PersistSelection = *p.PersistSelection
	}
	return cfg
}

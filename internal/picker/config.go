package picker

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the selection mode.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeMultiple Mode = "multiple"
)

// ParseMode accepts "single" or "multiple", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeMultiple:
		return ModeMultiple, nil
	}
	return "", fmt.Errorf("picker: unknown selection mode %q", s)
}

func (m Mode) valid() bool { return m == ModeSingle || m == ModeMultiple }

func (m Mode) flip() Mode {
	if m == ModeSingle {
		return ModeMultiple
	}
	return ModeSingle
}

// Config holds engine settings. Start from DefaultConfig.
type Config struct {
	HighlightColor    string
	HighlightOpacity  float64
	BorderWidth       float64
	ZIndex            int
	EnableMultiSelect bool
	PersistSelection  bool
	MaxSelectionCount int

	// PersistMaxAge bounds how old restored state may be.
	PersistMaxAge    time.Duration
	HoverThrottle    time.Duration
	MutationDebounce time.Duration
	OverlayID        string
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		HighlightColor:    "#3b82f6",
		HighlightOpacity:  0.3,
		BorderWidth:       2,
		ZIndex:            10000,
		EnableMultiSelect: true,
		PersistSelection:  true,
		MaxSelectionCount: 10,
		PersistMaxAge:     24 * time.Hour,
		HoverThrottle:     16 * time.Millisecond,
		MutationDebounce:  100 * time.Millisecond,
		OverlayID:         "element-selector-highlight",
	}
}

// normalize replaces unset or out-of-range values with defaults.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.HighlightColor == "" {
		c.HighlightColor = d.HighlightColor
	}
	if c.HighlightOpacity < 0 {
		c.HighlightOpacity = 0
	}
	if c.HighlightOpacity > 1 {
		c.HighlightOpacity = 1
	}
	if c.BorderWidth < 0 {
		c.BorderWidth = 0
	}
	if c.ZIndex == 0 {
		c.ZIndex = d.ZIndex
	}
	if c.MaxSelectionCount < 1 {
		c.MaxSelectionCount = d.MaxSelectionCount
	}
	if c.PersistMaxAge <= 0 {
		c.PersistMaxAge = d.PersistMaxAge
	}
	if c.HoverThrottle <= 0 {
		c.HoverThrottle = d.HoverThrottle
	}
	if c.MutationDebounce <= 0 {
		c.MutationDebounce = d.MutationDebounce
	}
	if c.OverlayID == "" {
		c.OverlayID = d.OverlayID
	}
	return c
}

func (c Config) initialMode() Mode {
	if c.EnableMultiSelect {
		return ModeMultiple
	}
	return ModeSingle
}

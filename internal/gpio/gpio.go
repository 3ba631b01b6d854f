// Package gpio reads a digital light-sensor module with hardware abstraction.
// Cheap LDR boards (LM393 comparator) drive one output pin that flips when the
// light crosses the threshold set on the board's trimmer. The real
// implementation uses the Linux GPIO character device; other platforms report
// the capability as absent.
package gpio

import "time"

// Defaults (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultLine      = 17
	DefaultBrightLux = 1000.0
	DefaultDarkLux   = 10.0
)

// Config describes the wiring and how line levels map to illuminance.
type Config struct {
	Chip        string        // gpiochip name or path
	Line        int           // line offset on the chip
	Debounce    time.Duration // kernel debounce period, 0 to disable
	BrightLevel int           // line level reported in bright light (0 for active-low boards)
	BrightLux   float64       // illuminance reported for the bright level
	DarkLux     float64       // illuminance reported for the dark level
}

// LuxForLevel converts a line level into the configured illuminance.
func (c Config) LuxForLevel(level int) float64 {
	if level == c.BrightLevel {
		return c.BrightLux
	}
	return c.DarkLux
}

func (c Config) withDefaults() Config {
	if c.Chip == "" {
		c.Chip = DefaultChip
	}
	if c.BrightLux == 0 && c.DarkLux == 0 {
		c.BrightLux = DefaultBrightLux
		c.DarkLux = DefaultDarkLux
	}
	if c.BrightLevel != 0 {
		c.BrightLevel = 1
	}
	return c
}

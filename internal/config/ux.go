package config

import (
	"fmt"
	"time"
)

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	// Typing effect: each word waits a random delay in [min, max).
	TypingDelayMin string `yaml:"typing_delay_min"`
	TypingDelayMax string `yaml:"typing_delay_max"`

	// ContemplateDelay is the pause between each of the three "contemplating" dots.
	ContemplateDelay string `yaml:"contemplate_delay"`

	// Voice enables speech at startup; /voice toggles it.
	Voice bool `yaml:"voice"`
	// VoiceCommand overrides the TTS binary (default: say on darwin, espeak elsewhere).
	VoiceCommand string `yaml:"voice_command,omitempty"`

	// Color forces styled output off when false.
	Color bool `yaml:"color"`
}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() UIConfig {
	return UIConfig{
		TypingDelayMin:   "50ms",
		TypingDelayMax:   "150ms",
		ContemplateDelay: "500ms",
		Color:            true,
	}
}

// TypingDelays returns the parsed typing delay bounds.
func (u UIConfig) TypingDelays() (min, max time.Duration) {
	min = parseDurationOr(u.TypingDelayMin, 50*time.Millisecond)
	max = parseDurationOr(u.TypingDelayMax, 150*time.Millisecond)
	if max < min {
		max = min
	}
	return min, max
}

// GetContemplateDelay returns the parsed pause between indicator dots.
func (u UIConfig) GetContemplateDelay() time.Duration {
	return parseDurationOr(u.ContemplateDelay, 500*time.Millisecond)
}

func (u UIConfig) validate() error {
	for name, v := range map[string]string{
		"ui.typing_delay_min":  u.TypingDelayMin,
		"ui.typing_delay_max":  u.TypingDelayMax,
		"ui.contemplate_delay": u.ContemplateDelay,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func parseDurationOr(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

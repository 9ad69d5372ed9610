package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`      // debug, info, warn, error
	DebugMode bool   `yaml:"debug_mode"` // false writes no log file at all
	// Categories mutes individual categories with an explicit false.
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// IsCategoryEnabled reports whether a category writes logs. Every category is
// on once debug mode is set unless Categories lists it as false.
func (c LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	enabled, listed := c.Categories[category]
	return !listed || enabled
}

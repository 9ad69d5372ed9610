package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rikyu/internal/conversation"
	"rikyu/internal/logging"
	"rikyu/internal/transcript"

	"gopkg.in/yaml.v3"
)

// Config holds all rikyu configuration.
type Config struct {
	// DataDir receives the transcript, exports and logs.
	DataDir string `yaml:"data_dir"`

	LLM          LLMConfig          `yaml:"llm"`
	Conversation ConversationConfig `yaml:"conversation"`
	Persona      PersonaConfig      `yaml:"persona"`
	Store        StoreConfig        `yaml:"store"`
	UI           UIConfig           `yaml:"ui"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ConversationConfig shapes every request sent to the model.
type ConversationConfig struct {
	WindowSize      int     `yaml:"window_size"`
	Instruction     string  `yaml:"instruction"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	TopK            float32 `yaml:"top_k"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// StoreConfig selects the transcript backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // json, sqlite
	// Path overrides the default file under DataDir.
	Path string `yaml:"path"`
}

// DefaultHome returns $RIKYU_HOME, falling back to ~/.rikyu.
func DefaultHome() string {
	if home := os.Getenv("RIKYU_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".rikyu"
	}
	return filepath.Join(userHome, ".rikyu")
}

// DefaultConfigPath returns the config file inside DefaultHome.
func DefaultConfigPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	params := conversation.DefaultGenerationParams()
	return &Config{
		DataDir: DefaultHome(),

		LLM: LLMConfig{
			Model:   DefaultModel,
			Timeout: "0s",
		},

		Conversation: ConversationConfig{
			WindowSize:      conversation.DefaultWindowSize,
			Instruction:     conversation.DefaultInstruction,
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			TopK:            params.TopK,
			MaxOutputTokens: params.MaxOutputTokens,
		},

		Persona: DefaultPersona(),

		Store: StoreConfig{
			Backend: transcript.BackendJSON,
		},

		UI: DefaultUIConfig(),

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("RIKYU_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if home := os.Getenv("RIKYU_HOME"); home != "" {
		c.DataDir = home
	}
	if backend := os.Getenv("RIKYU_STORE"); backend != "" {
		c.Store.Backend = backend
	}
}

// GetLLMTimeout returns the LLM timeout as a duration. Zero means the
// transport default.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// StorePath returns the transcript location for the configured backend.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == transcript.BackendSQLite {
		return filepath.Join(c.DataDir, "history.db")
	}
	return filepath.Join(c.DataDir, "history.json")
}

// LogDir returns where debug logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConversationSettings converts the conversation section for the adapter.
func (c *Config) ConversationSettings() conversation.Settings {
	return conversation.Settings{
		WindowSize:  c.Conversation.WindowSize,
		Instruction: c.Conversation.Instruction,
		Params: conversation.GenerationParams{
			Temperature:     c.Conversation.Temperature,
			TopP:            c.Conversation.TopP,
			TopK:            c.Conversation.TopK,
			MaxOutputTokens: c.Conversation.MaxOutputTokens,
		},
	}
}

// LoggingSettings converts the logging section for logging.Initialize.
func (c *Config) LoggingSettings() logging.Config {
	return logging.Config{
		Debug:   c.Logging.DebugMode,
		Level:   c.Logging.Level,
		Dir:     c.LogDir(),
		Enabled: c.Logging.IsCategoryEnabled,
	}
}

// ValidBackends lists the supported transcript backends.
var ValidBackends = []string{transcript.BackendJSON, transcript.BackendSQLite}

// Validate validates the configuration. A missing API key is not an error here:
// the chat still starts and every reply reports the missing credential.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	validBackend := false
	for _, b := range ValidBackends {
		if c.Store.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}

	if c.Conversation.WindowSize < 1 {
		return fmt.Errorf("conversation.window_size must be at least 1, got %d", c.Conversation.WindowSize)
	}
	if c.Conversation.Temperature < 0 || c.Conversation.Temperature > 2 {
		return fmt.Errorf("conversation.temperature out of range [0,2]: %v", c.Conversation.Temperature)
	}
	if c.Conversation.TopP < 0 || c.Conversation.TopP > 1 {
		return fmt.Errorf("conversation.top_p out of range [0,1]: %v", c.Conversation.TopP)
	}
	if c.Conversation.MaxOutputTokens < 1 {
		return fmt.Errorf("conversation.max_output_tokens must be positive, got %d", c.Conversation.MaxOutputTokens)
	}
	if c.Persona.Prompt == "" {
		return fmt.Errorf("persona.prompt must not be empty")
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	if err := c.UI.validate(); err != nil {
		return err
	}

	return nil
}

package config

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// LLMConfig configures the remote chat model.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // empty uses the SDK endpoint
	Timeout string `yaml:"timeout"`  // "0s" keeps the transport default
}

// HasCredential reports whether an API key is configured.
func (c LLMConfig) HasCredential() bool {
	return c.APIKey != ""
}

// Package conversation turns the stored transcript into a bounded request for
// a stateless chat model and classifies the outcome.
package conversation

const (
	// DefaultWindowSize is the number of trailing turns sent as context.
	DefaultWindowSize = 10
	// DefaultInstruction trails the persona in the final message of every request.
	DefaultInstruction = "Respond to the user's latest message in character."
)

// GenerationParams are the sampling settings sent with every request.
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// DefaultGenerationParams returns the tuned defaults for persona chat.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.7,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 1000,
	}
}

// Settings holds the request-shaping constants. They are fixed for the life of
// an Adapter, never per call.
type Settings struct {
	WindowSize  int
	Instruction string
	Params      GenerationParams
}

// DefaultSettings returns the default window, instruction and generation params.
func DefaultSettings() Settings {
	return Settings{
		WindowSize:  DefaultWindowSize,
		Instruction: DefaultInstruction,
		Params:      DefaultGenerationParams(),
	}
}

// withDefaults fills zero values.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.WindowSize <= 0 {
		s.WindowSize = def.WindowSize
	}
	if s.Instruction == "" {
		s.Instruction = def.Instruction
	}
	if s.Params == (GenerationParams{}) {
		s.Params = def.Params
	}
	return s
}

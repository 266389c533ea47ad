package translator

// ============================================================================
// TRANSLATOR — Free text in, filters or a fallback answer out
// ============================================================================
// Two paths leave this package:
//   - Extractor: deterministic pattern matching → engine.FilterSet
//   - GeminiFallback: the only component that calls an external model,
//     used for questions the extractor does not recognise as financial
// The fallback never sees raw records, only column names and sample values.
// ============================================================================

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// DefaultSystemPrompt is the fallback assistant persona.
const DefaultSystemPrompt = "Eres un asistente financiero experto. Ayudas con consultas sobre finanzas, inversiones y análisis de datos financieros."

// Fallback defaults.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 1000
)

// FallbackSettings are the runtime-adjustable model parameters.
type FallbackSettings struct {
	Model        string  `json:"model" toml:"model"`
	Temperature  float64 `json:"temperature" toml:"temperature"`
	MaxTokens    int     `json:"max_tokens" toml:"max_tokens"`
	SystemPrompt string  `json:"system_prompt" toml:"system_prompt"`
}

// DefaultFallbackSettings returns the stock settings.
func DefaultFallbackSettings() FallbackSettings {
	return FallbackSettings{
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	Model        *string  `json:"model,omitempty" validate:"omitempty,min=1"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    *int     `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=65536"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
}

// apply returns s with the non-nil fields of u.
func (u SettingsUpdate) apply(s FallbackSettings) FallbackSettings {
	if u.Model != nil && *u.Model != "" {
		s.Model = *u.Model
	}
	if u.Temperature != nil {
		s.Temperature = *u.Temperature
	}
	if u.MaxTokens != nil && *u.MaxTokens > 0 {
		s.MaxTokens = *u.MaxTokens
	}
	if u.SystemPrompt != nil {
		s.SystemPrompt = *u.SystemPrompt
	}
	return s
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// Truncated returns a copy with the system prompt shortened for display.
func (s FallbackSettings) Truncated(maxLen int) FallbackSettings {
	s.SystemPrompt = truncate(s.SystemPrompt, maxLen)
	return s
}

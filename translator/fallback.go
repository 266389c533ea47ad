package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// ============================================================================
// GEMINI FALLBACK — General answers for non-dataset questions
// ============================================================================

// ErrFallbackDisabled is returned when no API key was configured.
var ErrFallbackDisabled = errors.New("fallback model is not configured")

// FallbackError wraps a failed fallback call.
type FallbackError struct {
	Op  string
	Err error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback %s: %v", e.Op, e.Err)
}

func (e *FallbackError) Unwrap() error { return e.Err }

// generator is the slice of the genai client the fallback needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// FallbackRequest is one question for the fallback model.
type FallbackRequest struct {
	Message string
	History []Turn
	Summary *DataSummary
}

// FallbackReply carries the answer and the extended conversation.
type FallbackReply struct {
	Text    string
	History []Turn
	Model   string
}

// GeminiFallback answers free-form questions with a Gemini model.
type GeminiFallback struct {
	mu       sync.RWMutex
	settings FallbackSettings

	gen    generator
	retry  *RetryConfig
	logger arbor.ILogger
}

// NewGeminiFallback creates the fallback. An empty apiKey yields a disabled
// fallback whose Respond returns ErrFallbackDisabled.
func NewGeminiFallback(ctx context.Context, apiKey string, settings FallbackSettings, logger arbor.ILogger) (*GeminiFallback, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	f := &GeminiFallback{
		settings: withDefaults(settings),
		retry:    NewDefaultRetryConfig(),
		logger:   logger,
	}
	if apiKey == "" {
		logger.Warn().Msg("No Gemini API key configured, fallback answers disabled")
		return f, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &FallbackError{Op: "init", Err: err}
	}
	f.gen = client.Models
	logger.Info().Str("model", f.settings.Model).Msg("Gemini fallback ready")
	return f, nil
}

func withDefaults(s FallbackSettings) FallbackSettings {
	def := DefaultFallbackSettings()
	if s == (FallbackSettings{}) {
		return def
	}
	if s.Model == "" {
		s.Model = def.Model
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = def.SystemPrompt
	}
	return s
}

// Enabled reports whether a model client is available.
func (f *GeminiFallback) Enabled() bool {
	return f.gen != nil
}

// Settings returns the current settings.
func (f *GeminiFallback) Settings() FallbackSettings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings
}

// UpdateSettings applies a partial update and returns the result. Calls in
// flight keep the settings they started with.
func (f *GeminiFallback) UpdateSettings(u SettingsUpdate) FallbackSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = u.apply(f.settings)
	f.logger.Info().
		Str("model", f.settings.Model).
		Int("max_tokens", f.settings.MaxTokens).
		Msgf("Fallback settings updated (temperature %.2f)", f.settings.Temperature)
	return f.settings
}

// Respond sends the conversation to the model and returns its answer.
func (f *GeminiFallback) Respond(ctx context.Context, req FallbackRequest) (*FallbackReply, error) {
	if f.gen == nil {
		return nil, &FallbackError{Op: "respond", Err: ErrFallbackDisabled}
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &FallbackError{Op: "respond", Err: errors.New("empty message")}
	}

	s := f.Settings()
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role := string(genai.RoleUser)
		if t.Role == RoleAssistant {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{genai.NewPartFromText(t.Content)}})
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(message)}})

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(s.Temperature)),
		MaxOutputTokens:   int32(s.MaxTokens),
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(s.SystemPrompt, req.Summary), genai.RoleUser),
	}

	text, err := f.generate(ctx, s.Model, contents, config)
	if err != nil {
		return nil, &FallbackError{Op: "respond", Err: err}
	}

	history := make([]Turn, 0, len(req.History)+2)
	history = append(history, req.History...)
	history = append(history,
		Turn{Role: RoleUser, Content: message},
		Turn{Role: RoleAssistant, Content: text},
	)
	return &FallbackReply{Text: text, History: history, Model: s.Model}, nil
}

func (f *GeminiFallback) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		resp, apiErr = f.gen.GenerateContent(ctx, model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == f.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = f.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * f.retry.InitialBackoff
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("gemini call failed after %d retries: %w", f.retry.MaxRetries, apiErr)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from Gemini")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty text in Gemini response")
	}
	return text, nil
}

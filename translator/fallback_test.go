package translator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/schema"
)

// fakeGenerator replays errs in order, then answers with reply.
type fakeGenerator struct {
	errs  []error
	reply string

	calls    int
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	model    string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model, f.contents, f.config = model, contents, config
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.NewPartFromText(f.reply)}},
		}},
	}, nil
}

func newTestFallback(gen generator) *GeminiFallback {
	return &GeminiFallback{
		settings: DefaultFallbackSettings(),
		gen:      gen,
		retry:    &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2},
		logger:   arbor.NewLogger(),
	}
}

// ============================================================================
// RESPOND
// ============================================================================

func TestFallbackRespond(t *testing.T) {
	gen := &fakeGenerator{reply: " Un bono es un instrumento de deuda. "}
	f := newTestFallback(gen)

	history := []Turn{{Role: RoleUser, Content: "hola"}, {Role: RoleAssistant, Content: "¡Hola!"}}
	reply, err := f.Respond(context.Background(), FallbackRequest{Message: "¿Qué es un bono?", History: history})
	require.NoError(t, err)

	assert.Equal(t, "Un bono es un instrumento de deuda.", reply.Text)
	assert.Equal(t, DefaultModel, reply.Model)
	require.Len(t, reply.History, 4)
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "Un bono es un instrumento de deuda."}, reply.History[3])
	assert.Len(t, history, 2, "caller history untouched")

	require.Len(t, gen.contents, 3)
	assert.Equal(t, "model", gen.contents[1].Role)
	assert.Equal(t, "user", gen.contents[2].Role)
	assert.Equal(t, int32(DefaultMaxTokens), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.5, float64(*gen.config.Temperature), 1e-6)
	assert.Contains(t, gen.config.SystemInstruction.Parts[0].Text, "asistente financiero")
}

func TestFallbackRetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		errs:  []error{errors.New("Error 429, RESOURCE_EXHAUSTED"), errors.New("connection reset")},
		reply: "ok",
	}
	reply, err := newTestFallback(gen).Respond(context.Background(), FallbackRequest{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, 3, gen.calls)
}

func TestFallbackGivesUp(t *testing.T) {
	cause := errors.New("backend unavailable")
	gen := &fakeGenerator{errs: []error{cause, cause, cause, cause}}

	_, err := newTestFallback(gen).Respond(context.Background(), FallbackRequest{Message: "hola"})
	require.Error(t, err)

	var fe *FallbackError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "respond", fe.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, gen.calls)
}

func TestFallbackHonoursCancellation(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("flaky"), errors.New("flaky"), errors.New("flaky")}}
	f := newTestFallback(gen)
	f.retry.InitialBackoff = time.Hour
	f.retry.MaxBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Respond(ctx, FallbackRequest{Message: "hola"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls)
}

func TestFallbackDisabled(t *testing.T) {
	f, err := NewGeminiFallback(context.Background(), "", FallbackSettings{}, nil)
	require.NoError(t, err)
	assert.False(t, f.Enabled())
	assert.Equal(t, DefaultFallbackSettings(), f.Settings())

	_, err = f.Respond(context.Background(), FallbackRequest{Message: "hola"})
	assert.ErrorIs(t, err, ErrFallbackDisabled)
}

func TestFallbackRejectsEmptyMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	_, err := newTestFallback(gen).Respond(context.Background(), FallbackRequest{Message: "  "})
	assert.Error(t, err)
	assert.Zero(t, gen.calls)
}

// ============================================================================
// SETTINGS
// ============================================================================

func TestUpdateSettings(t *testing.T) {
	f := newTestFallback(&fakeGenerator{reply: "x"})

	temp := 0.9
	model := "gemini-2.5-pro"
	got := f.UpdateSettings(SettingsUpdate{Temperature: &temp, Model: &model})
	assert.Equal(t, "gemini-2.5-pro", got.Model)
	assert.InDelta(t, 0.9, got.Temperature, 1e-12)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens, "nil fields unchanged")
	assert.Equal(t, got, f.Settings())

	zero := 0
	assert.Equal(t, DefaultMaxTokens, f.UpdateSettings(SettingsUpdate{MaxTokens: &zero}).MaxTokens)
}

func TestSettingsTruncated(t *testing.T) {
	s := DefaultFallbackSettings().Truncated(10)
	assert.Equal(t, "Eres un as...", s.SystemPrompt)
	assert.Equal(t, DefaultSystemPrompt, DefaultFallbackSettings().SystemPrompt)
}

// ============================================================================
// RETRY POLICY
// ============================================================================

func TestRetryHelpers(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("googleapi: Error 429")))
	assert.True(t, IsRateLimitError(errors.New("quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("bad request")))
	assert.False(t, IsRateLimitError(nil))

	assert.Equal(t, 2500*time.Millisecond, ExtractRetryDelay(errors.New("Please retry in 2.5s.")))
	assert.Zero(t, ExtractRetryDelay(errors.New("nope")))

	c := NewDefaultRetryConfig()
	assert.Equal(t, time.Second, c.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, c.CalculateBackoff(2, 0))
	assert.Equal(t, 10*time.Second, c.CalculateBackoff(5, 0))
	assert.Equal(t, 6*time.Second, c.CalculateBackoff(1, 3*time.Second))
}

// ============================================================================
// PROMPT
// ============================================================================

func TestBuildSystemPrompt(t *testing.T) {
	view := engine.NewSliceView([]engine.Record{
		{PrepDate: "08-01-2025", Period: "08-01-2025", BusinessUnit: "PYME", Concept: "Originacion", Value: 1},
		{PrepDate: "08-01-2025", Period: "07-01-2025", BusinessUnit: "CORP", Concept: "Churn", Value: 2},
	})
	summary := BuildDataSummary(view)
	assert.Equal(t, 2, summary.RecordCount)
	assert.Equal(t, []string{"07-01-2025", "08-01-2025"}, summary.Dimensions[schema.ColPeriod])
	assert.Equal(t, []string{"CORP", "PYME"}, summary.Dimensions[schema.ColBusinessUnit])

	prompt := BuildSystemPrompt("", summary)
	assert.Contains(t, prompt, DefaultSystemPrompt)
	assert.Contains(t, prompt, "2 registros")
	assert.Contains(t, prompt, "- Negocio (Business unit): CORP, PYME")

	assert.Equal(t, "persona", BuildSystemPrompt("persona", nil))
	assert.Equal(t, 0, BuildDataSummary(nil).RecordCount)
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/internal/store"
	"github.com/spektr-org/finchat/translator"
)

// ============================================================================
// CHAT SERVICE — Routes a message to the analysis pipeline or the fallback
// ============================================================================
// Financial questions are answered locally: extract filters, analyze the
// current snapshot, compose the narrative. Anything else goes to the
// fallback model behind a token bucket.
// ============================================================================

// ErrEmptyMessage is returned for blank messages.
var ErrEmptyMessage = errors.New("message is empty")

// Reply kinds.
const (
	KindAnalysis = "analysis"
	KindFallback = "fallback"
)

// Fallback is the model-backed responder for non-financial questions.
type Fallback interface {
	Respond(ctx context.Context, req translator.FallbackRequest) (*translator.FallbackReply, error)
	Settings() translator.FallbackSettings
	UpdateSettings(u translator.SettingsUpdate) translator.FallbackSettings
}

// Request is one incoming chat message.
type Request struct {
	Message string
	History []translator.Turn
}

// Response is the answer to a Request.
type Response struct {
	Kind    string            `json:"kind"`
	Reply   string            `json:"reply"`
	Result  *engine.Result    `json:"result,omitempty"`
	History []translator.Turn `json:"conversation_history"`
	Model   string            `json:"model,omitempty"`
}

// Options tune the service.
type Options struct {
	RatePerMinute int
	Burst         int
	Timeout       time.Duration
	Engine        []engine.Option
}

// Service answers chat messages.
type Service struct {
	store     *store.Store
	extractor *translator.Extractor
	fallback  Fallback
	limiter   *rate.Limiter
	timeout   time.Duration
	engine    []engine.Option
	logger    arbor.ILogger
}

// NewService wires the service. fallback may be nil, in which case
// non-financial questions fail with translator.ErrFallbackDisabled.
func NewService(st *store.Store, ex *translator.Extractor, fb Fallback, opts Options, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if ex == nil {
		ex = translator.NewExtractor(nil)
	}
	if opts.RatePerMinute < 1 {
		opts.RatePerMinute = 30
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Service{
		store:     st,
		extractor: ex,
		fallback:  fb,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.Burst),
		timeout:   opts.Timeout,
		engine:    append([]engine.Option{engine.WithLogger(logger)}, opts.Engine...),
		logger:    logger,
	}
}

// Store returns the dataset store.
func (s *Service) Store() *store.Store { return s.store }

// Fallback returns the fallback responder, which may be nil.
func (s *Service) Fallback() Fallback { return s.fallback }

// Respond answers one message.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if s.extractor.IsFinancial(message) {
		res, err := s.Analyze(message)
		if err != nil {
			return nil, err
		}
		return &Response{
			Kind:    KindAnalysis,
			Reply:   res.Reply,
			Result:  res,
			History: extend(req.History, message, res.Reply),
		}, nil
	}
	return s.respondFallback(ctx, message, req.History)
}

// Analyze runs the extraction and analysis path regardless of intent.
func (s *Service) Analyze(query string) (*engine.Result, error) {
	fs := s.extractor.Extract(query)
	s.logger.Debug().
		Strs("fields", fs.Fields()).
		Bool("window", fs.Window != nil).
		Msg("Filters extracted")

	res, err := engine.Analyze(fs, s.store.View(), s.engine...)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return res, nil
}

func (s *Service) respondFallback(ctx context.Context, message string, history []translator.Turn) (*Response, error) {
	if s.fallback == nil {
		return nil, &translator.FallbackError{Op: "respond", Err: translator.ErrFallbackDisabled}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &translator.FallbackError{Op: "throttle", Err: err}
	}

	var summary *translator.DataSummary
	if snap := s.store.Snapshot(); snap != nil {
		summary = snap.Summary
	}

	reply, err := s.fallback.Respond(ctx, translator.FallbackRequest{Message: message, History: history, Summary: summary})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Fallback answer failed")
		return nil, err
	}
	return &Response{
		Kind:    KindFallback,
		Reply:   reply.Text,
		History: reply.History,
		Model:   reply.Model,
	}, nil
}

func extend(history []translator.Turn, message, reply string) []translator.Turn {
	out := make([]translator.Turn, 0, len(history)+2)
	out = append(out, history...)
	return append(out,
		translator.Turn{Role: translator.RoleUser, Content: message},
		translator.Turn{Role: translator.RoleAssistant, Content: reply},
	)
}

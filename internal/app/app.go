package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/common"
	"github.com/spektr-org/finchat/internal/store"
	"github.com/spektr-org/finchat/schema"
	"github.com/spektr-org/finchat/translator"
)

// App holds the components shared by the HTTP server, the CLI and the MCP
// server.
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Schema    *schema.Config
	Store     *store.Store
	Extractor *translator.Extractor
	Fallback  *translator.GeminiFallback
	Chat      *chat.Service
}

// New loads the schema, the recognizer table and the dataset, then wires the
// chat service. The reload schedule is started when configured.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.initSchema(); err != nil {
		return nil, err
	}
	if err := a.initExtractor(); err != nil {
		return nil, err
	}
	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	fb, err := translator.NewGeminiFallback(ctx, cfg.LLM.APIKey, cfg.FallbackSettings(), logger)
	if err != nil {
		a.Store.Stop()
		return nil, fmt.Errorf("failed to initialize fallback: %w", err)
	}
	a.Fallback = fb

	a.Chat = chat.NewService(a.Store, a.Extractor, fb, chat.Options{
		RatePerMinute: cfg.LLM.RatePerMin,
		Burst:         cfg.LLM.Burst,
		Timeout:       common.Duration(cfg.LLM.Timeout, 0),
		Engine:        a.engineOptions(),
	}, logger)

	logger.Info().
		Str("schema", a.Schema.Name).
		Bool("fallback", fb.Enabled()).
		Msg("Application initialized")
	return a, nil
}

func (a *App) initSchema() error {
	path := a.Config.Dataset.SchemaPath
	if path == "" {
		def := schema.Default()
		a.Schema = &def
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	sch, err := schema.Load(data)
	if err != nil {
		return err
	}
	a.Schema = sch
	a.Logger.Info().Str("path", path).Int("concepts", len(sch.Concepts)).Msg("Schema loaded")
	return nil
}

func (a *App) initExtractor() error {
	path := a.Config.Dataset.RecognizerPath
	if path == "" {
		a.Extractor = translator.NewExtractor(nil)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read recognizer file: %w", err)
	}
	table, err := translator.LoadRecognizers(data)
	if err != nil {
		return err
	}
	a.Extractor = translator.NewExtractor(table)
	a.Logger.Info().Str("path", path).Strs("fields", table.Fields()).Msg("Recognizer table loaded")
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	a.Store = store.New(a.Config.Dataset.Path, a.Logger)
	if _, err := a.Store.Load(ctx); err != nil {
		return err
	}
	return a.Store.Schedule(a.Config.Dataset.ReloadSchedule)
}

func (a *App) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithRegistry(a.Schema.Registry()),
		engine.WithTrendSections(a.Config.Analysis.TrendSections),
		engine.WithBreakdowns(a.Config.Analysis.Breakdowns),
		engine.WithVintages(a.Config.Analysis.Vintages),
	}
}

// Close stops background work.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Stop()
	}
}

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/common"
	"github.com/spektr-org/finchat/schema"
	"github.com/spektr-org/finchat/translator"
)

const dataset = `Elaboracion,Periodo,Pais,Negocio,Concepto,Clasificación,Cohort_Act,Escenario,Valor
08-01-2025,07-01-2025,CL,PYME,Rate All In,Active,2024,Moderado,"0,10"
08-01-2025,08-01-2025,CL,PYME,Rate All In,Active,2024,Moderado,"0,12"
08-01-2025,08-01-2025,CL,CORP,Originacion,Active,2024,Moderado,"$ 1.500"
`

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0644))

	cfg := common.NewDefaultConfig()
	cfg.Dataset.Path = path
	cfg.LLM.APIKey = ""
	return cfg
}

// ============================================================================
// WIRING
// ============================================================================

func TestNewWiresDefaults(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, schema.Default().Name, a.Schema.Name)
	assert.Equal(t, 3, a.Store.View().Len())
	assert.False(t, a.Fallback.Enabled())

	resp, err := a.Chat.Respond(context.Background(), chat.Request{Message: "rate all in cohort 2024"})
	require.NoError(t, err)
	assert.Equal(t, chat.KindAnalysis, resp.Kind)
	require.NotNil(t, resp.Result)
	require.NotEmpty(t, resp.Result.Changes)
}

func TestNewFallbackDisabled(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Chat.Respond(context.Background(), chat.Request{Message: "hola, que tal?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, translator.ErrFallbackDisabled))
}

func TestNewCustomSchemaAndRecognizers(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	cfg.Dataset.SchemaPath = filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(cfg.Dataset.SchemaPath, []byte("name: Custom\n"), 0644))

	cfg.Dataset.RecognizerPath = filepath.Join(dir, "recognizers.yaml")
	require.NoError(t, os.WriteFile(cfg.Dataset.RecognizerPath, []byte(`
keywords:
  - field: Negocio
    values:
      - value: CORP
        aliases: [empresas]
`), 0644))

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "Custom", a.Schema.Name)
	fs := a.Extractor.Extract("originacion empresas")
	v, ok := fs.Get(schema.ColBusinessUnit)
	assert.True(t, ok)
	assert.Equal(t, "CORP", v)
}

func TestNewErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Dataset.RecognizerPath = filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfg.Dataset.RecognizerPath, []byte("windows: ['(\\d+)']\n"), 0644))
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Dataset.ReloadSchedule = "not a schedule"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

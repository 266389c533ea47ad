package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/spektr-org/finchat/translator"
)

// Config is the application configuration loaded from finchat.toml.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Dataset  DatasetConfig  `toml:"dataset"`
	LLM      LLMConfig      `toml:"llm"`
	Analysis AnalysisConfig `toml:"analysis"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig controls the HTTP front-end.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ReadTimeout    string   `toml:"read_timeout"`  // Go duration, e.g. "15s"
	WriteTimeout   string   `toml:"write_timeout"` // Go duration; covers fallback calls
}

// DatasetConfig locates the CSV and its optional overrides.
type DatasetConfig struct {
	Path           string `toml:"path"`
	SchemaPath     string `toml:"schema_path"`     // optional schema YAML (concept kinds)
	RecognizerPath string `toml:"recognizer_path"` // optional recognizer table YAML
	ReloadSchedule string `toml:"reload_schedule"` // 5-field cron expression, empty disables
}

// LLMConfig configures the Gemini fallback.
type LLMConfig struct {
	APIKey       string  `toml:"api_key"` // prefer GEMINI_API_KEY
	Model        string  `toml:"model"`
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt"`
	RatePerMin   int     `toml:"rate_per_minute"`
	Burst        int     `toml:"burst"`
	Timeout      string  `toml:"timeout"`
}

// AnalysisConfig toggles optional analysis sections.
type AnalysisConfig struct {
	TrendSections bool `toml:"trend_sections"`
	Breakdowns    bool `toml:"breakdowns"`
	Vintages      bool `toml:"vintages"`
}

// LoggingConfig controls arbor output.
type LoggingConfig struct {
	Level  string   `toml:"level"`  // debug, info, warn, error
	Output []string `toml:"output"` // "stdout", "file"
	File   string   `toml:"file"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	s := translator.DefaultFallbackSettings()
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8000,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    "15s",
			WriteTimeout:   "60s",
		},
		Dataset: DatasetConfig{
			Path: "dataset/Prueba-Chatbot - BBDD.csv",
		},
		LLM: LLMConfig{
			Model:        s.Model,
			Temperature:  s.Temperature,
			MaxTokens:    s.MaxTokens,
			SystemPrompt: s.SystemPrompt,
			RatePerMin:   30,
			Burst:        5,
			Timeout:      "45s",
		},
		Analysis: AnalysisConfig{
			TrendSections: true,
			Breakdowns:    true,
			Vintages:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
			File:   "logs/finchat.log",
		},
	}
}

// LoadFromFiles loads defaults, then each TOML file in order (later files
// override earlier ones), then a .env file if present, then environment
// overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// a missing .env is normal
	_ = godotenv.Load()

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if host := os.Getenv("FINCHAT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("FINCHAT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if origins := os.Getenv("FINCHAT_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	if path := os.Getenv("FINCHAT_DATASET_PATH"); path != "" {
		config.Dataset.Path = path
	}
	if schedule, ok := os.LookupEnv("FINCHAT_RELOAD_SCHEDULE"); ok {
		config.Dataset.ReloadSchedule = schedule
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("FINCHAT_LLM_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if model := os.Getenv("FINCHAT_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if temp := os.Getenv("FINCHAT_LLM_TEMPERATURE"); temp != "" {
		if t, err := strconv.ParseFloat(temp, 64); err == nil {
			config.LLM.Temperature = t
		}
	}
	if tokens := os.Getenv("FINCHAT_LLM_MAX_TOKENS"); tokens != "" {
		if n, err := strconv.Atoi(tokens); err == nil {
			config.LLM.MaxTokens = n
		}
	}

	if level := os.Getenv("FINCHAT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINCHAT_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for name, d := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"llm.timeout":          c.LLM.Timeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Dataset.ReloadSchedule != "" {
		if _, err := cronParser.Parse(c.Dataset.ReloadSchedule); err != nil {
			errs = append(errs, fmt.Errorf("dataset.reload_schedule: %w", err))
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f outside [0, 2]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive"))
	}
	if c.LLM.RatePerMin < 1 || c.LLM.Burst < 1 {
		errs = append(errs, fmt.Errorf("llm.rate_per_minute and llm.burst must be positive"))
	}
	return errors.Join(errs...)
}

// FallbackSettings returns the fallback model settings.
func (c *Config) FallbackSettings() translator.FallbackSettings {
	return translator.FallbackSettings{
		Model:        c.LLM.Model,
		Temperature:  c.LLM.Temperature,
		MaxTokens:    c.LLM.MaxTokens,
		SystemPrompt: c.LLM.SystemPrompt,
	}
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Duration parses d, falling back to def when d is empty or invalid.
func Duration(d string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(d); err == nil && v > 0 {
		return v
	}
	return def
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dhalloran/pagesense/internal/pipeline"
)

type Config struct {
	Port string

	// Auth. Empty disables API authentication.
	APIKey string

	// Generation capability backend: "claude", "gemini" or "fake".
	Backend string

	AnthropicAPIKey string
	AnthropicModel  string

	GeminiAPIKey string
	GeminiModel  string

	// Upload limits
	MaxUploadBytes int64

	// Registry lifetimes
	RunTTL time.Duration
	DocTTL time.Duration

	// Pipeline pacing and acceptance
	LabelDelay           time.Duration
	SummaryDelay         time.Duration
	SummaryJitter        time.Duration
	MinSectionChars      int
	MinDocumentChars     int
	MaxLabelWords        int
	SummaryProgressEvery int
	LabelProgressEvery   int

	// Announcement channel timing
	AnnounceSetDelay   time.Duration
	AnnounceClearDelay time.Duration

	// Watch mode
	WatchInput         string
	WatchOutput        string
	WatchArchive       string
	WatchMaxConcurrent int
}

// Load reads configuration from the environment, with an optional YAML
// file overlay pointed at by PAGESENSE_CONFIG. Environment wins over
// file values.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("PAGESENSE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:    "8085",
		Backend: "claude",

		AnthropicModel: "claude-sonnet-4-5-20250929",
		GeminiModel:    "gemini-2.5-flash",

		MaxUploadBytes: 10485760, // 10MB

		RunTTL: time.Hour,
		DocTTL: 4 * time.Hour,

		LabelDelay:           600 * time.Millisecond,
		SummaryDelay:         800 * time.Millisecond,
		SummaryJitter:        200 * time.Millisecond,
		MinSectionChars:      50,
		MinDocumentChars:     200,
		MaxLabelWords:        8,
		SummaryProgressEvery: 5,
		LabelProgressEvery:   10,

		AnnounceSetDelay:   100 * time.Millisecond,
		AnnounceClearDelay: 10 * time.Second,

		WatchInput:         "input",
		WatchOutput:        "output",
		WatchArchive:       "archived",
		WatchMaxConcurrent: 2,
	}
}

// fileConfig mirrors the YAML layout.
type fileConfig struct {
	Server struct {
		Port   string `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`
	Capability struct {
		Backend        string `yaml:"backend"`
		AnthropicModel string `yaml:"anthropic_model"`
		GeminiModel    string `yaml:"gemini_model"`
	} `yaml:"capability"`
	Pipeline struct {
		LabelDelay       string `yaml:"label_delay"`
		SummaryDelay     string `yaml:"summary_delay"`
		SummaryJitter    string `yaml:"summary_jitter"`
		MinSectionChars  int    `yaml:"min_section_chars"`
		MinDocumentChars int    `yaml:"min_document_chars"`
		MaxLabelWords    int    `yaml:"max_label_words"`
	} `yaml:"pipeline"`
	Watch struct {
		Input         string `yaml:"input"`
		Output        string `yaml:"output"`
		Archive       string `yaml:"archive"`
		MaxConcurrent int    `yaml:"max_concurrent"`
	} `yaml:"watch"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setStr(&c.Port, fc.Server.Port)
	setStr(&c.APIKey, fc.Server.APIKey)
	setStr(&c.Backend, fc.Capability.Backend)
	setStr(&c.AnthropicModel, fc.Capability.AnthropicModel)
	setStr(&c.GeminiModel, fc.Capability.GeminiModel)
	setDur(&c.LabelDelay, fc.Pipeline.LabelDelay)
	setDur(&c.SummaryDelay, fc.Pipeline.SummaryDelay)
	setDur(&c.SummaryJitter, fc.Pipeline.SummaryJitter)
	setInt(&c.MinSectionChars, fc.Pipeline.MinSectionChars)
	setInt(&c.MinDocumentChars, fc.Pipeline.MinDocumentChars)
	setInt(&c.MaxLabelWords, fc.Pipeline.MaxLabelWords)
	setStr(&c.WatchInput, fc.Watch.Input)
	setStr(&c.WatchOutput, fc.Watch.Output)
	setStr(&c.WatchArchive, fc.Watch.Archive)
	setInt(&c.WatchMaxConcurrent, fc.Watch.MaxConcurrent)
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("PAGESENSE_API_KEY", c.APIKey)
	c.Backend = envOr("PAGESENSE_BACKEND", c.Backend)

	c.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.GeminiAPIKey = envOr("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)

	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.RunTTL = envDuration("RUN_TTL", c.RunTTL)
	c.DocTTL = envDuration("DOC_TTL", c.DocTTL)

	c.LabelDelay = envDuration("LABEL_DELAY", c.LabelDelay)
	c.SummaryDelay = envDuration("SUMMARY_DELAY", c.SummaryDelay)
	c.SummaryJitter = envDuration("SUMMARY_JITTER", c.SummaryJitter)
	c.MinSectionChars = envInt("MIN_SECTION_CHARS", c.MinSectionChars)
	c.MinDocumentChars = envInt("MIN_DOCUMENT_CHARS", c.MinDocumentChars)
	c.MaxLabelWords = envInt("MAX_LABEL_WORDS", c.MaxLabelWords)

	c.AnnounceSetDelay = envDuration("ANNOUNCE_SET_DELAY", c.AnnounceSetDelay)
	c.AnnounceClearDelay = envDuration("ANNOUNCE_CLEAR_DELAY", c.AnnounceClearDelay)

	c.WatchInput = envOr("WATCH_INPUT", c.WatchInput)
	c.WatchOutput = envOr("WATCH_OUTPUT", c.WatchOutput)
	c.WatchArchive = envOr("WATCH_ARCHIVE", c.WatchArchive)
	c.WatchMaxConcurrent = envInt("WATCH_MAX_CONCURRENT", c.WatchMaxConcurrent)
}

func (c *Config) clamp() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10485760
	}
	if c.RunTTL <= 0 {
		c.RunTTL = time.Hour
	}
	if c.DocTTL <= 0 {
		c.DocTTL = 4 * time.Hour
	}
	if c.WatchMaxConcurrent <= 0 {
		c.WatchMaxConcurrent = 2
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case "claude":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the claude backend")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
		}
	case "fake":
		// No credentials; local development backend.
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	return nil
}

// PipelineOptions maps config onto pipeline options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		LabelDelay:           c.LabelDelay,
		SummaryDelay:         c.SummaryDelay,
		SummaryJitter:        c.SummaryJitter,
		MinSectionChars:      c.MinSectionChars,
		MinDocumentChars:     c.MinDocumentChars,
		MaxLabelWords:        c.MaxLabelWords,
		SummaryProgressEvery: c.SummaryProgressEvery,
		LabelProgressEvery:   c.LabelProgressEvery,
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Package config provides the configuration schema, loader, and environment
// overrides for the lingostream server.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader] and then adjusted by [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
	Languages LanguagesConfig `yaml:"languages"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g. ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// PipelineConfig holds the streaming-pipeline tunables. All fields have
// documented defaults applied by [applyDefaults].
type PipelineConfig struct {
	// WindowSec is the trailing audio window read on each ASR tick, in seconds.
	WindowSec float64 `yaml:"window_sec"`

	// ASRIntervalMS is the ASR tick interval in milliseconds.
	ASRIntervalMS int `yaml:"asr_interval_ms"`

	// CommitStabilityK is the number of consecutive identical hypotheses a
	// word prefix needs before it commits.
	CommitStabilityK int `yaml:"commit_stability_k"`

	// CommitTimeoutSec forces a commit after this many seconds without one.
	CommitTimeoutSec float64 `yaml:"commit_timeout_sec"`

	// CommitMinWords is the minimum number of new words for a stability or
	// timeout commit; a forced commit does not apply it.
	CommitMinWords int `yaml:"commit_min_words"`

	// TTSQueueMax is the pending-TTS-job threshold for backpressure batch
	// mode; skip mode engages at twice this value.
	TTSQueueMax int `yaml:"tts_queue_max"`

	// CaptureSampleRate is the inbound PCM sample rate in Hz.
	CaptureSampleRate int `yaml:"capture_sample_rate"`

	// TTSSampleRate is the synthesised PCM sample rate in Hz.
	TTSSampleRate int `yaml:"tts_sample_rate"`

	// Workers bounds concurrent blocking inference calls across all
	// sessions (the shared worker pool).
	Workers int `yaml:"workers"`
}

// ProvidersConfig declares which backend to use for each pipeline stage.
type ProvidersConfig struct {
	ASR ProviderEntry `yaml:"asr"`
	MT  ProviderEntry `yaml:"mt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. Fields that a given backend does not use are ignored.
type ProviderEntry struct {
	// Name selects the backend implementation (e.g. "whisper", "anyllm",
	// "openai", "coqui", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for hosted backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint (server URL for
	// local backends such as coqui).
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the backend (file path for whisper,
	// model id for LLM-backed MT, model id for elevenlabs).
	Model string `yaml:"model"`

	// Backend names the inner provider for meta-backends (anyllm: "openai",
	// "ollama", "anthropic", …).
	Backend string `yaml:"backend"`

	// Voice is the default TTS voice id.
	Voice string `yaml:"voice"`

	// Voices maps language codes to voice ids for TTS backends.
	Voices map[string]string `yaml:"voices"`
}

// LanguagesConfig declares the supported translation pairs.
type LanguagesConfig struct {
	// Pairs lists supported "src-tgt" pairs (e.g. "es-en"). Translation
	// requests outside this list pass the source text through unchanged.
	// An empty list means all pairs are attempted.
	Pairs []string `yaml:"pairs"`
}

// validProviderNames lists known backend names per provider kind, used by
// [Validate] to warn about unrecognised names.
var validProviderNames = map[string][]string{
	"asr": {"whisper"},
	"mt":  {"anyllm", "openai"},
	"tts": {"coqui", "elevenlabs"},
}

// applyDefaults fills zero-valued fields with the documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	p := &cfg.Pipeline
	if p.WindowSec == 0 {
		p.WindowSec = 8.0
	}
	if p.ASRIntervalMS == 0 {
		p.ASRIntervalMS = 500
	}
	if p.CommitStabilityK == 0 {
		p.CommitStabilityK = 3
	}
	if p.CommitTimeoutSec == 0 {
		p.CommitTimeoutSec = 2.0
	}
	if p.CommitMinWords == 0 {
		p.CommitMinWords = 1
	}
	if p.TTSQueueMax == 0 {
		p.TTSQueueMax = 5
	}
	if p.CaptureSampleRate == 0 {
		p.CaptureSampleRate = 16000
	}
	if p.TTSSampleRate == 0 {
		p.TTSSampleRate = 24000
	}
	if p.Workers == 0 {
		p.Workers = 2
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; unknown provider
// names only produce warnings.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	p := cfg.Pipeline
	if p.WindowSec <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.window_sec must be positive, got %v", p.WindowSec))
	}
	if p.ASRIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.asr_interval_ms must be positive, got %d", p.ASRIntervalMS))
	}
	if p.CommitStabilityK < 1 {
		errs = append(errs, fmt.Errorf("pipeline.commit_stability_k must be at least 1, got %d", p.CommitStabilityK))
	}
	if p.CommitTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.commit_timeout_sec must be positive, got %v", p.CommitTimeoutSec))
	}
	if p.CommitMinWords < 1 {
		errs = append(errs, fmt.Errorf("pipeline.commit_min_words must be at least 1, got %d", p.CommitMinWords))
	}
	if p.TTSQueueMax < 1 {
		errs = append(errs, fmt.Errorf("pipeline.tts_queue_max must be at least 1, got %d", p.TTSQueueMax))
	}
	if p.CaptureSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.capture_sample_rate must be positive, got %d", p.CaptureSampleRate))
	}
	if p.TTSSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.tts_sample_rate must be positive, got %d", p.TTSSampleRate))
	}
	if p.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be at least 1, got %d", p.Workers))
	}

	for _, pair := range cfg.Languages.Pairs {
		src, tgt, ok := strings.Cut(pair, "-")
		if !ok || src == "" || tgt == "" {
			errs = append(errs, fmt.Errorf("languages.pairs entry %q is not of the form \"src-tgt\"", pair))
		}
	}

	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("mt", cfg.Providers.MT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if len(errs) > 0 {
		var b strings.Builder
		b.WriteString("config validation failed:")
		for _, e := range errs {
			b.WriteString("\n  - ")
			b.WriteString(e.Error())
		}
		return fmt.Errorf("%s", b.String())
	}
	return nil
}

// validateProviderName warns when a provider name is not a known backend.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	for _, valid := range validProviderNames[kind] {
		if name == valid {
			return
		}
	}
	slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", validProviderNames[kind])
}

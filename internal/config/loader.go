package config

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies defaults and
// environment overrides, and returns a validated [Config]. A `.env` file in
// the working directory, when present, is loaded first (without clobbering
// variables already set in the environment).
func Load(path string) (*Config, error) {
	// Best-effort: a missing .env file is the normal case in production.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment overrides, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from the documented environment variables.
// Unset variables leave the config untouched; unparsable values are
// ignored.
func ApplyEnv(cfg *Config) {
	envString("LISTEN_ADDR", &cfg.Server.ListenAddr)
	envString("LOG_LEVEL", &cfg.Server.LogLevel)

	envFloat("WINDOW_SEC", &cfg.Pipeline.WindowSec)
	envInt("ASR_INTERVAL_MS", &cfg.Pipeline.ASRIntervalMS)
	envInt("COMMIT_STABILITY_K", &cfg.Pipeline.CommitStabilityK)
	envFloat("COMMIT_TIMEOUT_SEC", &cfg.Pipeline.CommitTimeoutSec)
	envInt("COMMIT_MIN_WORDS", &cfg.Pipeline.CommitMinWords)
	envInt("TTS_QUEUE_MAX", &cfg.Pipeline.TTSQueueMax)
	envInt("CAPTURE_SAMPLE_RATE", &cfg.Pipeline.CaptureSampleRate)
	envInt("TTS_SAMPLE_RATE", &cfg.Pipeline.TTSSampleRate)
	envInt("PIPELINE_WORKERS", &cfg.Pipeline.Workers)

	envString("ASR_MODEL_PATH", &cfg.Providers.ASR.Model)
	envString("MT_API_KEY", &cfg.Providers.MT.APIKey)
	envString("TTS_API_KEY", &cfg.Providers.TTS.APIKey)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

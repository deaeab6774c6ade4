// Command lingostream is the real-time speech-to-speech translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lingostream/lingostream/internal/app"
	"github.com/lingostream/lingostream/internal/config"
	"github.com/lingostream/lingostream/internal/observe"
	"github.com/lingostream/lingostream/pkg/provider/asr/whisper"
	mtanyllm "github.com/lingostream/lingostream/pkg/provider/mt/anyllm"
	mtopenai "github.com/lingostream/lingostream/pkg/provider/mt/openai"
	"github.com/lingostream/lingostream/pkg/provider/tts/coqui"
	"github.com/lingostream/lingostream/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lingostream: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lingostream: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lingostream starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lingostream",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application wiring ────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the ASR, MT, and TTS backends named in cfg.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}

	// ASR
	switch name := cfg.Providers.ASR.Name; name {
	case "", "whisper":
		p, err := whisper.New(cfg.Providers.ASR.Model)
		if err != nil {
			return nil, fmt.Errorf("create asr provider: %w", err)
		}
		ps.ASR = p
		slog.Info("provider created", "kind", "asr", "name", "whisper", "model", cfg.Providers.ASR.Model)
	default:
		return nil, fmt.Errorf("unknown asr provider %q", name)
	}

	// MT
	switch name := cfg.Providers.MT.Name; name {
	case "", "anyllm":
		var libOpts []anyllmlib.Option
		if cfg.Providers.MT.APIKey != "" {
			libOpts = append(libOpts, anyllmlib.WithAPIKey(cfg.Providers.MT.APIKey))
		}
		if cfg.Providers.MT.BaseURL != "" {
			libOpts = append(libOpts, anyllmlib.WithBaseURL(cfg.Providers.MT.BaseURL))
		}
		backend := cfg.Providers.MT.Backend
		if backend == "" {
			backend = "ollama"
		}
		p, err := mtanyllm.New(backend, cfg.Providers.MT.Model, libOpts,
			mtanyllm.WithPairs(cfg.Languages.Pairs))
		if err != nil {
			return nil, fmt.Errorf("create mt provider: %w", err)
		}
		ps.MT = p
		slog.Info("provider created", "kind", "mt", "name", "anyllm", "backend", backend, "model", cfg.Providers.MT.Model)
	case "openai":
		opts := []mtopenai.Option{mtopenai.WithPairs(cfg.Languages.Pairs)}
		if cfg.Providers.MT.Model != "" {
			opts = append(opts, mtopenai.WithModel(cfg.Providers.MT.Model))
		}
		if cfg.Providers.MT.BaseURL != "" {
			opts = append(opts, mtopenai.WithBaseURL(cfg.Providers.MT.BaseURL))
		}
		p, err := mtopenai.New(cfg.Providers.MT.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("create mt provider: %w", err)
		}
		ps.MT = p
		slog.Info("provider created", "kind", "mt", "name", "openai", "model", cfg.Providers.MT.Model)
	default:
		return nil, fmt.Errorf("unknown mt provider %q", name)
	}

	// TTS
	switch name := cfg.Providers.TTS.Name; name {
	case "", "coqui":
		serverURL := cfg.Providers.TTS.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:5002"
		}
		opts := []coqui.Option{coqui.WithOutputSampleRate(cfg.Pipeline.TTSSampleRate)}
		if cfg.Providers.TTS.Voice != "" {
			opts = append(opts, coqui.WithSpeaker(cfg.Providers.TTS.Voice))
		}
		p, err := coqui.New(serverURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create tts provider: %w", err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", "coqui", "server", serverURL)
	case "elevenlabs":
		opts := []elevenlabs.Option{elevenlabs.WithOutputSampleRate(cfg.Pipeline.TTSSampleRate)}
		if cfg.Providers.TTS.Model != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.Providers.TTS.Model))
		}
		for lang, voice := range cfg.Providers.TTS.Voices {
			opts = append(opts, elevenlabs.WithVoice(lang, voice))
		}
		p, err := elevenlabs.New(cfg.Providers.TTS.APIKey, cfg.Providers.TTS.Voice, opts...)
		if err != nil {
			return nil, fmt.Errorf("create tts provider: %w", err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", "elevenlabs")
	default:
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}

	return ps, nil
}

// newLogger builds the default slog logger from the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

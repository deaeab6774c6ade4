// Package app wires all lingostream subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects the providers to the
// HTTP surface (WebSocket streaming endpoint, health probes, metrics), Run
// serves until the context is cancelled, and Shutdown drains the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lingostream/lingostream/internal/commit"
	"github.com/lingostream/lingostream/internal/config"
	"github.com/lingostream/lingostream/internal/health"
	"github.com/lingostream/lingostream/internal/pipeline"
	"github.com/lingostream/lingostream/internal/ws"
	"github.com/lingostream/lingostream/pkg/provider/asr"
	"github.com/lingostream/lingostream/pkg/provider/mt"
	"github.com/lingostream/lingostream/pkg/provider/tts"
)

// readHeaderTimeout bounds slow-header attacks on the plain HTTP endpoints.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per pipeline stage. All three must be
// non-nil; sessions share them (model handles are read-only after startup).
type Providers struct {
	ASR asr.Provider
	MT  mt.Provider
	TTS tts.Provider
}

// App owns the HTTP server and the shared inference pool.
type App struct {
	cfg    *config.Config
	server *http.Server
	pool   *pipeline.InferencePool
}

// New creates an App by wiring the providers into the HTTP surface:
//
//	WS  /ws/stream — streaming translation sessions
//	GET /healthz   — liveness
//	GET /readyz    — readiness (providers wired)
//	GET /metrics   — Prometheus scrape endpoint
func New(_ context.Context, cfg *config.Config, providers *Providers) (*App, error) {
	if providers == nil || providers.ASR == nil || providers.MT == nil || providers.TTS == nil {
		return nil, errors.New("app: all of ASR, MT, and TTS providers must be configured")
	}

	pool := pipeline.NewInferencePool(cfg.Pipeline.Workers)

	factory := func(src, tgt string) *pipeline.Orchestrator {
		return pipeline.New(pipeline.Config{
			SourceLang:  src,
			TargetLang:  tgt,
			WindowSec:   cfg.Pipeline.WindowSec,
			ASRInterval: time.Duration(cfg.Pipeline.ASRIntervalMS) * time.Millisecond,
			Commit: commit.Config{
				StabilityK: cfg.Pipeline.CommitStabilityK,
				Timeout:    time.Duration(cfg.Pipeline.CommitTimeoutSec * float64(time.Second)),
				MinWords:   cfg.Pipeline.CommitMinWords,
			},
			TTSQueueMax:       cfg.Pipeline.TTSQueueMax,
			CaptureSampleRate: cfg.Pipeline.CaptureSampleRate,
		}, pipeline.Providers{
			ASR: providers.ASR,
			MT:  providers.MT,
			TTS: providers.TTS,
		}, pool)
	}

	probes := health.NewHandler()
	probes.Check("asr", func(ctx context.Context) error {
		// A sub-minimum window returns immediately without touching the
		// model; this only proves the provider is wired and responsive.
		_, err := providers.ASR.Transcribe(ctx, nil, "", "")
		return err
	})

	mux := http.NewServeMux()
	mux.Handle("/ws/stream", ws.NewHandler(factory, providers.TTS.SampleRate()))
	mux.Handle("GET /metrics", promhttp.Handler())
	probes.Routes(mux)

	return &App{
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		pool: pool,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails. A cancelled
// context drains the server gracefully and returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown drains the HTTP server. Safe to call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lingostream/lingostream/internal/backpressure"
	"github.com/lingostream/lingostream/internal/commit"
	"github.com/lingostream/lingostream/internal/filter"
	"github.com/lingostream/lingostream/internal/observe"
	"github.com/lingostream/lingostream/pkg/audio"
	"github.com/lingostream/lingostream/pkg/provider/asr"
	"github.com/lingostream/lingostream/pkg/provider/mt"
	"github.com/lingostream/lingostream/pkg/provider/tts"
)

const (
	// minWindowSec is the minimum buffered audio before an ASR tick runs.
	minWindowSec = 0.5

	// eventChanBuf is the buffer depth of the output event channel. Sized to
	// absorb a full TTS segment of chunks without blocking the loop.
	eventChanBuf = 256

	// minRingSec is the floor for the ring buffer size regardless of window.
	minRingSec = 10.0
)

// Config holds the per-session pipeline parameters.
type Config struct {
	// SourceLang and TargetLang are ISO-639-1 codes.
	SourceLang string
	TargetLang string

	// WindowSec is the trailing audio window read on each ASR tick.
	WindowSec float64

	// ASRInterval is the tick interval of the ASR loop.
	ASRInterval time.Duration

	// Commit holds the commit-tracker thresholds.
	Commit commit.Config

	// TTSQueueMax is the backpressure batch threshold.
	TTSQueueMax int

	// CaptureSampleRate is the inbound PCM sample rate in Hz.
	CaptureSampleRate int
}

// Providers bundles the inference backends a session runs against. Model
// handles are process-wide and shared; the pipeline only reads them.
type Providers struct {
	ASR asr.Provider
	MT  mt.Provider
	TTS tts.Provider
}

// Orchestrator drives the full ASR → commit → MT → TTS pipeline for one
// session. It owns the commit tracker and backpressure controller (mutated
// only on its loop goroutine) and the audio ring (shared with the transport
// goroutine through the ring's own mutex).
//
// Lifecycle: New → Start → (FeedAudio / Events concurrently) → Stop.
type Orchestrator struct {
	cfg       Config
	providers Providers
	pool      *InferencePool
	metrics   *observe.Metrics

	ring    *audio.Ring
	tracker *commit.Tracker
	bp      *backpressure.Controller

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	// Loop-goroutine state; no locks needed.
	silentTicks  int
	commitsTotal int
	lastASRMs    float64
}

// New creates an orchestrator for one session. The ring is sized to
// max(2·WindowSec, 10 s) so timeout commits always have their audio
// available even when ASR ticks stall.
func New(cfg Config, providers Providers, pool *InferencePool) *Orchestrator {
	ringSec := max(cfg.WindowSec*2, minRingSec)
	return &Orchestrator{
		cfg:       cfg,
		providers: providers,
		pool:      pool,
		metrics:   observe.Default(),
		ring:      audio.NewRing(ringSec, cfg.CaptureSampleRate),
		tracker:   commit.NewTracker(cfg.Commit),
		bp:        backpressure.NewController(cfg.TTSQueueMax),
		events:    make(chan Event, eventChanBuf),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic ASR loop. It must be called exactly once.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	go o.run(ctx)
	slog.Info("pipeline started",
		"source", o.cfg.SourceLang,
		"target", o.cfg.TargetLang,
		"asr_interval", o.cfg.ASRInterval,
		"window_sec", o.cfg.WindowSec,
	)
}

// FeedAudio appends raw little-endian PCM16 bytes from the transport.
// Safe to call concurrently with the running loop.
func (o *Orchestrator) FeedAudio(pcm []byte) {
	o.ring.AppendPCM16(pcm)
}

// Events returns the output event stream. It is closed by [Orchestrator.Stop]
// after the final force-committed segment has been processed.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Stop cancels the ASR loop, waits for it to exit, force-commits any
// remaining text, and drains the resulting commits through the MT/TTS path
// best-effort. The event channel is closed on return; if the transport is
// already gone the teardown events are discarded rather than blocking.
func (o *Orchestrator) Stop(ctx context.Context) {
	if o.cancel != nil {
		o.cancel()
	}
	<-o.done

	for _, ev := range o.tracker.ForceCommit() {
		o.processCommit(ctx, ev, true)
	}
	close(o.events)
	slog.Info("pipeline stopped", "commits_total", o.commitsTotal)
}

// run is the periodic ASR loop: one tick every ASRInterval.
func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.cfg.ASRInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick performs one ASR cycle: window read, energy gates, transcription,
// filtering, commit tracking, and event emission.
func (o *Orchestrator) tick(ctx context.Context) {
	window, ok := o.ring.Last(o.cfg.WindowSec)
	if !ok || len(window) < int(minWindowSec*float64(o.cfg.CaptureSampleRate)) {
		return
	}

	rms := audio.RMS(window)
	if rms < filter.SilenceRMS {
		o.silentTicks++
		return
	}
	o.silentTicks = 0
	if rms < filter.MinRMS {
		// Enough energy to not count as silence, too little to be speech.
		return
	}

	start := time.Now()
	var hypothesis string
	err := o.pool.Do(ctx, func() error {
		var tErr error
		hypothesis, tErr = o.providers.ASR.Transcribe(ctx, window, o.cfg.SourceLang, o.tracker.ContextTail())
		return tErr
	})
	asrDur := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("asr tick failed", "error", err)
		o.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "asr")))
		return
	}
	o.metrics.ASRDuration.Record(ctx, asrDur.Seconds())
	o.lastASRMs = float64(asrDur.Milliseconds())

	cleaned := filter.Clean(hypothesis)
	if cleaned == "" {
		if hypothesis != "" {
			o.metrics.FilteredHypotheses.Add(ctx, 1)
		}
		return
	}
	o.metrics.Hypotheses.Add(ctx, 1)

	commits := o.tracker.Update(cleaned)

	// Partial transcript carries only uncommitted text.
	if partial := o.tracker.EffectiveUncommittedText(); partial != "" {
		o.emit(ctx, PartialTranscript{Text: partial})
	}

	for _, ev := range commits {
		o.processCommit(ctx, ev, false)
	}
}

// processCommit runs the MT → TTS path for one committed segment and emits
// the transcript, translation, audio, and stats events. During teardown
// emission is best-effort: a full event channel drops rather than blocks.
func (o *Orchestrator) processCommit(ctx context.Context, ev commit.Event, teardown bool) {
	e2eStart := time.Now()

	emit := o.emit
	if teardown {
		emit = o.emitBestEffort
	}

	emit(ctx, CommittedTranscript{Text: ev.Text, SegmentID: ev.SegmentID})
	o.commitsTotal++
	o.metrics.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind))))

	if o.bp.ShouldSkipTTS() {
		slog.Warn("skipping synthesis under backpressure", "segment", ev.SegmentID)
		return
	}
	if o.bp.ShouldBatch() {
		o.bp.AddToBatch(ev.Text)
		return
	}

	text := ev.Text
	if batched := o.bp.FlushBatch(); batched != "" {
		text = batched + " " + text
	}

	// ── MT ──
	mtStart := time.Now()
	var translation string
	err := o.pool.Do(ctx, func() error {
		var tErr error
		translation, tErr = o.providers.MT.Translate(ctx, text, o.cfg.SourceLang, o.cfg.TargetLang)
		return tErr
	})
	mtDur := time.Since(mtStart)
	if err != nil {
		if ctx.Err() != nil && !teardown {
			return
		}
		slog.Error("translation failed, passing source through", "segment", ev.SegmentID, "error", err)
		o.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "mt")))
		translation = text
	}
	o.metrics.MTDuration.Record(ctx, mtDur.Seconds())

	emit(ctx, TranslationCommitted{Text: translation, Source: text, SegmentID: ev.SegmentID})

	// ── TTS ──
	o.bp.OnTTSQueued()
	o.metrics.PendingTTS.Add(ctx, 1)
	defer func() {
		o.bp.OnTTSCompleted()
		o.metrics.PendingTTS.Add(ctx, -1)
	}()

	ttsStart := time.Now()
	chunks, err := o.providers.TTS.SynthesizeStream(ctx, translation, o.cfg.TargetLang)
	if err != nil {
		slog.Error("synthesis failed", "segment", ev.SegmentID, "error", err)
		o.metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "tts")))
		return
	}

	chunkCount := 0
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		chunkCount++
		emit(ctx, TTSAudioChunk{Payload: chunk, SegmentID: ev.SegmentID, IsLast: false})
	}
	if chunkCount > 0 {
		emit(ctx, TTSEnd{SegmentID: ev.SegmentID})
	}
	ttsDur := time.Since(ttsStart)
	o.metrics.TTSDuration.Record(ctx, ttsDur.Seconds())

	e2eDur := time.Since(e2eStart)
	o.metrics.E2EDuration.Record(ctx, e2eDur.Seconds())

	emit(ctx, Stats{
		ASRMillis:    o.lastASRMs,
		MTMillis:     float64(mtDur.Milliseconds()),
		TTSMillis:    float64(ttsDur.Milliseconds()),
		E2EMillis:    float64(e2eDur.Milliseconds()),
		CommitsTotal: o.commitsTotal,
		TTSQueue:     o.bp.Pending(),
	})
}

// emit delivers an event to the output channel, giving up when ctx is
// cancelled (the consumer is gone).
func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

// emitBestEffort delivers an event only if the channel has room. Used
// during teardown when the consumer may already have left.
func (o *Orchestrator) emitBestEffort(_ context.Context, ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

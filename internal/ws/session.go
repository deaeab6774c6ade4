package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/lingostream/lingostream/internal/observe"
	"github.com/lingostream/lingostream/internal/pipeline"
)

// teardownTimeout bounds the force-commit drain after the receive loop
// ends.
const teardownTimeout = 10 * time.Second

// Conn is the minimal transport the session needs. It is an interface so
// tests can drive a session without a live WebSocket. All frames are JSON
// text.
type Conn interface {
	// Read returns the next text frame. It returns an error when the peer
	// disconnects or ctx is cancelled.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a text frame.
	Write(ctx context.Context, data []byte) error

	// Close tears the connection down with a normal-closure status.
	Close() error
}

// wsConn adapts a coder/websocket connection to [Conn].
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session closed")
}

// PipelineFactory builds a configured orchestrator for a source → target
// language pair. The session owns the returned orchestrator and stops it on
// reconfiguration or teardown.
type PipelineFactory func(sourceLang, targetLang string) *pipeline.Orchestrator

// Session is the per-connection state machine:
//
//	AwaitingConfig → Running → (ConfigChange → Running)* → Closed
//
// The first record must be a config; audio and stop records are only valid
// while running. Malformed JSON and unknown record types produce error
// records; an audio record whose payload fails to decode is logged and
// dropped. Neither terminates the session — only a missing initial config
// or a transport failure does.
type Session struct {
	conn    Conn
	factory PipelineFactory
	ttsRate int
	metrics *observe.Metrics

	pipe     *pipeline.Orchestrator
	senderWG sync.WaitGroup
}

// NewSession creates a session over conn. ttsRate is stamped onto outbound
// audio chunk records.
func NewSession(conn Conn, factory PipelineFactory, ttsRate int) *Session {
	return &Session{
		conn:    conn,
		factory: factory,
		ttsRate: ttsRate,
		metrics: observe.Default(),
	}
}

// Run drives the session until the client sends stop, the transport
// disconnects, or ctx is cancelled. It always tears the pipeline down
// (force-committing pending text) before returning.
func (s *Session) Run(ctx context.Context) error {
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	// ── AwaitingConfig ──
	first, err := s.readRecord(ctx)
	if err != nil {
		return fmt.Errorf("ws: read initial record: %w", err)
	}
	if first == nil || first.Type != "config" {
		s.sendEvent(ctx, pipeline.ErrorEvent{Message: "first record must be {type:'config', source_lang, target_lang}"})
		return errors.New("ws: missing initial config")
	}

	s.startPipeline(ctx, first.SourceLang, first.TargetLang)
	s.sendEvent(ctx, pipeline.Ready{})
	slog.Info("session running", "source", first.SourceLang, "target", first.TargetLang)

	// ── Running ──
	err = s.receiveLoop(ctx)

	// ── Closed: drain the pipeline best-effort. ──
	teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	s.stopPipeline(teardownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Info("session closed", "reason", err)
	}
	return nil
}

// receiveLoop handles records until stop, disconnect, or cancellation.
// A nil return means the client sent a stop record.
func (s *Session) receiveLoop(ctx context.Context) error {
	for {
		rec, err := s.readRecord(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			// Malformed JSON: report and drop the record.
			s.sendEvent(ctx, pipeline.ErrorEvent{Message: "malformed JSON record"})
			continue
		}

		switch rec.Type {
		case "audio":
			if rec.PCM16Base64 == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(rec.PCM16Base64)
			if err != nil {
				slog.Warn("audio record decode failed, dropping", "seq", rec.Seq, "error", err)
				continue
			}
			s.pipe.FeedAudio(pcm)

		case "stop":
			slog.Info("client sent stop")
			return nil

		case "config":
			// Runtime language change: rebuild the pipeline.
			slog.Info("session reconfigured", "source", rec.SourceLang, "target", rec.TargetLang)
			teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
			s.stopPipeline(teardownCtx)
			cancel()
			s.startPipeline(ctx, rec.SourceLang, rec.TargetLang)
			s.sendEvent(ctx, pipeline.Ready{})

		default:
			s.sendEvent(ctx, pipeline.ErrorEvent{Message: fmt.Sprintf("unknown record type %q", rec.Type)})
		}
	}
}

// startPipeline builds and starts an orchestrator and spawns its sender
// goroutine.
func (s *Session) startPipeline(ctx context.Context, src, tgt string) {
	s.pipe = s.factory(src, tgt)
	s.pipe.Start(ctx)

	events := s.pipe.Events()
	s.senderWG.Add(1)
	go func() {
		defer s.senderWG.Done()
		for ev := range events {
			s.sendEvent(ctx, ev)
		}
	}()
}

// stopPipeline stops the current orchestrator (force-committing pending
// text) and waits for its sender goroutine to drain the final events.
func (s *Session) stopPipeline(ctx context.Context) {
	if s.pipe == nil {
		return
	}
	s.pipe.Stop(ctx)
	s.senderWG.Wait()
	s.pipe = nil
}

// readRecord reads one frame and decodes it. A transport error is returned
// as-is; malformed JSON yields (nil, nil).
func (s *Session) readRecord(ctx context.Context) (*clientRecord, error) {
	data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var rec clientRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("invalid JSON from client", "error", err)
		return nil, nil
	}
	return &rec, nil
}

// sendEvent renders ev and writes it to the transport. Write failures are
// logged and swallowed — the receive loop notices the dead transport on its
// next read.
func (s *Session) sendEvent(ctx context.Context, ev pipeline.Event) {
	data, err := encodeEvent(ev, s.ttsRate)
	if err != nil {
		slog.Error("event encode failed", "error", err)
		return
	}
	if err := s.conn.Write(ctx, data); err != nil {
		slog.Debug("event write failed", "error", err)
	}
}

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	factory PipelineFactory
	ttsRate int
}

// NewHandler creates the /ws/stream HTTP handler.
func NewHandler(factory PipelineFactory, ttsRate int) *Handler {
	return &Handler{factory: factory, ttsRate: ttsRate}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from app origins; auth is out of scope.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	sess := NewSession(&wsConn{conn: conn}, h.factory, h.ttsRate)
	if err := sess.Run(r.Context()); err != nil {
		slog.Info("session ended", "reason", err)
	}
	conn.Close(websocket.StatusNormalClosure, "session closed")
}

package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lingostream/lingostream/internal/commit"
	"github.com/lingostream/lingostream/internal/pipeline"
	asrmock "github.com/lingostream/lingostream/pkg/provider/asr/mock"
	mtmock "github.com/lingostream/lingostream/pkg/provider/mt/mock"
	ttsmock "github.com/lingostream/lingostream/pkg/provider/tts/mock"
)

// fakeConn is an in-memory Conn fed by a frame channel.
type fakeConn struct {
	in chan []byte

	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 64)}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.in:
		if !ok {
			return nil, errors.New("fake transport closed")
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.out = append(c.out, cp)
	return nil
}

func (c *fakeConn) Close() error { return nil }

// records decodes all written frames into generic maps.
func (c *fakeConn) records() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.out))
	for _, data := range c.out {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// countType returns how many written records have the given type.
func (c *fakeConn) countType(typ string) int {
	n := 0
	for _, rec := range c.records() {
		if rec["type"] == typ {
			n++
		}
	}
	return n
}

// newTestFactory builds orchestrators over mock providers with a fast tick.
func newTestFactory(asrP *asrmock.Provider) PipelineFactory {
	return func(src, tgt string) *pipeline.Orchestrator {
		return pipeline.New(pipeline.Config{
			SourceLang:        src,
			TargetLang:        tgt,
			WindowSec:         2.0,
			ASRInterval:       5 * time.Millisecond,
			Commit:            commit.Config{StabilityK: 2, Timeout: 100 * time.Second, MinWords: 2},
			TTSQueueMax:       5,
			CaptureSampleRate: 16000,
		}, pipeline.Providers{
			ASR: asrP,
			MT:  &mtmock.Provider{},
			TTS: &ttsmock.Provider{ChunksPerCall: 2},
		}, pipeline.NewInferencePool(2))
	}
}

// loudAudioFrame returns an audio record carrying one second of tone.
func loudAudioFrame(seq int) []byte {
	samples := make([]byte, 32000)
	for i := range 16000 {
		v := int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
		samples[i*2] = byte(v)
		samples[i*2+1] = byte(v >> 8)
	}
	frame, _ := json.Marshal(map[string]any{
		"type":         "audio",
		"seq":          seq,
		"sample_rate":  16000,
		"pcm16_base64": base64.StdEncoding.EncodeToString(samples),
	})
	return frame
}

func configFrame(src, tgt string) []byte {
	frame, _ := json.Marshal(map[string]string{
		"type": "config", "source_lang": src, "target_lang": tgt,
	})
	return frame
}

// waitFor polls cond until true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMissingInitialConfigCloses(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(&asrmock.Provider{}), 24000)

	conn.in <- loudAudioFrame(1)

	err := sess.Run(context.Background())
	if err == nil {
		t.Fatal("want error for missing initial config")
	}
	if conn.countType("error") != 1 {
		t.Fatalf("want one error record, got %v", conn.records())
	}
}

func TestHappyPathStreaming(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{Hypotheses: []string{"hola mundo"}}
	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(asrP), 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	conn.in <- loudAudioFrame(1)

	waitFor(t, 3*time.Second, func() bool { return conn.countType("committed_transcript") >= 1 })
	waitFor(t, 3*time.Second, func() bool { return conn.countType("tts_end") >= 1 })
	conn.in <- []byte(`{"type":"stop"}`)

	if err := <-done; err != nil {
		t.Fatalf("session error: %v", err)
	}

	records := conn.records()
	if records[0]["type"] != "ready" {
		t.Fatalf("first record must be ready, got %v", records[0])
	}

	var sawCommit, sawTranslation, sawChunk bool
	for _, rec := range records {
		switch rec["type"] {
		case "committed_transcript":
			sawCommit = true
			if rec["text"] != "hola mundo" {
				t.Fatalf("unexpected committed text: %v", rec["text"])
			}
			if rec["segment_id"] != float64(1) {
				t.Fatalf("unexpected segment id: %v", rec["segment_id"])
			}
		case "translation_committed":
			sawTranslation = true
			if rec["text"] != "en:hola mundo" {
				t.Fatalf("unexpected translation: %v", rec["text"])
			}
			if rec["source"] != "hola mundo" {
				t.Fatalf("unexpected source: %v", rec["source"])
			}
		case "tts_audio_chunk":
			sawChunk = true
			if rec["sample_rate"] != float64(24000) {
				t.Fatalf("audio chunk must carry the TTS sample rate: %v", rec["sample_rate"])
			}
			if rec["is_last"] != false {
				t.Fatalf("chunks carry is_last=false: %v", rec["is_last"])
			}
			if _, err := base64.StdEncoding.DecodeString(rec["audio_b64"].(string)); err != nil {
				t.Fatalf("audio_b64 must decode: %v", err)
			}
		}
	}
	if !sawCommit || !sawTranslation || !sawChunk {
		t.Fatalf("missing records: commit=%v translation=%v chunk=%v", sawCommit, sawTranslation, sawChunk)
	}
}

func TestMalformedJSONDoesNotKillSession(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(&asrmock.Provider{}), 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	conn.in <- []byte(`{not json`)

	waitFor(t, 2*time.Second, func() bool { return conn.countType("error") >= 1 })
	conn.in <- []byte(`{"type":"stop"}`)

	if err := <-done; err != nil {
		t.Fatalf("malformed JSON must not end the session: %v", err)
	}
}

func TestUnknownRecordType(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(&asrmock.Provider{}), 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	conn.in <- []byte(`{"type":"warp"}`)

	waitFor(t, 2*time.Second, func() bool { return conn.countType("error") >= 1 })
	conn.in <- []byte(`{"type":"stop"}`)
	if err := <-done; err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
}

func TestBadAudioPayloadDropped(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{}
	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(asrP), 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	conn.in <- []byte(`{"type":"audio","seq":1,"sample_rate":16000,"pcm16_base64":"!!!not-base64!!!"}`)
	time.Sleep(50 * time.Millisecond)
	conn.in <- []byte(`{"type":"stop"}`)

	if err := <-done; err != nil {
		t.Fatalf("bad audio payload must not end the session: %v", err)
	}
	// The bad record was dropped silently — no error record for decode
	// failures, per the error taxonomy.
	if got := conn.countType("error"); got != 0 {
		t.Fatalf("decode failure must not produce an error record, got %d", got)
	}
}

func TestReconfigureMidSession(t *testing.T) {
	t.Parallel()

	asrP := &asrmock.Provider{Hypotheses: []string{"hola mundo"}}
	conn := newFakeConn()
	sess := NewSession(conn, newTestFactory(asrP), 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	waitFor(t, 2*time.Second, func() bool { return conn.countType("ready") >= 1 })

	conn.in <- configFrame("en", "es")
	waitFor(t, 2*time.Second, func() bool { return conn.countType("ready") >= 2 })

	conn.in <- []byte(`{"type":"stop"}`)
	if err := <-done; err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
}

func TestDisconnectForceCommits(t *testing.T) {
	t.Parallel()

	// High K so nothing stabilises; the force-commit on disconnect is the
	// only way the text gets out.
	asrP := &asrmock.Provider{Hypotheses: []string{"texto sin estabilizar"}}
	factory := func(src, tgt string) *pipeline.Orchestrator {
		return pipeline.New(pipeline.Config{
			SourceLang:        src,
			TargetLang:        tgt,
			WindowSec:         2.0,
			ASRInterval:       5 * time.Millisecond,
			Commit:            commit.Config{StabilityK: 50, Timeout: 100 * time.Second, MinWords: 2},
			TTSQueueMax:       5,
			CaptureSampleRate: 16000,
		}, pipeline.Providers{
			ASR: asrP,
			MT:  &mtmock.Provider{},
			TTS: &ttsmock.Provider{ChunksPerCall: 1},
		}, pipeline.NewInferencePool(2))
	}

	conn := newFakeConn()
	sess := NewSession(conn, factory, 24000)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	conn.in <- configFrame("es", "en")
	conn.in <- loudAudioFrame(1)

	waitFor(t, 3*time.Second, func() bool { return asrP.CallCount() >= 2 })
	close(conn.in) // transport disconnect

	if err := <-done; err != nil {
		t.Fatalf("disconnect teardown must exit quietly: %v", err)
	}
	if got := conn.countType("committed_transcript"); got != 1 {
		t.Fatalf("want one force-committed transcript after disconnect, got %d (%v)", got, conn.records())
	}
}

// Ensure encodeEvent covers every event type the orchestrator can emit.
func TestEncodeEventShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ev   pipeline.Event
		typ  string
		want map[string]any
	}{
		{pipeline.Ready{}, "ready", nil},
		{pipeline.ErrorEvent{Message: "boom"}, "error", map[string]any{"message": "boom"}},
		{pipeline.PartialTranscript{Text: "hola"}, "partial_transcript", map[string]any{"text": "hola"}},
		{pipeline.CommittedTranscript{Text: "hola", SegmentID: 3}, "committed_transcript", map[string]any{"segment_id": float64(3)}},
		{pipeline.TranslationCommitted{Text: "hi", Source: "hola", SegmentID: 3}, "translation_committed", map[string]any{"source": "hola"}},
		{pipeline.TTSAudioChunk{Payload: []byte{1, 2}, SegmentID: 3}, "tts_audio_chunk", map[string]any{"sample_rate": float64(24000)}},
		{pipeline.TTSEnd{SegmentID: 3}, "tts_end", map[string]any{"segment_id": float64(3)}},
		{pipeline.Stats{ASRMillis: 1.5, CommitsTotal: 2}, "stats", map[string]any{"asr_ms": 1.5, "commits_total": float64(2)}},
	}

	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			t.Parallel()
			data, err := encodeEvent(tc.ev, 24000)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m["type"] != tc.typ {
				t.Fatalf("want type %q, got %v", tc.typ, m["type"])
			}
			for k, v := range tc.want {
				if fmt.Sprint(m[k]) != fmt.Sprint(v) {
					t.Fatalf("field %q: want %v, got %v", k, v, m[k])
				}
			}
		})
	}
}

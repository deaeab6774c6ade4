// Package ws implements the transport-facing streaming session: a
// per-connection state machine over a WebSocket carrying JSON records.
//
// Protocol (all frames are JSON text; audio payloads are base64):
//
// Client → Server:
//
//	{"type":"config","source_lang":"es","target_lang":"en"}   // must be first; may be resent
//	{"type":"audio","seq":N,"sample_rate":16000,"pcm16_base64":"..."}
//	{"type":"stop"}
//
// Server → Client:
//
//	{"type":"ready"}
//	{"type":"partial_transcript","text":"..."}
//	{"type":"committed_transcript","text":"...","segment_id":N}
//	{"type":"translation_committed","text":"...","source":"...","segment_id":N}
//	{"type":"tts_audio_chunk","audio_b64":"...","segment_id":N,"sample_rate":24000,"is_last":false}
//	{"type":"tts_end","segment_id":N}
//	{"type":"stats","asr_ms":...,"mt_ms":...,"tts_ms":...,"e2e_ms":...,"commits_total":N,"tts_queue":N}
//	{"type":"error","message":"..."}
package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lingostream/lingostream/internal/pipeline"
)

// clientRecord is the union of all inbound record shapes.
type clientRecord struct {
	Type        string `json:"type"`
	SourceLang  string `json:"source_lang,omitempty"`
	TargetLang  string `json:"target_lang,omitempty"`
	Seq         int    `json:"seq,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	PCM16Base64 string `json:"pcm16_base64,omitempty"`
}

// Outbound record shapes. Field order matches the documented protocol.

type readyRecord struct {
	Type string `json:"type"`
}

type errorRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type partialRecord struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type committedRecord struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	SegmentID int    `json:"segment_id"`
}

type translationRecord struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	SegmentID int    `json:"segment_id"`
}

type audioChunkRecord struct {
	Type       string `json:"type"`
	AudioB64   string `json:"audio_b64"`
	SegmentID  int    `json:"segment_id"`
	SampleRate int    `json:"sample_rate"`
	IsLast     bool   `json:"is_last"`
}

type ttsEndRecord struct {
	Type      string `json:"type"`
	SegmentID int    `json:"segment_id"`
}

type statsRecord struct {
	Type         string  `json:"type"`
	ASRMillis    float64 `json:"asr_ms"`
	MTMillis     float64 `json:"mt_ms"`
	TTSMillis    float64 `json:"tts_ms"`
	E2EMillis    float64 `json:"e2e_ms"`
	CommitsTotal int     `json:"commits_total"`
	TTSQueue     int     `json:"tts_queue"`
}

// encodeEvent renders a pipeline event as its wire record. ttsRate is
// stamped onto audio chunks.
func encodeEvent(ev pipeline.Event, ttsRate int) ([]byte, error) {
	switch e := ev.(type) {
	case pipeline.Ready:
		return json.Marshal(readyRecord{Type: "ready"})
	case pipeline.ErrorEvent:
		return json.Marshal(errorRecord{Type: "error", Message: e.Message})
	case pipeline.PartialTranscript:
		return json.Marshal(partialRecord{Type: "partial_transcript", Text: e.Text})
	case pipeline.CommittedTranscript:
		return json.Marshal(committedRecord{Type: "committed_transcript", Text: e.Text, SegmentID: e.SegmentID})
	case pipeline.TranslationCommitted:
		return json.Marshal(translationRecord{Type: "translation_committed", Text: e.Text, Source: e.Source, SegmentID: e.SegmentID})
	case pipeline.TTSAudioChunk:
		return json.Marshal(audioChunkRecord{
			Type:       "tts_audio_chunk",
			AudioB64:   base64.StdEncoding.EncodeToString(e.Payload),
			SegmentID:  e.SegmentID,
			SampleRate: ttsRate,
			IsLast:     e.IsLast,
		})
	case pipeline.TTSEnd:
		return json.Marshal(ttsEndRecord{Type: "tts_end", SegmentID: e.SegmentID})
	case pipeline.Stats:
		return json.Marshal(statsRecord{
			Type:         "stats",
			ASRMillis:    e.ASRMillis,
			MTMillis:     e.MTMillis,
			TTSMillis:    e.TTSMillis,
			E2EMillis:    e.E2EMillis,
			CommitsTotal: e.CommitsTotal,
			TTSQueue:     e.TTSQueue,
		})
	default:
		return nil, fmt.Errorf("ws: unknown event type %T", ev)
	}
}

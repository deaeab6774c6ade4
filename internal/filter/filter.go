// Package filter gates raw ASR hypotheses before they reach the commit
// tracker. Whisper-style models hallucinate on low-energy audio: they emit
// subtitle boilerplate, watermark domains, and repeated filler tokens. The
// gates here reject those hypotheses so the commit tracker only ever sees
// plausible speech.
//
// Gate order matters: the energy gate runs before ASR is even called (the
// orchestrator consults [MinRMS]); the pattern and repetition gates run on
// the ASR output via [Clean]. Any rejecting gate yields the empty string.
package filter

import (
	"regexp"
	"strings"
)

const (
	// MinRMS is the minimum window energy for ASR to run at all. Below this
	// the orchestrator skips transcription entirely. ~-42 dB; a quiet room
	// sits around 0.002-0.005.
	MinRMS = 0.008

	// SilenceRMS is the cheaper pre-gate used by the orchestrator to count
	// silent ticks without touching the ASR worker pool.
	SilenceRMS = 0.005
)

// hallucinationPatterns matches known Whisper hallucination families:
// subtitle/subscribe boilerplate (with Spanish variants), music/applause
// placeholders, subtitle-community watermarks, and bare www domains.
var hallucinationPatterns = regexp.MustCompile(
	`(?i)(subtitle|subscribe|suscr[ií]bete|suscr[ií]banse|gracias por ver|thank you for watching` +
		`|music|applause|m[uú]sica|aplausos` +
		`|Amara\.org|MoroccoEnglish|Madriman` +
		`|\bwww\.\w+\.\w+\b)`,
)

// langPrefix matches a leading "lang xx:" marker that some ASR backends
// prepend to their output.
var langPrefix = regexp.MustCompile(`^\s*lang\s+\S+:\s*`)

// repetitionShare is the maximum fraction of a hypothesis a single word may
// occupy before the hypothesis is considered a repetition hallucination.
const repetitionShare = 0.5

// Clean applies the pattern and repetition gates to a raw ASR hypothesis.
// A leading "lang <X>:" prefix is stripped first. Returns the cleaned
// hypothesis, or the empty string when any gate rejects.
func Clean(hypothesis string) string {
	text := strings.TrimSpace(langPrefix.ReplaceAllString(hypothesis, ""))
	if text == "" {
		return ""
	}
	if hallucinationPatterns.MatchString(text) {
		return ""
	}
	if isRepetitive(text) {
		return ""
	}
	return text
}

// isRepetitive reports whether text is mostly repeated tokens. Hypotheses
// shorter than 4 words are never considered repetitive.
func isRepetitive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 4 {
		return false
	}

	counts := make(map[string]int, len(words))
	most := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > most {
			most = counts[w]
		}
	}

	if len(counts) <= 2 && len(words) >= 6 {
		return true
	}
	return float64(most)/float64(len(words)) > repetitionShare
}

package outcome

import (
	"strings"

	"campaign-dialer/internal/calls"
)

// Evidence is the partial call data a classification runs on. Any field
// may be missing; the priority chain degrades gracefully to Unknown.
type Evidence struct {
	Status          calls.CallStatus
	ExtractedData   map[string]any
	Transcript      string
	Summary         string
	Sentiment       string // positive, neutral, negative
	DurationSeconds int
}

// Duration thresholds for the fallback heuristic.
const (
	shortCallSeconds = 10
	longCallSeconds  = 60
)

// Classify maps call evidence to one outcome label. It is deterministic
// and side-effect free; the rules live in rules.go as ordered tables so
// the priority chain stays auditable.
//
// Chain, first match wins:
//  1. technical call status
//  2. explicit flags in extracted data
//  3. transcript keywords
//  4. summary keywords
//  5. duration + sentiment fallback
func Classify(ev Evidence) string {
	// 1. Technical status short-circuits everything, including keyword
	// hits: a voicemail that mentions "interested" is still a voicemail.
	switch ev.Status {
	case calls.CallStatusVoicemail:
		return LabelVoicemail
	case calls.CallStatusFailed:
		return LabelFailed
	case calls.CallStatusBusy:
		return LabelBusy
	case calls.CallStatusNoAnswer:
		return LabelNoAnswer
	}

	// 2. Explicit structured flags.
	for _, rule := range extractedFlagRules {
		for _, key := range rule.Keys {
			if truthy(ev.ExtractedData[key]) {
				return rule.Label
			}
		}
	}

	// 3 + 4. Keyword scans, transcript before summary.
	if label, ok := scanText(ev.Transcript, ev.Sentiment); ok {
		return label
	}
	if label, ok := scanText(ev.Summary, ev.Sentiment); ok {
		return label
	}

	// 5. Fallback from duration, sentiment and status.
	if ev.Status == calls.CallStatusCompleted {
		if ev.DurationSeconds > 0 && ev.DurationSeconds < shortCallSeconds {
			return LabelHungUp
		}
		if ev.Sentiment == "negative" {
			return LabelNotInterested
		}
		if ev.DurationSeconds >= longCallSeconds {
			if ev.Sentiment == "positive" {
				return LabelInterested
			}
			return LabelInfoProvided
		}
	}
	return LabelUnknown
}

// LooksLikeVoicemail reports whether a transcript reads like a machine
// greeting. Best-effort heuristic; callers must let an explicit provider
// signal win over it.
func LooksLikeVoicemail(transcript string) bool {
	if transcript == "" {
		return false
	}
	lower := strings.ToLower(transcript)
	for _, p := range voicemailPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func scanText(text, sentiment string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, rule := range textRules {
		if rule.SentimentGate != "" && sentiment == rule.SentimentGate {
			continue
		}
		for _, p := range rule.Phrases {
			if strings.Contains(lower, p) {
				return rule.Label, true
			}
		}
	}
	return "", false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes" || s == "1"
	case float64: // JSON numbers decode as float64
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

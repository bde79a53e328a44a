package reconcile

import (
	"strings"

	"campaign-dialer/internal/calls"
)

// providerStatusMap is the fixed table from provider status strings to
// the canonical call status. Unrecognized values fall back to ringing, a
// safe non-terminal status: a later, better event can still move the call
// forward, and nothing gets counted prematurely.
var providerStatusMap = map[string]calls.CallStatus{
	"pending":     calls.CallStatusQueued,
	"queued":      calls.CallStatusQueued,
	"registered":  calls.CallStatusQueued,
	"ringing":     calls.CallStatusRinging,
	"dialing":     calls.CallStatusRinging,
	"connected":   calls.CallStatusInProgress,
	"answered":    calls.CallStatusInProgress,
	"in_progress": calls.CallStatusInProgress,
	"in-progress": calls.CallStatusInProgress,
	"ongoing":     calls.CallStatusInProgress,
	"completed":   calls.CallStatusCompleted,
	"ended":       calls.CallStatusCompleted,
	"failed":      calls.CallStatusFailed,
	"error":       calls.CallStatusFailed,
	"busy":        calls.CallStatusBusy,
	"no_answer":   calls.CallStatusNoAnswer,
	"no-answer":   calls.CallStatusNoAnswer,
	"noanswer":    calls.CallStatusNoAnswer,
	"voicemail":   calls.CallStatusVoicemail,
	"machine":     calls.CallStatusVoicemail,
}

// MapProviderStatus normalizes a raw provider status string.
func MapProviderStatus(raw string) calls.CallStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := providerStatusMap[key]; ok {
		return st
	}
	return calls.CallStatusRinging
}

// voicemailResultTypes are explicit provider result signals meaning the
// call hit an answering machine. These override everything, including the
// mapped status.
var voicemailResultTypes = map[string]bool{
	"voicemail_detected": true,
	"voicemail":          true,
	"answering_machine":  true,
	"machine_detected":   true,
}

// IsVoicemailSignal reports whether a system result type is an explicit
// voicemail signal.
func IsVoicemailSignal(systemResultType string) bool {
	return voicemailResultTypes[strings.ToLower(strings.TrimSpace(systemResultType))]
}

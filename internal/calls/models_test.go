package calls

import "testing"

func TestCallStatusValuesAreNonEmpty(t *testing.T) {
	statuses := []CallStatus{
		CallStatusQueued,
		CallStatusRinging,
		CallStatusInProgress,
		CallStatusCompleted,
		CallStatusFailed,
		CallStatusVoicemail,
		CallStatusNoAnswer,
		CallStatusBusy,
	}
	for _, s := range statuses {
		if s == "" {
			t.Fatalf("expected non-empty status")
		}
	}
}

func TestCallStatus_IsTerminal(t *testing.T) {
	terminal := []CallStatus{CallStatusCompleted, CallStatusFailed, CallStatusVoicemail, CallStatusBusy, CallStatusNoAnswer}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	nonTerminal := []CallStatus{CallStatusQueued, CallStatusRinging, CallStatusInProgress}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestCallStatus_Connected(t *testing.T) {
	if !CallStatusCompleted.Connected() {
		t.Fatalf("completed should count as connected")
	}
	if CallStatusVoicemail.Connected() {
		t.Fatalf("voicemail should not count as connected")
	}
}

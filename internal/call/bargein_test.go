package call

import (
	"testing"
	"time"
)

func speakingSession(now time.Time) *Session {
	s := NewSession("c1", "t1", "openai", "alloy", "en", now)
	s.State = StateSpeaking
	s.ActiveResponseID = "r1"
	s.RequestInFlight = true
	s.Turn = &ResponseTurn{ID: "r1", CreatedAt: now}
	return s
}

func TestBargeInRequiresCalibration(t *testing.T) {
	now := time.Now()
	s := speakingSession(now)
	b := NewBargeIn(s, DefaultTimings())

	if actions := b.HandleSpeechStarted(now, false); len(actions) != 0 {
		t.Fatalf("uncalibrated VAD must not cancel, got %+v", actions)
	}
	if actions := b.HandleSpeechStarted(now, true); countActions(actions, ActionCancelResponse) != 1 {
		t.Fatalf("calibrated speech must cancel, got %+v", actions)
	}
}

func TestBargeInRespectsGreetingWindow(t *testing.T) {
	now := time.Now()
	s := speakingSession(now)
	s.GreetingProtectedUntil = now.Add(2 * time.Second)
	b := NewBargeIn(s, DefaultTimings())

	if actions := b.HandleSpeechStarted(now, true); len(actions) != 0 {
		t.Fatalf("greeting window must suppress barge-in, got %+v", actions)
	}
	after := s.GreetingProtectedUntil.Add(time.Millisecond)
	if actions := b.HandleSpeechStarted(after, true); countActions(actions, ActionCancelResponse) != 1 {
		t.Fatalf("barge-in after greeting window must cancel, got %+v", actions)
	}
}

func TestBargeInCancelsExactlyOncePerResponse(t *testing.T) {
	now := time.Now()
	s := speakingSession(now)
	b := NewBargeIn(s, DefaultTimings())

	first := b.HandleSpeechStarted(now, true)
	if countActions(first, ActionCancelResponse) != 1 || countActions(first, ActionFlushOutbound) != 1 {
		t.Fatalf("first barge-in = %+v", first)
	}
	if first[0].ResponseID != "r1" {
		t.Fatalf("cancel bound to %q, want r1", first[0].ResponseID)
	}

	// Repeated speech-start signals for the same response stay silent,
	// even past the cooldown.
	second := b.HandleSpeechStarted(now.Add(time.Second), true)
	if len(second) != 0 {
		t.Fatalf("second cancel for same response: %+v", second)
	}
}

func TestBargeInCooldownAcrossResponses(t *testing.T) {
	now := time.Now()
	s := speakingSession(now)
	b := NewBargeIn(s, DefaultTimings())

	b.HandleSpeechStarted(now, true)

	// A new response became active immediately, but we are inside the
	// cancel cooldown.
	s.ActiveResponseID = "r2"
	if actions := b.HandleSpeechStarted(now.Add(100*time.Millisecond), true); len(actions) != 0 {
		t.Fatalf("cancel inside cooldown: %+v", actions)
	}
	if actions := b.HandleSpeechStarted(now.Add(300*time.Millisecond), true); countActions(actions, ActionCancelResponse) != 1 {
		t.Fatalf("cancel after cooldown must fire, got %+v", actions)
	}
}

func TestBargeInSetsMuteAndClearsPendingHangup(t *testing.T) {
	now := time.Now()
	s := speakingSession(now)
	s.PendingHangupResponseID = "r1"
	b := NewBargeIn(s, DefaultTimings())

	b.HandleSpeechStarted(now, true)

	if !s.Muted(now.Add(200 * time.Millisecond)) {
		t.Fatalf("hard mute window not set")
	}
	if s.Muted(now.Add(500 * time.Millisecond)) {
		t.Fatalf("hard mute window should have expired")
	}
	if s.PendingHangupResponseID != "" {
		t.Fatalf("pending hangup must be cleared by barge-in")
	}
	if s.State != StateCancelling {
		t.Fatalf("state = %v, want cancelling", s.State)
	}
}

func TestBargeInNeedsActiveResponse(t *testing.T) {
	now := time.Now()
	s := NewSession("c1", "t1", "openai", "alloy", "en", now)
	b := NewBargeIn(s, DefaultTimings())

	if actions := b.HandleSpeechStarted(now, true); len(actions) != 0 {
		t.Fatalf("no active response, nothing to cancel: %+v", actions)
	}
}

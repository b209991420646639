package call

import "time"

// State is the turn state of a call.
type State string

const (
	StateListen     State = "listen"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateCancelling State = "cancelling"
	StateClosed     State = "closed"
)

// EndReason records why a call terminated.
type EndReason string

const (
	EndCompleted        EndReason = "completed"
	EndFarewell         EndReason = "farewell"
	EndWatchdogIdle     EndReason = "watchdog_idle"
	EndWatchdogCeiling  EndReason = "watchdog_ceiling"
	EndError            EndReason = "error"
	EndClientDisconnect EndReason = "client_disconnect"
)

// DropCategory classifies discarded audio frames.
type DropCategory string

const (
	DropEgressOverflow DropCategory = "egress_overflow"
	DropHardMute       DropCategory = "hard_mute"
	DropBackendSlow    DropCategory = "backend_slow"
	DropMalformedChunk DropCategory = "malformed_chunk"
)

// ResponseTurn is one model reply, from request until done or cancelled.
type ResponseTurn struct {
	ID             string
	CreatedAt      time.Time
	TranscriptDone bool
	AudioDone      bool
	Transcript     string
}

type TranscriptLine struct {
	Role string
	Text string
}

// Session holds all mutable per-call state. It is owned by exactly one
// handler goroutine; nothing here is safe for concurrent use.
type Session struct {
	CallID   string
	TenantID string
	Backend  string
	VoiceID  string
	Locale   string

	State        State
	StartedAt    time.Time
	LastActivity time.Time

	ActiveResponseID string
	Turn             *ResponseTurn

	RequestInFlight bool
	RequestedAt     time.Time
	RequestRetried  bool

	PendingHangupResponseID string

	MuteUntil              time.Time
	GreetingProtectedUntil time.Time
	LastTerminalAt         time.Time

	Fingerprint   string
	FingerprintAt time.Time
	Nudged        bool

	Transcript []TranscriptLine

	Dropped      map[DropCategory]int
	DroppedTotal int

	DuplicateUtterances int
}

func NewSession(callID, tenantID, backend, voiceID, locale string, now time.Time) *Session {
	return &Session{
		CallID:       callID,
		TenantID:     tenantID,
		Backend:      backend,
		VoiceID:      voiceID,
		Locale:       locale,
		State:        StateListen,
		StartedAt:    now,
		LastActivity: now,
		Dropped:      make(map[DropCategory]int),
	}
}

// Touch advances the activity clock and re-arms the idle nudge.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
	s.Nudged = false
}

// CountDrop records n discarded frames under one category. The per-category
// counters always sum to DroppedTotal.
func (s *Session) CountDrop(category DropCategory, n int) {
	if n <= 0 {
		return
	}
	s.Dropped[category] += n
	s.DroppedTotal += n
}

// AppendTranscript records one finalized utterance.
func (s *Session) AppendTranscript(role, text string) {
	if text == "" {
		return
	}
	s.Transcript = append(s.Transcript, TranscriptLine{Role: role, Text: text})
}

// Muted reports whether the post-cancellation hard-mute window is open.
func (s *Session) Muted(now time.Time) bool {
	return now.Before(s.MuteUntil)
}

// GreetingProtected reports whether the greeting playback window is open.
func (s *Session) GreetingProtected(now time.Time) bool {
	return now.Before(s.GreetingProtectedUntil)
}

// clearResponse resets all in-flight response state. Called on every
// terminal response event.
func (s *Session) clearResponse(now time.Time) {
	s.ActiveResponseID = ""
	s.Turn = nil
	s.RequestInFlight = false
	s.RequestRetried = false
	s.LastTerminalAt = now
	s.State = StateListen
}

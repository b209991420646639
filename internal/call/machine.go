package call

import (
	"time"

	"github.com/nadavw/callbridge/internal/provider"
	"github.com/nadavw/callbridge/internal/reliability"
)

// Timings bundles every duration the per-call controllers depend on.
type Timings struct {
	DedupWindow     time.Duration
	RecentTerminal  time.Duration
	InFlightMaxWait time.Duration
	AbandonAfter    time.Duration
	BargeInCooldown time.Duration
	HardMuteWindow  time.Duration
	GreetingGrace   time.Duration
	IdleNudgeAfter  time.Duration
	MaxDuration     time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		DedupWindow:     4 * time.Second,
		RecentTerminal:  3 * time.Second,
		InFlightMaxWait: 4 * time.Second,
		AbandonAfter:    8 * time.Second,
		BargeInCooldown: 200 * time.Millisecond,
		HardMuteWindow:  400 * time.Millisecond,
		GreetingGrace:   300 * time.Millisecond,
		IdleNudgeAfter:  20 * time.Second,
		MaxDuration:     5 * time.Minute,
	}
}

// ActionType enumerates the side effects the controllers may request.
type ActionType string

const (
	ActionCreateResponse ActionType = "create_response"
	ActionCancelResponse ActionType = "cancel_response"
	ActionFlushOutbound  ActionType = "flush_outbound"
	ActionNudge          ActionType = "nudge"
	ActionHangup         ActionType = "hangup"
)

// Action is one side effect for the handler to execute. Transitions stay
// pure: the machine mutates only the session and returns the I/O to do.
type Action struct {
	Type       ActionType
	ResponseID string
	Reason     EndReason
}

// Machine drives the turn lifecycle of one call. It enforces at-most-one
// non-terminal response per session and keeps the session unwedged on
// backend errors.
type Machine struct {
	s   *Session
	cfg Timings
}

func NewMachine(s *Session, cfg Timings) *Machine {
	return &Machine{s: s, cfg: cfg}
}

// HandleEvent applies one normalized backend event.
func (m *Machine) HandleEvent(now time.Time, ev provider.Event) []Action {
	s := m.s
	switch ev.Type {
	case provider.EventSpeechStarted:
		s.Touch(now)
		return nil

	case provider.EventTranscriptDelta:
		s.Touch(now)
		if ev.Role == provider.RoleAssistant && s.Turn != nil && m.sameTurn(ev.ResponseID) {
			s.Turn.Transcript += ev.Text
		}
		return nil

	case provider.EventTranscriptDone:
		s.Touch(now)
		if ev.Role == provider.RoleUser {
			return m.handleUserUtterance(now, ev.Text)
		}
		s.AppendTranscript("assistant", ev.Text)
		if s.Turn != nil && m.sameTurn(ev.ResponseID) {
			s.Turn.TranscriptDone = true
			if ev.Text != "" {
				s.Turn.Transcript = ev.Text
			}
		}
		return nil

	case provider.EventAudioDelta:
		s.Touch(now)
		if s.ActiveResponseID == "" && ev.ResponseID != "" {
			s.ActiveResponseID = ev.ResponseID
			if s.Turn == nil {
				s.Turn = &ResponseTurn{ID: ev.ResponseID, CreatedAt: now}
			} else if s.Turn.ID == "" {
				s.Turn.ID = ev.ResponseID
			}
		}
		if s.State == StateProcessing {
			s.State = StateSpeaking
		}
		return nil

	case provider.EventAudioDone:
		s.Touch(now)
		if s.Turn != nil && m.sameTurn(ev.ResponseID) {
			s.Turn.AudioDone = true
		}
		if s.PendingHangupResponseID != "" && s.PendingHangupResponseID == ev.ResponseID {
			return []Action{{Type: ActionHangup, Reason: EndFarewell}}
		}
		return nil

	case provider.EventResponseDone, provider.EventResponseCancelled:
		s.Touch(now)
		pending := s.PendingHangupResponseID != "" &&
			(s.PendingHangupResponseID == ev.ResponseID || m.sameTurn(ev.ResponseID)) &&
			ev.Type == provider.EventResponseDone
		s.clearResponse(now)
		if pending {
			return []Action{{Type: ActionHangup, Reason: EndFarewell}}
		}
		return nil

	case provider.EventError:
		if reliability.IsBenignCancelRace(ev.Code) {
			// The response finished in the race window before our cancel
			// landed; the terminal event resets state on its own.
			return nil
		}
		s.clearResponse(now)
		return nil
	}
	return nil
}

// Tick checks for an abandoned request: one that produced neither audio nor
// a terminal event within the bound. The first abandonment retries once;
// the second gives up and returns the call to listening.
func (m *Machine) Tick(now time.Time) []Action {
	s := m.s
	if !s.RequestInFlight || now.Sub(s.RequestedAt) < m.cfg.AbandonAfter {
		return nil
	}
	if s.State == StateSpeaking {
		// Audio is flowing, the request is not abandoned no matter how old.
		return nil
	}
	retried := s.RequestRetried
	s.clearResponse(now)
	if retried {
		return nil
	}
	s.RequestInFlight = true
	s.RequestRetried = true
	s.RequestedAt = now
	s.State = StateProcessing
	return []Action{{Type: ActionCreateResponse}}
}

// RequestResponse asks for a new model reply unless one is already in
// flight inside the max-wait window.
func (m *Machine) RequestResponse(now time.Time) []Action {
	s := m.s
	if s.RequestInFlight && now.Sub(s.RequestedAt) < m.cfg.InFlightMaxWait {
		return nil
	}
	s.RequestInFlight = true
	s.RequestRetried = false
	s.RequestedAt = now
	s.Turn = &ResponseTurn{CreatedAt: now}
	s.State = StateProcessing
	return []Action{{Type: ActionCreateResponse}}
}

func (m *Machine) handleUserUtterance(now time.Time, text string) []Action {
	s := m.s
	fp := FingerprintUtterance(text)
	duplicate := fp == s.Fingerprint && now.Sub(s.FingerprintAt) <= m.cfg.DedupWindow
	racing := s.RequestInFlight || now.Sub(s.LastTerminalAt) <= m.cfg.RecentTerminal
	if duplicate && racing {
		// Same utterance delivered twice around an active turn; a user
		// repeating themselves after the reply finished still gets through.
		s.DuplicateUtterances++
		return nil
	}
	s.AppendTranscript("user", text)
	s.Fingerprint = fp
	s.FingerprintAt = now
	return m.RequestResponse(now)
}

func (m *Machine) sameTurn(responseID string) bool {
	if responseID == "" {
		return true
	}
	return m.s.Turn != nil && (m.s.Turn.ID == "" || m.s.Turn.ID == responseID)
}

package call

import "time"

// BargeIn cancels an in-flight response when genuine user speech arrives
// mid-reply. It never fires before VAD calibration, inside the protected
// greeting window, or twice for the same response.
type BargeIn struct {
	s   *Session
	cfg Timings

	lastCancelAt time.Time
	cancelled    map[string]bool
}

func NewBargeIn(s *Session, cfg Timings) *BargeIn {
	return &BargeIn{s: s, cfg: cfg, cancelled: make(map[string]bool)}
}

// HandleSpeechStarted evaluates one speech-start signal. calibrated is the
// VAD's own readiness; a signal before calibration is noise-floor
// measurement, not speech.
func (b *BargeIn) HandleSpeechStarted(now time.Time, calibrated bool) []Action {
	s := b.s
	if !calibrated {
		return nil
	}
	if s.GreetingProtected(now) {
		return nil
	}
	if s.ActiveResponseID == "" {
		return nil
	}
	if !b.lastCancelAt.IsZero() && now.Sub(b.lastCancelAt) < b.cfg.BargeInCooldown {
		return nil
	}
	if b.cancelled[s.ActiveResponseID] {
		return nil
	}

	id := s.ActiveResponseID
	b.cancelled[id] = true
	b.lastCancelAt = now

	s.State = StateCancelling
	s.MuteUntil = now.Add(b.cfg.HardMuteWindow)
	// The user is still engaged; a farewell from the interrupted reply no
	// longer stands.
	s.PendingHangupResponseID = ""

	return []Action{
		{Type: ActionCancelResponse, ResponseID: id},
		{Type: ActionFlushOutbound},
	}
}

// Cancelled reports whether a cancel was already issued for a response id.
func (b *BargeIn) Cancelled(responseID string) bool {
	return b.cancelled[responseID]
}

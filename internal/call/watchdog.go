package call

import "time"

// Watchdog ends calls that have gone quiet. Idle beyond the nudge threshold
// produces one re-prompt per idle period; the absolute ceiling hangs up
// unconditionally.
type Watchdog struct {
	s   *Session
	cfg Timings
}

func NewWatchdog(s *Session, cfg Timings) *Watchdog {
	return &Watchdog{s: s, cfg: cfg}
}

// Tick evaluates the session clocks. Call it on a coarse timer.
func (w *Watchdog) Tick(now time.Time) []Action {
	s := w.s

	if w.cfg.MaxDuration > 0 && now.Sub(s.StartedAt) >= w.cfg.MaxDuration {
		return []Action{{Type: ActionHangup, Reason: EndWatchdogCeiling}}
	}

	// A response that is streaming audio or still pending is activity by
	// definition; the idle clock only runs while truly listening.
	if s.ActiveResponseID != "" || s.RequestInFlight {
		return nil
	}
	if now.Sub(s.LastActivity) < w.cfg.IdleNudgeAfter {
		return nil
	}
	if s.Nudged {
		return nil
	}
	s.Nudged = true
	return []Action{{Type: ActionNudge}}
}

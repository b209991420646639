package call

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadavw/callbridge/internal/audio"
	"github.com/nadavw/callbridge/internal/greeting"
	"github.com/nadavw/callbridge/internal/notify"
	"github.com/nadavw/callbridge/internal/observability"
	"github.com/nadavw/callbridge/internal/outcome"
	"github.com/nadavw/callbridge/internal/phrases"
	"github.com/nadavw/callbridge/internal/provider"
	"github.com/nadavw/callbridge/internal/telephony"
	"github.com/nadavw/callbridge/internal/vad"
)

const (
	frameInterval    = 20 * time.Millisecond
	watchdogInterval = time.Second
)

// DialFunc opens a backend session for one call.
type DialFunc func(ctx context.Context, start telephony.StartMessage) (provider.Session, error)

// Handler runs the event loop for telephone calls. One Handler serves all
// calls; all per-call state lives in the Session created per Run.
type Handler struct {
	Timings        Timings
	EgressCapacity int
	Greetings      *greeting.Cache
	Phrases        phrases.Table
	Metrics        *observability.Metrics
	Outcomes       outcome.Store
	Notifier       notify.Publisher
	TopicPrefix    string
	RecordingsDir  string
	Dial           DialFunc
}

// Run bridges one call between the telephony socket and the AI backend.
// inbound carries parsed wire messages from the media socket; messages
// written to outbound are marshalled by the socket's writer goroutine.
// Run returns when the call is over; every exit path, including panic,
// releases the backend session and produces an outcome record.
func (h *Handler) Run(ctx context.Context, start telephony.StartMessage, handle *Handle, inbound <-chan any, outbound chan<- any) {
	now := time.Now().UTC()
	s := NewSession(start.CallID, start.TenantID, start.Backend, start.VoiceID, start.Locale, now)
	machine := NewMachine(s, h.Timings)
	barge := NewBargeIn(s, h.Timings)
	watchdog := NewWatchdog(s, h.Timings)
	detector := NewHangupDetector(h.Phrases)
	voice := vad.New(vad.Config{})

	backendRate := provider.SampleRateFor(start.Backend)
	ingress := audio.NewInboundPipeline(backendRate)
	synth := audio.NewOutboundPipeline(backendRate)
	egress := telephony.NewEgressQueue(h.EgressCapacity)
	rec := newRecorder()

	endReason := EndCompleted
	h.Metrics.ActiveCalls.Inc()
	defer func() {
		if r := recover(); r != nil {
			endReason = EndError
		}
		h.finalize(s, rec, endReason)
	}()

	sess, err := h.Dial(ctx, start)
	if err != nil {
		endReason = EndError
		return
	}
	// sess is reassigned on reconnect; the closure releases whichever
	// session is current when Run returns.
	defer func() { _ = sess.Close() }()

	// pendingInstructions rides along with the next create-response action:
	// the greeting text on a cache miss, or the nudge prompt.
	var pendingInstructions string
	var greetingKey greeting.Key
	var greetingCapture [][]byte
	capturingGreeting := false

	// apply executes machine/controller side effects. Returns true when
	// the call must end.
	var apply func(actions []Action) bool
	apply = func(actions []Action) bool {
		for _, a := range actions {
			switch a.Type {
			case ActionCreateResponse:
				instr := pendingInstructions
				pendingInstructions = ""
				if err := sess.CreateResponse(ctx, instr); err != nil {
					s.clearResponse(time.Now().UTC())
				}
			case ActionCancelResponse:
				h.Metrics.BargeIns.Inc()
				h.Metrics.ObserveTurnIndicator("barge_in")
				_ = sess.CancelResponse(ctx, a.ResponseID)
			case ActionFlushOutbound:
				s.CountDrop(DropHardMute, egress.Flush())
				synth.Flush()
				select {
				case outbound <- telephony.ClearMessage{Event: telephony.EventClear, CallID: s.CallID}:
				default:
				}
			case ActionNudge:
				h.Metrics.Nudges.Inc()
				pendingInstructions = h.Phrases.ForLocale(s.Locale).Nudge
				if apply(machine.RequestResponse(time.Now().UTC())) {
					return true
				}
			case ActionHangup:
				endReason = a.Reason
				select {
				case outbound <- telephony.StopMessage{Event: telephony.EventStop, CallID: s.CallID, Reason: string(a.Reason)}:
				default:
				}
				return true
			}
		}
		return false
	}

	// Greeting: a cache hit plays immediately with zero synthesis latency;
	// a miss asks the backend to speak it and captures the frames for next
	// time.
	if start.GreetingText != "" {
		greetingKey = greeting.NewKey(start.TenantID, start.Locale, start.VoiceID, start.GreetingText)
		if frames, ok := h.Greetings.Get(greetingKey); ok {
			h.Metrics.GreetingCacheHits.WithLabelValues("hit").Inc()
			for _, f := range frames {
				s.CountDrop(DropEgressOverflow, egress.Push(f))
			}
			playback := time.Duration(len(frames)) * frameInterval
			s.GreetingProtectedUntil = now.Add(playback + h.Timings.GreetingGrace)
		} else {
			h.Metrics.GreetingCacheHits.WithLabelValues("miss").Inc()
			capturingGreeting = true
			pendingInstructions = fmt.Sprintf("Greet the caller by saying exactly: %q. Do not add anything else.", start.GreetingText)
			if apply(machine.RequestResponse(now)) {
				return
			}
		}
	}

	egressTicker := time.NewTicker(frameInterval)
	defer egressTicker.Stop()
	timerTicker := time.NewTicker(watchdogInterval)
	defer timerTicker.Stop()

	events := sess.Events()
	redialed := false
	var seq int

	for {
		select {
		case <-ctx.Done():
			endReason = EndClientDisconnect
			return

		case reason, ok := <-handle.Stopped():
			if ok && reason != "" {
				endReason = reason
			} else {
				endReason = EndClientDisconnect
			}
			select {
			case outbound <- telephony.StopMessage{Event: telephony.EventStop, CallID: s.CallID, Reason: string(endReason)}:
			default:
			}
			return

		case msg, ok := <-inbound:
			if !ok {
				endReason = EndClientDisconnect
				return
			}
			switch m := msg.(type) {
			case telephony.MediaMessage:
				payload, err := m.DecodePayload()
				if err != nil || len(payload) != audio.MulawFrameBytes {
					s.CountDrop(DropMalformedChunk, 1)
					continue
				}
				samples := audio.DecodeMulaw(payload)
				rec.AddInbound(samples)
				_, started, _ := voice.ProcessFrame(samples)
				if started {
					s.Touch(time.Now().UTC())
					if apply(barge.HandleSpeechStarted(time.Now().UTC(), voice.Calibrated())) {
						return
					}
				}
				inFrames := ingress.Ingest(payload)
				for i, frame := range inFrames {
					if err := sess.SendAudio(ctx, frame.Data); err != nil {
						s.CountDrop(DropBackendSlow, len(inFrames)-i)
						break
					}
				}
			case telephony.StopMessage:
				endReason = EndClientDisconnect
				return
			case telephony.MarkMessage:
				// Playback acknowledgement; nothing to do.
			}

		case ev, ok := <-events:
			if !ok {
				// Backend socket died. One reconnect attempt, then give up.
				if redialed {
					endReason = EndError
					return
				}
				redialed = true
				sess.Close()
				time.Sleep(200 * time.Millisecond)
				next, err := h.Dial(ctx, start)
				if err != nil {
					endReason = EndError
					return
				}
				sess = next
				events = sess.Events()
				s.clearResponse(time.Now().UTC())
				continue
			}

			evNow := time.Now().UTC()
			h.Metrics.ProviderEvents.WithLabelValues(s.Backend, string(ev.Type)).Inc()

			if ev.Type == provider.EventError {
				h.Metrics.ProviderErrors.WithLabelValues(s.Backend, ev.Code).Inc()
			}
			if ev.Type == provider.EventSpeechStarted {
				if apply(barge.HandleSpeechStarted(evNow, voice.Calibrated())) {
					return
				}
			}

			stateBefore := s.State
			if apply(machine.HandleEvent(evNow, ev)) {
				return
			}
			if stateBefore == StateProcessing && s.State == StateSpeaking && s.Turn != nil {
				h.Metrics.ObserveFirstAudioLatency(evNow.Sub(s.Turn.CreatedAt))
			}

			switch ev.Type {
			case provider.EventAudioDelta:
				frames, err := synth.Emit(ev.Audio)
				if err != nil {
					s.CountDrop(DropMalformedChunk, 1)
					continue
				}
				if s.Muted(evNow) || barge.Cancelled(ev.ResponseID) {
					s.CountDrop(DropHardMute, len(frames))
					continue
				}
				for _, frame := range frames {
					s.CountDrop(DropEgressOverflow, egress.Push(frame.Data))
					if capturingGreeting {
						greetingCapture = append(greetingCapture, frame.Data)
					}
				}
				if capturingGreeting && len(frames) > 0 {
					// The live greeting is protected as long as it is
					// still queued for playback.
					remaining := time.Duration(egress.Len()) * frameInterval
					s.GreetingProtectedUntil = evNow.Add(remaining + h.Timings.GreetingGrace)
				}
			case provider.EventTranscriptDone:
				if ev.Role == provider.RoleAssistant && detector.Match(s.Locale, ev.Text) {
					id := ev.ResponseID
					if id == "" {
						id = s.ActiveResponseID
					}
					if id != "" {
						s.PendingHangupResponseID = id
					}
				}
			case provider.EventResponseDone:
				if capturingGreeting {
					if len(greetingCapture) > 0 && !barge.Cancelled(ev.ResponseID) {
						h.Greetings.Put(greetingKey, greetingCapture)
					}
					capturingGreeting = false
					greetingCapture = nil
				}
			case provider.EventResponseCancelled:
				if capturingGreeting {
					// An interrupted greeting must not poison the cache.
					capturingGreeting = false
					greetingCapture = nil
				}
			}

		case <-egressTicker.C:
			frame, ok := egress.Pop()
			if !ok {
				continue
			}
			seq++
			select {
			case outbound <- telephony.EncodeMediaMessage(s.CallID, seq, frame):
				rec.AddOutbound(audio.DecodeMulaw(frame))
			default:
				s.CountDrop(DropEgressOverflow, 1)
			}

		case tick := <-timerTicker.C:
			nowt := tick.UTC()
			if apply(machine.Tick(nowt)) {
				return
			}
			if apply(watchdog.Tick(nowt)) {
				return
			}
		}
	}
}

// finalize closes the books on a call: metrics, recording, outcome record,
// and the call-ended notification.
func (h *Handler) finalize(s *Session, rec *recorder, reason EndReason) {
	s.State = StateClosed
	h.Metrics.ActiveCalls.Dec()
	h.Metrics.CallsEnded.WithLabelValues(string(reason)).Inc()
	for category, n := range s.Dropped {
		h.Metrics.DroppedFrames.WithLabelValues(string(category)).Add(float64(n))
	}
	for i := 0; i < s.DuplicateUtterances; i++ {
		h.Metrics.DuplicateDrops.Inc()
	}

	recordingRef := ""
	if h.RecordingsDir != "" && !rec.Empty() {
		path := filepath.Join(h.RecordingsDir, s.CallID+".wav")
		pcm := audio.PCM16ToBytes(rec.Mix())
		if err := audio.WriteWAVPCM16LEFile(path, pcm, audio.TelephonyRate); err == nil {
			recordingRef = path
		}
	}

	record := outcome.Record{
		CallID:       s.CallID,
		TenantID:     s.TenantID,
		Backend:      s.Backend,
		Locale:       s.Locale,
		Transcript:   renderTranscript(s.Transcript),
		RecordingRef: recordingRef,
		Duration:     time.Since(s.StartedAt),
		EndReason:    string(reason),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Outcomes.Save(ctx, record)
	_ = notify.CallEnded(ctx, h.Notifier, h.TopicPrefix, record)
}

func renderTranscript(lines []TranscriptLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.Role)
		b.WriteString(": ")
		b.WriteString(line.Text)
	}
	return b.String()
}

package call

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nadavw/callbridge/internal/greeting"
	"github.com/nadavw/callbridge/internal/notify"
	"github.com/nadavw/callbridge/internal/observability"
	"github.com/nadavw/callbridge/internal/outcome"
	"github.com/nadavw/callbridge/internal/phrases"
	"github.com/nadavw/callbridge/internal/provider"
	"github.com/nadavw/callbridge/internal/telephony"
)

type handlerHarness struct {
	handler  *Handler
	mock     *provider.MockSession
	store    *outcome.InMemoryStore
	notifier *notify.MockPublisher
	inbound  chan any
	outbound chan any
	done     chan struct{}
}

func newHandlerHarness(t *testing.T, namespace string) *handlerHarness {
	t.Helper()
	table, err := phrases.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	mock := provider.NewMockSession()
	store := outcome.NewInMemoryStore()
	notifier := notify.NewMockPublisher()
	h := &Handler{
		Timings:        DefaultTimings(),
		EgressCapacity: 50,
		Greetings:      greeting.NewCache(16),
		Phrases:        table,
		Metrics:        observability.NewMetrics(namespace),
		Outcomes:       store,
		Notifier:       notifier,
		TopicPrefix:    "callbridge",
		Dial: func(context.Context, telephony.StartMessage) (provider.Session, error) {
			return mock, nil
		},
	}
	return &handlerHarness{
		handler:  h,
		mock:     mock,
		store:    store,
		notifier: notifier,
		inbound:  make(chan any, 64),
		outbound: make(chan any, 256),
		done:     make(chan struct{}),
	}
}

func (hh *handlerHarness) run(t *testing.T, start telephony.StartMessage) *Handle {
	t.Helper()
	handle := NewHandle(start.CallID, start.TenantID, start.Backend, start.Locale, time.Now())
	go func() {
		hh.handler.Run(context.Background(), start, handle, hh.inbound, hh.outbound)
		close(hh.done)
	}()
	return handle
}

func (hh *handlerHarness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-hh.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler did not finish")
	}
}

func (hh *handlerHarness) lastOutcome(t *testing.T, tenantID string) outcome.Record {
	t.Helper()
	records, err := hh.store.Recent(context.Background(), tenantID, 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("Recent() = %v records, err %v", len(records), err)
	}
	return records[0]
}

func TestHandlerClientDisconnect(t *testing.T) {
	hh := newHandlerHarness(t, "handler_disconnect_test")
	hh.run(t, telephony.StartMessage{Event: telephony.EventStart, CallID: "c1", TenantID: "t1", Backend: "mock", Locale: "en"})

	close(hh.inbound)
	hh.waitDone(t)

	rec := hh.lastOutcome(t, "t1")
	if rec.EndReason != string(EndClientDisconnect) {
		t.Fatalf("EndReason = %q, want client_disconnect", rec.EndReason)
	}
	msgs := hh.notifier.Captured()
	if len(msgs) != 1 || msgs[0].Topic != "callbridge/calls/t1/ended" {
		t.Fatalf("notification = %+v", msgs)
	}
}

func TestHandlerGreetingCacheHitPlaysImmediately(t *testing.T) {
	hh := newHandlerHarness(t, "handler_greeting_hit_test")
	frame := make([]byte, 160)
	key := greeting.NewKey("t1", "en", "alloy", "Welcome!")
	hh.handler.Greetings.Put(key, [][]byte{frame, frame, frame})

	hh.run(t, telephony.StartMessage{
		Event: telephony.EventStart, CallID: "c1", TenantID: "t1",
		Backend: "mock", VoiceID: "alloy", Locale: "en", GreetingText: "Welcome!",
	})

	deadline := time.After(2 * time.Second)
	got := 0
	for got < 3 {
		select {
		case msg := <-hh.outbound:
			if m, ok := msg.(telephony.MediaMessage); ok {
				if m.CallID != "c1" {
					t.Fatalf("media for wrong call: %+v", m)
				}
				got++
			}
		case <-deadline:
			t.Fatalf("greeting frames not played, got %d", got)
		}
	}
	// No synthesis request was needed.
	if hh.mock.CreatedCount() != 0 {
		t.Fatalf("cache hit must not create a response, got %d", hh.mock.CreatedCount())
	}

	close(hh.inbound)
	hh.waitDone(t)
}

func TestHandlerGreetingMissCapturesIntoCache(t *testing.T) {
	hh := newHandlerHarness(t, "handler_greeting_miss_test")
	hh.run(t, telephony.StartMessage{
		Event: telephony.EventStart, CallID: "c1", TenantID: "t1",
		Backend: "mock", VoiceID: "alloy", Locale: "en", GreetingText: "Welcome!",
	})

	waitFor(t, func() bool { return hh.mock.CreatedCount() == 1 })

	// 960 samples at 24kHz resample down to 320 telephony samples: 2 frames.
	pcm := make([]byte, 1920)
	hh.mock.Emit(provider.Event{Type: provider.EventAudioDelta, ResponseID: "r1", Audio: pcm})
	hh.mock.Emit(provider.Event{Type: provider.EventResponseDone, ResponseID: "r1"})

	key := greeting.NewKey("t1", "en", "alloy", "Welcome!")
	waitFor(t, func() bool {
		_, ok := hh.handler.Greetings.Get(key)
		return ok
	})

	close(hh.inbound)
	hh.waitDone(t)
}

func TestHandlerFarewellHangsUpAfterAudio(t *testing.T) {
	hh := newHandlerHarness(t, "handler_farewell_test")
	hh.run(t, telephony.StartMessage{
		Event: telephony.EventStart, CallID: "c1", TenantID: "t1",
		Backend: "mock", Locale: "en",
	})

	hh.mock.Emit(provider.Event{Type: provider.EventTranscriptDone, Role: provider.RoleUser, Text: "thanks, that is all"})
	waitFor(t, func() bool { return hh.mock.CreatedCount() == 1 })

	pcm := make([]byte, 1920)
	hh.mock.Emit(provider.Event{Type: provider.EventAudioDelta, ResponseID: "r1", Audio: pcm})
	hh.mock.Emit(provider.Event{Type: provider.EventTranscriptDone, Role: provider.RoleAssistant, ResponseID: "r1", Text: "You're welcome, goodbye!"})
	hh.mock.Emit(provider.Event{Type: provider.EventAudioDone, ResponseID: "r1"})

	hh.waitDone(t)

	rec := hh.lastOutcome(t, "t1")
	if rec.EndReason != string(EndFarewell) {
		t.Fatalf("EndReason = %q, want farewell", rec.EndReason)
	}
	if !strings.Contains(rec.Transcript, "user: thanks, that is all") ||
		!strings.Contains(rec.Transcript, "assistant: You're welcome, goodbye!") {
		t.Fatalf("transcript missing lines:\n%s", rec.Transcript)
	}
}

func TestHandlerClosesRedialedSession(t *testing.T) {
	table, err := phrases.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	first := provider.NewMockSession()
	second := provider.NewMockSession()
	var mu sync.Mutex
	dials := 0
	h := &Handler{
		Timings:        DefaultTimings(),
		EgressCapacity: 50,
		Greetings:      greeting.NewCache(16),
		Phrases:        table,
		Metrics:        observability.NewMetrics("handler_redial_test"),
		Outcomes:       outcome.NewInMemoryStore(),
		Notifier:       notify.NewMockPublisher(),
		TopicPrefix:    "callbridge",
		Dial: func(context.Context, telephony.StartMessage) (provider.Session, error) {
			mu.Lock()
			defer mu.Unlock()
			dials++
			if dials == 1 {
				return first, nil
			}
			return second, nil
		},
	}

	inbound := make(chan any, 8)
	done := make(chan struct{})
	handle := NewHandle("c1", "t1", "mock", "en", time.Now())
	go func() {
		h.Run(context.Background(), telephony.StartMessage{Event: telephony.EventStart, CallID: "c1", TenantID: "t1", Backend: "mock", Locale: "en"}, handle, inbound, make(chan any, 256))
		close(done)
	}()

	// Kill the first backend stream to force the reconnect.
	first.Close()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 2
	})

	close(inbound)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler did not finish")
	}

	if err := second.SendAudio(context.Background(), make([]byte, 960)); !errors.Is(err, provider.ErrSessionClosed) {
		t.Fatalf("SendAudio after the call ended = %v, want ErrSessionClosed", err)
	}
}

// saturatedSession refuses every audio write, like a backend whose send
// queue is full.
type saturatedSession struct {
	*provider.MockSession
}

func (s *saturatedSession) SendAudio(context.Context, []byte) error {
	return errors.New("backend send queue full")
}

func TestHandlerCountsFramesDroppedOnBackendPressure(t *testing.T) {
	table, err := phrases.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	metrics := observability.NewMetrics("handler_backend_slow_test")
	h := &Handler{
		Timings:        DefaultTimings(),
		EgressCapacity: 50,
		Greetings:      greeting.NewCache(16),
		Phrases:        table,
		Metrics:        metrics,
		Outcomes:       outcome.NewInMemoryStore(),
		Notifier:       notify.NewMockPublisher(),
		TopicPrefix:    "callbridge",
		Dial: func(context.Context, telephony.StartMessage) (provider.Session, error) {
			return &saturatedSession{MockSession: provider.NewMockSession()}, nil
		},
	}

	inbound := make(chan any, 8)
	done := make(chan struct{})
	handle := NewHandle("c1", "t1", "mock", "en", time.Now())
	go func() {
		h.Run(context.Background(), telephony.StartMessage{Event: telephony.EventStart, CallID: "c1", TenantID: "t1", Backend: "mock", Locale: "en"}, handle, inbound, make(chan any, 256))
		close(done)
	}()

	inbound <- telephony.EncodeMediaMessage("c1", 1, make([]byte, 160))
	inbound <- telephony.EncodeMediaMessage("c1", 2, make([]byte, 160))
	close(inbound)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler did not finish")
	}

	dropped := testutil.ToFloat64(metrics.DroppedFrames.WithLabelValues(string(DropBackendSlow)))
	if dropped != 2 {
		t.Fatalf("backend_slow drops = %v, want 2", dropped)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

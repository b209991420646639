package call

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("call not found")

// Handle is the cross-goroutine view of a live call. The handler goroutine
// owns the Session; everyone else (admin API, janitor) only sees the handle
// and may ask the call to stop.
type Handle struct {
	CallID    string
	TenantID  string
	Backend   string
	Locale    string
	StartedAt time.Time

	stopOnce sync.Once
	stop     chan EndReason
}

func NewHandle(callID, tenantID, backend, locale string, now time.Time) *Handle {
	return &Handle{
		CallID:    callID,
		TenantID:  tenantID,
		Backend:   backend,
		Locale:    locale,
		StartedAt: now,
		stop:      make(chan EndReason, 1),
	}
}

// Stop asks the owning handler to end the call with the given reason.
// Safe to call from any goroutine; only the first call wins.
func (h *Handle) Stop(reason EndReason) {
	h.stopOnce.Do(func() {
		h.stop <- reason
		close(h.stop)
	})
}

// Stopped is selected on by the handler loop.
func (h *Handle) Stopped() <-chan EndReason {
	return h.stop
}

// Summary is the admin-facing snapshot of one live call.
type Summary struct {
	CallID    string    `json:"call_id"`
	TenantID  string    `json:"tenant_id"`
	Backend   string    `json:"backend"`
	Locale    string    `json:"locale"`
	StartedAt time.Time `json:"started_at"`
}

// Registry tracks live calls across handler goroutines.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*Handle)}
}

func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calls[h.CallID]; exists {
		return errors.New("call id already registered")
	}
	r.calls[h.CallID] = h
	return nil
}

func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callID)
}

func (r *Registry) Get(callID string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.calls))
	for _, h := range r.calls {
		out = append(out, Summary{
			CallID:    h.CallID,
			TenantID:  h.TenantID,
			Backend:   h.Backend,
			Locale:    h.Locale,
			StartedAt: h.StartedAt,
		})
	}
	return out
}

// StartJanitor stops calls that outlive the absolute ceiling even if their
// handler's own timer wedged. Returns after ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxDuration time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.RLock()
			var expired []*Handle
			for _, h := range r.calls {
				if maxDuration > 0 && now.Sub(h.StartedAt) >= maxDuration {
					expired = append(expired, h)
				}
			}
			r.mu.RUnlock()
			for _, h := range expired {
				h.Stop(EndWatchdogCeiling)
			}
		}
	}
}

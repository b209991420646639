package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nadavw/callbridge/internal/call"
	"github.com/nadavw/callbridge/internal/config"
	"github.com/nadavw/callbridge/internal/greeting"
	"github.com/nadavw/callbridge/internal/observability"
	"github.com/nadavw/callbridge/internal/telephony"
)

// Server exposes the telephony media socket and the admin/ops surface.
type Server struct {
	cfg       config.Config
	registry  *call.Registry
	handler   *call.Handler
	greetings *greeting.Cache
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, registry *call.Registry, handler *call.Handler, greetings *greeting.Cache, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		handler:   handler,
		greetings: greetings,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Telephony gateways are not browsers and usually omit
				// Origin; browser connections must match our host unless
				// explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/calls/media", s.handleMediaWS)
	r.Get("/v1/calls", s.handleListCalls)
	r.Post("/v1/calls/{id}/hangup", s.handleHangup)
	r.Get("/v1/greetings/stats", s.handleGreetingStats)
	r.Post("/v1/greetings/invalidate/{tenant}", s.handleInvalidateGreetings)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": s.cfg.Backend,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"backend":      s.cfg.Backend,
		"active_calls": s.registry.ActiveCount(),
	})
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"calls": s.registry.List(),
	})
}

func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}
	h, err := s.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	h.Stop(call.EndCompleted)
	respondJSON(w, http.StatusOK, map[string]any{"call_id": id, "status": "ending"})
}

func (s *Server) handleGreetingStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.greetings.Stats())
}

func (s *Server) handleInvalidateGreetings(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(chi.URLParam(r, "tenant"))
	if tenant == "" {
		respondError(w, http.StatusBadRequest, "invalid_tenant", "missing tenant id")
		return
	}
	removed := s.greetings.InvalidateTenant(tenant)
	respondJSON(w, http.StatusOK, map[string]any{"tenant_id": tenant, "removed": removed})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.TurnSnapshot())
}

// handleMediaWS serves one telephony media stream. The first message must
// be a start; media flows until a stop, a hangup, or the socket closing.
func (s *Server) handleMediaWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	start, ok := s.readStart(conn)
	if !ok {
		return
	}
	if start.CallID == "" {
		start.CallID = uuid.NewString()
	}
	if start.Backend == "" {
		start.Backend = s.cfg.Backend
	}
	if start.VoiceID == "" {
		start.VoiceID = s.cfg.DefaultVoice
	}
	if start.Locale == "" {
		start.Locale = s.cfg.DefaultLocale
	}

	handle := call.NewHandle(start.CallID, start.TenantID, start.Backend, start.Locale, time.Now().UTC())
	if err := s.registry.Register(handle); err != nil {
		_ = conn.WriteJSON(map[string]any{"event": "error", "code": "duplicate_call_id"})
		return
	}
	defer s.registry.Remove(start.CallID)

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.handler.Run(ctx, start, handle, inbound, outbound)
	}()

	// A server-side hangup (farewell, watchdog, admin) must tear the
	// socket down itself; the gateway may never react to the stop message.
	go func() {
		<-runDone
		cancel()
		_ = conn.Close()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := telephony.ParseInbound(data)
		if err != nil {
			// Malformed frames are dropped, never fatal for the stream.
			continue
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

// readStart waits for the opening start message on a fresh media socket.
func (s *Server) readStart(conn *websocket.Conn) (telephony.StartMessage, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return telephony.StartMessage{}, false
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := telephony.ParseInbound(data)
		if err != nil {
			_ = conn.WriteJSON(map[string]any{"event": "error", "code": "invalid_message", "detail": err.Error()})
			return telephony.StartMessage{}, false
		}
		start, ok := parsed.(telephony.StartMessage)
		if !ok {
			_ = conn.WriteJSON(map[string]any{"event": "error", "code": "expected_start"})
			return telephony.StartMessage{}, false
		}
		return start, true
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

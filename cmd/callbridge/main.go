package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nadavw/callbridge/internal/call"
	"github.com/nadavw/callbridge/internal/config"
	"github.com/nadavw/callbridge/internal/greeting"
	"github.com/nadavw/callbridge/internal/httpapi"
	"github.com/nadavw/callbridge/internal/notify"
	"github.com/nadavw/callbridge/internal/observability"
	"github.com/nadavw/callbridge/internal/outcome"
	"github.com/nadavw/callbridge/internal/phrases"
	"github.com/nadavw/callbridge/internal/provider"
	"github.com/nadavw/callbridge/internal/telephony"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	outcomes, err := outcome.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("outcome store init failed: %v", err)
	}
	defer outcomes.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("outcome store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("outcome store: postgres")
	}

	var notifier notify.Publisher
	if cfg.MQTTBroker != "" {
		p, err := notify.NewMQTTPublisher(notify.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			QoS:      1,
		})
		if err != nil {
			log.Fatalf("mqtt publisher init failed: %v", err)
		}
		defer p.Close()
		notifier = p
		log.Printf("notifications: mqtt broker %s", cfg.MQTTBroker)
	} else {
		log.Printf("notifications: disabled (MQTT_BROKER not set)")
	}

	phraseTable, err := phrases.Load(cfg.PhrasesPath)
	if err != nil {
		log.Fatalf("phrase table load failed: %v", err)
	}

	backend := resolveBackend(cfg)
	cfg.Backend = backend
	log.Printf("ai backend: %s", backend)

	if cfg.RecordingsDir != "" {
		if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
			log.Fatalf("recordings dir: %v", err)
		}
		log.Printf("recordings: %s", cfg.RecordingsDir)
	}

	greetings := greeting.NewCache(cfg.GreetingCacheCapacity)
	registry := call.NewRegistry()

	timings := call.DefaultTimings()
	timings.IdleNudgeAfter = cfg.IdleNudgeAfter
	timings.MaxDuration = cfg.MaxCallDuration
	timings.BargeInCooldown = cfg.BargeInCooldown
	timings.HardMuteWindow = cfg.HardMuteWindow

	handler := &call.Handler{
		Timings:        timings,
		EgressCapacity: cfg.EgressQueueCapacity,
		Greetings:      greetings,
		Phrases:        phraseTable,
		Metrics:        metrics,
		Outcomes:       outcomes,
		Notifier:       notifier,
		TopicPrefix:    cfg.MQTTTopicPrefix,
		RecordingsDir:  cfg.RecordingsDir,
		Dial: func(ctx context.Context, start telephony.StartMessage) (provider.Session, error) {
			return provider.New(ctx, sessionConfig(cfg, start))
		},
	}

	api := httpapi.New(cfg, registry, handler, greetings, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go registry.StartJanitor(runCtx, 30*time.Second, cfg.MaxCallDuration+30*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// resolveBackend picks the AI backend: an explicit choice is honored, auto
// takes the first backend with credentials and falls back to mock.
func resolveBackend(cfg config.Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("BACKEND=openai but OPENAI_API_KEY is not set")
		}
		return "openai"
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatalf("BACKEND=gemini but GEMINI_API_KEY is not set")
		}
		return "gemini"
	case "mock":
		return "mock"
	default:
		if cfg.OpenAIAPIKey != "" {
			return "openai"
		}
		if cfg.GeminiAPIKey != "" {
			return "gemini"
		}
		log.Printf("no backend credentials found, using mock backend")
		return "mock"
	}
}

// sessionConfig builds the per-call backend session config, letting the
// start message override tenant-level defaults.
func sessionConfig(cfg config.Config, start telephony.StartMessage) provider.Config {
	backend := start.Backend
	if backend == "" {
		backend = cfg.Backend
	}
	pc := provider.Config{
		Backend:      backend,
		Model:        cfg.OpenAIRealtimeModel,
		APIKey:       cfg.OpenAIAPIKey,
		URL:          cfg.OpenAIRealtimeURL,
		Voice:        start.VoiceID,
		SystemPrompt: cfg.SystemPrompt,
	}
	if strings.EqualFold(backend, "gemini") {
		pc.Model = cfg.GeminiLiveModel
		pc.APIKey = cfg.GeminiAPIKey
		pc.URL = cfg.GeminiLiveURL
	}
	if start.SystemPrompt != "" {
		pc.SystemPrompt = start.SystemPrompt
	}
	if pc.Voice == "" {
		pc.Voice = cfg.DefaultVoice
	}
	return pc
}

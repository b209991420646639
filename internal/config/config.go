package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call bridge service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Backend selects the conversational AI endpoint: auto | openai |
	// gemini | mock. auto picks the first backend with credentials.
	Backend string

	OpenAIAPIKey        string
	OpenAIRealtimeModel string
	OpenAIRealtimeURL   string

	GeminiAPIKey    string
	GeminiLiveModel string
	GeminiLiveURL   string

	DefaultVoice  string
	DefaultLocale string
	SystemPrompt  string

	IdleNudgeAfter  time.Duration
	MaxCallDuration time.Duration
	BargeInCooldown time.Duration
	HardMuteWindow  time.Duration

	GreetingCacheCapacity int
	EgressQueueCapacity   int

	RecordingsDir string
	PhrasesPath   string

	DatabaseURL string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "callbridge"),
		AllowAnyOrigin:   false,
		Backend:          envOrDefault("BACKEND", "auto"),

		OpenAIAPIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIRealtimeModel: envOrDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		OpenAIRealtimeURL:   stringsTrimSpace("OPENAI_REALTIME_URL"),

		GeminiAPIKey:    stringsTrimSpace("GEMINI_API_KEY"),
		GeminiLiveModel: envOrDefault("GEMINI_LIVE_MODEL", "gemini-2.0-flash-live-001"),
		GeminiLiveURL:   stringsTrimSpace("GEMINI_LIVE_URL"),

		DefaultVoice:  envOrDefault("APP_DEFAULT_VOICE", "alloy"),
		DefaultLocale: envOrDefault("APP_DEFAULT_LOCALE", "en"),
		SystemPrompt:  envOrDefault("APP_SYSTEM_PROMPT", "You are a friendly phone receptionist. Keep replies short and conversational."),

		ShutdownTimeout: 15 * time.Second,
		IdleNudgeAfter:  20 * time.Second,
		MaxCallDuration: 5 * time.Minute,
		BargeInCooldown: 200 * time.Millisecond,
		HardMuteWindow:  400 * time.Millisecond,

		GreetingCacheCapacity: 256,
		EgressQueueCapacity:   200,

		RecordingsDir: envOrDefault("RECORDINGS_DIR", ""),
		PhrasesPath:   stringsTrimSpace("PHRASES_PATH"),

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		MQTTBroker:      stringsTrimSpace("MQTT_BROKER"),
		MQTTClientID:    envOrDefault("MQTT_CLIENT_ID", "callbridge"),
		MQTTTopicPrefix: envOrDefault("MQTT_TOPIC_PREFIX", "callbridge"),
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.IdleNudgeAfter, err = durationFromEnv("CALL_IDLE_NUDGE_AFTER", cfg.IdleNudgeAfter)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxCallDuration, err = durationFromEnv("CALL_MAX_DURATION", cfg.MaxCallDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.BargeInCooldown, err = durationFromEnv("BARGE_IN_COOLDOWN", cfg.BargeInCooldown)
	if err != nil {
		return Config{}, err
	}
	cfg.HardMuteWindow, err = durationFromEnv("BARGE_IN_MUTE_WINDOW", cfg.HardMuteWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.GreetingCacheCapacity, err = intFromEnv("GREETING_CACHE_CAPACITY", cfg.GreetingCacheCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.EgressQueueCapacity, err = intFromEnv("EGRESS_QUEUE_CAPACITY", cfg.EgressQueueCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "auto", "openai", "gemini", "mock":
	default:
		return Config{}, fmt.Errorf("BACKEND must be one of auto, openai, gemini, mock")
	}
	if cfg.IdleNudgeAfter < 5*time.Second {
		return Config{}, fmt.Errorf("CALL_IDLE_NUDGE_AFTER must be at least 5s")
	}
	if cfg.MaxCallDuration <= cfg.IdleNudgeAfter {
		return Config{}, fmt.Errorf("CALL_MAX_DURATION must exceed CALL_IDLE_NUDGE_AFTER")
	}
	if cfg.GreetingCacheCapacity <= 0 {
		return Config{}, fmt.Errorf("GREETING_CACHE_CAPACITY must be positive")
	}
	if cfg.EgressQueueCapacity <= 0 {
		return Config{}, fmt.Errorf("EGRESS_QUEUE_CAPACITY must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

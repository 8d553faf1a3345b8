package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr string

	// Empty DSN means an in-memory sqlite store: sessions are
	// ephemeral and vanish on restart. Set a MySQL DSN to keep them.
	DBDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AudioCacheTTL int // seconds

	ChatContextWindowSize int

	// AI provider
	AIProvider        string
	GeminiBaseURL     string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTTSModel    string
	GeminiVoice       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// rabbitMQ (optional; empty URL disables the speech queue and
	// background synthesis runs in-process instead)
	RabbitURL   string
	RabbitQueue string
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() Config {
	return Config{
		Addr:  envStr("ADDR", ":8080"),
		DBDSN: os.Getenv("DB_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		AudioCacheTTL: envInt("AUDIO_CACHE_TTL", 3600),

		ChatContextWindowSize: envInt("CHAT_CONTEXT_WINDOW_SIZE", 20),

		AIProvider:        envStr("AI_PROVIDER", "gemini"),
		GeminiBaseURL:     envStr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTTSModel:    envStr("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiVoice:       envStr("GEMINI_VOICE", "Puck"),
		OpenRouterBaseURL: envStr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   envStr("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: envStr("RABBIT_QUEUE", "speech_jobs"),
	}
}

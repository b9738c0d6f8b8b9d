package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         string
	PublicHost   string
	PublicScheme string

	GeminiAPIKey  string
	LiveModel     string
	FeedbackModel string
	AgentEndpoint string

	OrdinaryPerDay int
	PremiumPerDay  int
}

func Load() Config {
	scheme := "http"
	if os.Getenv("TLS") == "1" {
		scheme = "https"
	}
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		PublicHost:     os.Getenv("PUBLIC_HOST"),
		PublicScheme:   scheme,
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		LiveModel:      getenv("LIVE_MODEL", "gemini-2.0-flash-live-001"),
		FeedbackModel:  getenv("FEEDBACK_MODEL", "gemini-2.0-flash"),
		AgentEndpoint:  os.Getenv("AGENT_ENDPOINT"),
		OrdinaryPerDay: getint("QUOTA_ORDINARY_PER_DAY", 20),
		PremiumPerDay:  getint("QUOTA_PREMIUM_PER_DAY", 5),
	}
	if cfg.PublicHost == "" {
		cfg.PublicHost = "localhost:" + cfg.Port
	}
	return cfg
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	JudgeModel      string
	APIToken        string
	RubricPath      string
	RealismNotch    int
	Trajectory      bool
	SessionDB       string
}

func Load() Config {
	return Config{
		Port:            envInt("RAPPORT_PORT", 8760),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("RAPPORT_MODEL", "claude-sonnet-4-20250514"),
		JudgeModel:      envStr("RAPPORT_JUDGE_MODEL", "claude-sonnet-4-20250514"),
		APIToken:        envStr("RAPPORT_API_TOKEN", ""),
		RubricPath:      envStr("RAPPORT_RUBRIC", ""),
		RealismNotch:    envInt("RAPPORT_REALISM_NOTCH", 0),
		Trajectory:      envBool("RAPPORT_TRAJECTORY", true),
		SessionDB:       envStr("RAPPORT_SESSION_DB", defaultSessionDB()),
	}
}

func defaultSessionDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rapport", "sessions.db")
	}
	return filepath.Join(home, ".rapport", "sessions.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

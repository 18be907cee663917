package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisURL   string
	JWTSecret  string

	// Assistant oracle (OpenAI-compatible endpoint)
	AIBaseURL         string
	AIAPIKey          string
	AIModel           string
	AITimeout         time.Duration
	AssistantUsername string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "collabry"),
		DBPassword: getEnv("DB_PASSWORD", "collabry_dev_password"),
		DBName:     getEnv("DB_NAME", "collabry"),
		// Empty means single-instance mode: fanout stays in-process.
		RedisURL:  getEnv("REDIS_URL", ""),
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		AIBaseURL:         getEnv("AI_BASE_URL", "https://api.openai.com"),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", "gpt-4o-mini"),
		AITimeout:         time.Duration(getEnvInt("AI_TIMEOUT_SECONDS", 20)) * time.Second,
		AssistantUsername: getEnv("ASSISTANT_USERNAME", "collabry_assistant"),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}

	return n
}

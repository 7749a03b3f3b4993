// Package config loads process configuration from the environment,
// following the teacher's getEnv/getDuration fallback style (internal/
// config/config.go) but expanded to the full set of inputs spec.md §6.2
// names and failing fast when a required value is absent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	Debug           bool

	Database DatabaseConfig
	LLM      LLMConfig
	Security SecurityConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	DSN string
}

type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

type SecurityConfig struct {
	JWTSecret           string
	JWTAlgorithm        string
	TokenLifetimeHours  int
}

type CORSConfig struct {
	Origins []string
}

// Load reads configuration from the environment and fails fast when a
// required value is missing, per spec.md §6.2 ("Missing required values
// must fail fast at process start").
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           getBool("DEBUG", false),
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	cfg.Database = DatabaseConfig{DSN: dsn}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	cfg.Security = SecurityConfig{
		JWTSecret:          jwtSecret,
		JWTAlgorithm:       getEnv("JWT_ALGORITHM", "HS256"),
		TokenLifetimeHours: getInt("TOKEN_LIFETIME_HOURS", 24),
	}

	cfg.LLM = LLMConfig{
		Provider: os.Getenv("LLM_PROVIDER"),
		APIKey:   os.Getenv("LLM_API_KEY"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
		Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
	}

	cfg.CORS = CORSConfig{Origins: splitCSV(os.Getenv("CORS_ORIGINS"))}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"northcart-payment-engine/database"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/processor"
)

type Config struct {
	Database  database.DatabaseConfig
	Processor processor.Credentials
	RateLimit ratelimit.Config
	Server    ServerConfig
	Redis     RedisConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	URL string
}

type WebhookConfig struct {
	Secret string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Processor: processor.Credentials{
			APIUser:       os.Getenv("PROCESSOR_API_USER"),
			APIPassword:   os.Getenv("PROCESSOR_API_PASSWORD"),
			TokenUser:     os.Getenv("PROCESSOR_TOKEN_USER"),
			TokenPassword: os.Getenv("PROCESSOR_TOKEN_PASSWORD"),
			AccountIDs:    parseAccountIDs(os.Getenv("PROCESSOR_ACCOUNT_IDS")),
			Environment:   os.Getenv("PROCESSOR_ENVIRONMENT"),
			LegacyHost:    os.Getenv("PROCESSOR_LEGACY_HOST") == "true",
		},
		RateLimit: ratelimit.Config{
			Enabled:     os.Getenv("RATE_LIMIT_ENABLED") != "false",
			MaxRequests: envInt64("RATE_LIMIT_MAX_REQUESTS", 300),
			Window:      time.Duration(envInt64("RATE_LIMIT_WINDOW_SECONDS", 600)) * time.Second,
		},
		Server: ServerConfig{
			Port: os.Getenv("SERVER_PORT"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("PROCESSOR_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    os.Getenv("JWT_ISSUER"),
		},
	}

	if cfg.Processor.Environment == "" {
		cfg.Processor.Environment = "sandbox"
		log.Printf("Warning: PROCESSOR_ENVIRONMENT not set, defaulting to sandbox")
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
		log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Webhook.Secret == "" {
		log.Printf("Warning: PROCESSOR_WEBHOOK_SECRET not set, webhook intake will reject all events")
	}

	return cfg
}

// parseAccountIDs parses "USD:acct1,CAD:acct2" into a currency map.
func parseAccountIDs(raw string) map[string]string {
	accounts := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("Warning: skipping malformed account mapping %q", pair)
			continue
		}
		accounts[strings.ToUpper(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	return accounts
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %v, using %d", key, err, fallback)
		return fallback
	}
	return n
}

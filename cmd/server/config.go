package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from an optional YAML
// file with environment-variable overrides on top.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// RedisAddr selects the room store; empty keeps rooms in process
	// memory.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	// NATSURL enables the broadcast mirror; empty disables it.
	NATSURL string `yaml:"nats_url"`

	JWTSecret     string `yaml:"jwt_secret"`
	TokenMaxAgeHr int    `yaml:"token_max_age_hr"`

	BeforeGameSec int     `yaml:"before_game_sec"`
	EventsPerSec  float64 `yaml:"events_per_sec"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaultConfig() Config {
	return Config{
		Addr:           ":8080",
		LogLevel:       "info",
		TokenMaxAgeHr:  24,
		BeforeGameSec:  3,
		EventsPerSec:   40,
		AllowedOrigins: []string{"*"},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenMaxAgeHr = getEnvAsInt("TOKEN_MAX_AGE_HR", cfg.TokenMaxAgeHr)
	cfg.BeforeGameSec = getEnvAsInt("BEFORE_GAME_SEC", cfg.BeforeGameSec)

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

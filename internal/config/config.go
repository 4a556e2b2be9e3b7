package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr     string
	DatabaseURL  string
	RedisAddr    string
	JWTSecret    string
	ServiceName  string
	ChatEnabled  bool
	ReplayWindow int
}

func Load() *Config {
	return &Config{
		HTTPAddr:     fixPort(getEnv("HTTP_ADDR", ":8080")),
		DatabaseURL:  mustEnv("DATABASE_URL"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:    mustEnv("JWT_SECRET"),
		ServiceName:  getEnv("SERVICE_NAME", "chat-service"),
		ChatEnabled:  getEnvBool("CHAT_ENABLED", true),
		ReplayWindow: getEnvInt("CHAT_REPLAY_WINDOW", 50),
	}
}

func fixPort(port string) string {
	if port != "" && !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid integer for env %s: %q", key, v)
	}
	return n
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env: %s", k)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

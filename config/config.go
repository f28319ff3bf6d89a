package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client and the stub backend.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	ServerURL            string
	AppMode              string
	UserID               int
	PeerID               int
	DialTimeoutSec       int
	ReconnectDelayMS     int
	MaxReconnectAttempts int
	HTTPTimeoutSec       int
	SendDebounceMS       int
	StubPort             string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		ServerURL:            getEnv("SERVER_URL", "http://localhost:8080"),
		AppMode:              getEnv("APP_MODE", "development"),
		UserID:               getEnvAsInt("USER_ID", 0),
		PeerID:               getEnvAsInt("PEER_ID", 0),
		DialTimeoutSec:       getEnvAsInt("DIAL_TIMEOUT_SEC", 10),
		ReconnectDelayMS:     getEnvAsInt("RECONNECT_DELAY_MS", 1000),
		MaxReconnectAttempts: getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 5),
		HTTPTimeoutSec:       getEnvAsInt("HTTP_TIMEOUT_SEC", 15),
		SendDebounceMS:       getEnvAsInt("SEND_DEBOUNCE_MS", 100),
		StubPort:             getEnv("STUB_PORT", "8080"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

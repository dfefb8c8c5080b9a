package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	APIBaseURL  string
	StorageURL  string
	RealtimeURL string
	LogLevel    string
	LogFormat   string
	HTTPTimeout time.Duration
	// StorageBucket is the bucket answer sheets are uploaded into.
	StorageBucket string
	// StorageKey authorizes bucket uploads when no user session is present.
	StorageKey string
	// MaxUploadBytes caps the size of a staged answer sheet.
	MaxUploadBytes int64
	// MeetBaseURL is the conferencing host live-class room URLs point at.
	MeetBaseURL string
	// TokenFile is where examctl persists the access token between runs.
	TokenFile string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	apiBase := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/")

	return &Config{
		APIBaseURL:     apiBase,
		StorageURL:     strings.TrimRight(getEnv("STORAGE_URL", apiBase+"/storage/v1"), "/"),
		RealtimeURL:    getEnv("REALTIME_URL", deriveWS(apiBase)+"/realtime/v1"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		HTTPTimeout:    time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		StorageBucket:  getEnv("STORAGE_BUCKET", "answers"),
		StorageKey:     getEnv("STORAGE_KEY", ""),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 20)) * 1024 * 1024,
		MeetBaseURL:    strings.TrimRight(getEnv("MEET_BASE_URL", "https://meet.jit.si"), "/"),
		TokenFile:      getEnv("TOKEN_FILE", ".examconnect-token"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// deriveWS rewrites an http(s) base URL into its ws(s) counterpart.
func deriveWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	GeoIPDBPath        string
	DefaultLocale      string
	WorldLabsAPIKey    string
	WorldLabsBaseURL   string
	UpstreamTimeout    time.Duration
	RelayBaseURL       string
	RelayMaxBytes      int64
	RelayTimeout       time.Duration
	CORSAllowedOrigins []string
	PollInterval       time.Duration
	PollConcurrency    int
	FrameInterval      time.Duration
	EventBufferSize    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A missing API key is not an error here: remote operations report it per request.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		WorldLabsAPIKey:    strings.TrimSpace(os.Getenv("WORLDLABS_API_KEY")),
		WorldLabsBaseURL:   getEnv("WORLDLABS_BASE_URL", "https://api.worldlabs.ai/marble/v1"),
		UpstreamTimeout:    getEnvDuration("WORLDLABS_TIMEOUT", 60*time.Second),
		RelayBaseURL:       getEnv("RELAY_BASE_URL", "http://localhost:"+port),
		RelayMaxBytes:      int64(getEnvInt("RELAY_MAX_BYTES", 512<<20)),
		RelayTimeout:       getEnvDuration("RELAY_TIMEOUT", 5*time.Minute),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 3*time.Second),
		PollConcurrency:    getEnvInt("POLL_CONCURRENCY", 8),
		FrameInterval:      getEnvDuration("FRAME_INTERVAL", 16*time.Millisecond),
		EventBufferSize:    getEnvInt("EVENT_BUFFER_SIZE", 200),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("FRAME_INTERVAL must be positive")
	}
	if cfg.RelayMaxBytes <= 0 {
		return nil, fmt.Errorf("RELAY_MAX_BYTES must be positive")
	}
	for name, raw := range map[string]string{"WORLDLABS_BASE_URL": cfg.WorldLabsBaseURL, "RELAY_BASE_URL": cfg.RelayBaseURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute url", name)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("3s") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

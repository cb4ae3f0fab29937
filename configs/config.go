package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Dispatch struct {
	Interval       time.Duration
	StaleInterval  time.Duration
	PublishTimeout time.Duration
	ClaimTTL       time.Duration
	BatchSize      int
}

type Retry struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

type Config struct {
	Port            string
	DatabaseDriver  string
	PostgresURI     string
	SQLitePath      string
	RedisURI        string
	FrontendURL     string
	AyrshareAPIKey  string
	AyrshareBaseURL string
	R2              R2
	SecretKey       string
	CookieName      string
	Dispatch        Dispatch
	Retry           Retry
	// MaxLengths overrides per-platform content limits, keyed by platform name.
	MaxLengths map[string]int
}

var platforms = []string{"linkedin", "twitter", "instagram", "facebook", "tiktok"}

func LoadConfig() *Config {
	maxLengths := make(map[string]int)
	for _, p := range platforms {
		if n := getEnvInt("MAX_LENGTH_"+strings.ToUpper(p), 0); n > 0 {
			maxLengths[p] = n
		}
	}

	return &Config{
		Port:            getEnv("PORT", "3000"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", "postgres"),
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "contentflow.db"),
		RedisURI:        getEnv("REDIS_URI", ""),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		AyrshareAPIKey:  getEnv("AYRSHARE_API_KEY", ""),
		AyrshareBaseURL: getEnv("AYRSHARE_BASE_URL", "https://api.ayrshare.com/api"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "contentflow_token"),
		Dispatch: Dispatch{
			Interval:       getEnvDuration("DISPATCH_INTERVAL", 60*time.Second),
			StaleInterval:  getEnvDuration("STALE_CHECK_INTERVAL", 5*time.Minute),
			PublishTimeout: getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
			ClaimTTL:       getEnvDuration("CLAIM_TTL", 10*time.Minute),
			BatchSize:      getEnvInt("DISPATCH_BATCH_SIZE", 100),
		},
		Retry: Retry{
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 30*time.Second),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 30*time.Minute),
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		},
		MaxLengths: maxLengths,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

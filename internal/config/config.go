package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration values.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	SessionTTL  time.Duration
	StaticDir   string
	MediaDir    string
	Retailer    string
	AI          AIConfig
	Media       MediaConfig
	Log         LogConfig
}

// AIConfig selects the Gemini backend and models.
type AIConfig struct {
	APIKey     string
	UseVertex  bool
	Project    string
	Location   string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	// Models lists the models a request may pick instead of the defaults.
	Models []string
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicURL       string
	KeyPrefix       string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv loads an optional .env file, then reads environment variables and applies defaults.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		SessionTTL:  time.Duration(getenvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		StaticDir:   getenv("STATIC_DIR", "web"),
		MediaDir:    os.Getenv("MEDIA_DIR"),
		Retailer:    os.Getenv("RETAILER_URL"),
		AI: AIConfig{
			APIKey:     getenv("GEMINI_API_KEY", os.Getenv("API_KEY")),
			UseVertex:  getenvBool("GEMINI_USE_VERTEX", false),
			Project:    os.Getenv("GOOGLE_CLOUD_PROJECT"),
			Location:   getenv("GOOGLE_CLOUD_LOCATION", "us-central1"),
			TextModel:  getenv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
			ImageModel: getenv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
			Timeout:    time.Duration(getenvInt("AI_TIMEOUT_SECONDS", 90)) * time.Second,
			RatePerSec: getenvFloat("AI_RATE_PER_SECOND", 2),
			Burst:      getenvInt("AI_BURST", 4),
			Models:     getenvList("AI_MODELS"),
		},
		Media: MediaConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:       strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
		},
	}

	if strings.TrimSpace(cfg.Port) == "" {
		return Config{}, errors.New("APP_PORT cannot be empty")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("SESSION_TTL_HOURS must be positive")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

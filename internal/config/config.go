package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Remote   RemoteConfig
	Supabase SupabaseConfig
	Store    StoreConfig
	Sync     SyncConfig
	Breaker  BreakerConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string `validate:"oneof=development production test"`
	LogFilePath        string `validate:"required"`
	NoticeLogFilePath  string `validate:"required"`
	CorsAllowedOrigins string
	NatsURL            string
}

type RemoteConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type SupabaseConfig struct {
	URL     string
	AnonKey string
}

type StoreConfig struct {
	Backend  string `validate:"oneof=file redis"`
	FilePath string `validate:"required_if=Backend file"`
	RedisURL string `validate:"required_if=Backend redis"`
}

type SyncConfig struct {
	// Delay between a sign-in and the background content generation.
	GenerationSettleDelay time.Duration `validate:"gte=0"`
	EventTopic            string        `validate:"required"`
	LeadFeedStream        string
	LeadCreatedSubject    string
	LeadFeedDurable       string
}

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64 `validate:"gt=0,lte=1"`
	MinRequests      uint32
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3100"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/sync.log"),
			NoticeLogFilePath:  getEnv("NOTICE_LOG_FILE_PATH", "logs/notice.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Remote: RemoteConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:5000"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 60*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:     getEnv("SUPABASE_URL", ""),
			AnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "file"),
			FilePath: getEnv("STORE_FILE_PATH", "data/local_store.gob"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Sync: SyncConfig{
			GenerationSettleDelay: getEnvAsDuration("GENERATION_SETTLE_DELAY", 2*time.Second),
			EventTopic:            getEnv("AUTH_EVENT_TOPIC", "auth_state"),
			LeadFeedStream:        getEnv("LEAD_FEED_STREAM", "EVENTS"),
			LeadCreatedSubject:    getEnv("LEAD_CREATED_SUBJECT", "events.LEAD_CREATED"),
			LeadFeedDurable:       getEnv("LEAD_FEED_DURABLE", "leadgen-sync-leads"),
		},
		Breaker: BreakerConfig{
			MaxRequests:      uint32(getEnvAsInt("BREAKER_MAX_REQUESTS", 5)),
			Interval:         getEnvAsDuration("BREAKER_INTERVAL", 30*time.Second),
			Timeout:          getEnvAsDuration("BREAKER_TIMEOUT", 60*time.Second),
			FailureThreshold: getEnvAsFloat("BREAKER_FAILURE_THRESHOLD", 0.8),
			MinRequests:      uint32(getEnvAsInt("BREAKER_MIN_REQUESTS", 5)),
		},
	}
}

// Validate checks the loaded values before anything is wired.
func (c *Config) Validate() error {
	v := validator.New()
	for name, section := range map[string]interface{}{
		"app":     c.App,
		"remote":  c.Remote,
		"store":   c.Store,
		"sync":    c.Sync,
		"breaker": c.Breaker,
	} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid %s config: %w", name, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

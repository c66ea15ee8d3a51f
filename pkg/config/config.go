package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/joho/godotenv"
)

// Repository backends.
const (
	BackendPrismic = "prismic"
	BackendMongo   = "mongo"
)

type Config struct {
	ServerPort        string
	RepositoryBackend string

	PrismicAPIURL      string
	PrismicAccessToken string
	PrismicRateLimit   float64
	HTTPTimeout        time.Duration

	DocumentType    string
	PageSize        int
	DisplayTimezone string
	SessionTTL      time.Duration

	MongoURI    string
	MongoDBName string
	MongoColl   string

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaDLQTopic string
	KafkaGroupID  string

	MirrorEnabled   bool
	MirrorInterval  time.Duration
	MirrorBatchSize int

	OtelEnabled     bool
	OtelServiceName string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		RepositoryBackend: strings.ToLower(getEnv("REPOSITORY_BACKEND", BackendPrismic)),

		PrismicAPIURL:      getEnv("PRISMIC_API_URL", "http://localhost:8081"),
		PrismicAccessToken: getEnv("PRISMIC_ACCESS_TOKEN", ""),
		PrismicRateLimit:   getFloatEnv("PRISMIC_RATE_LIMIT", 0),
		HTTPTimeout:        getDurationEnv("HTTP_TIMEOUT", 10*time.Second),

		DocumentType:    getEnv("DOCUMENT_TYPE", "template-post"),
		PageSize:        getIntEnv("PAGE_SIZE", 4),
		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "America/Sao_Paulo"),
		SessionTTL:      getDurationEnv("SESSION_TTL", 30*time.Minute),

		MongoURI:    getEnv("MONGO_URI", "mongodb://mongodb:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "postfeed"),
		MongoColl:   getEnv("MONGO_COLLECTION", "documents"),

		KafkaBrokers:  getListEnv("KAFKA_BROKERS", []string{"kafka:29092"}),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "content_documents"),
		KafkaDLQTopic: getEnv("KAFKA_DLQ_TOPIC", "content_documents_dlq"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "postfeed-sync-group"),

		MirrorEnabled:   getBoolEnv("MIRROR_ENABLED", true),
		MirrorInterval:  getDurationEnv("MIRROR_INTERVAL", 5*time.Minute),
		MirrorBatchSize: getIntEnv("MIRROR_BATCH_SIZE", 100),

		OtelEnabled:     getBoolEnv("OTEL_ENABLED", false),
		OtelServiceName: getEnv("OTEL_SERVICE_NAME", "postfeed"),
	}
}

// QueryConfig builds the listing query parameters.
func (c *Config) QueryConfig() (domain.QueryConfig, error) {
	qc := domain.NewQueryConfig(c.DocumentType, c.PageSize)
	if err := qc.Validate(); err != nil {
		return domain.QueryConfig{}, err
	}
	return qc, nil
}

// Location resolves DisplayTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

func (c *Config) UsesMongo() bool {
	return c.RepositoryBackend == BackendMongo
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		// Try parsing as duration string (e.g. "1m", "60s")
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Try parsing as integer seconds
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

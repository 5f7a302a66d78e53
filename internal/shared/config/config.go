package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	AWSEndpointURL  string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	PresignTTL      time.Duration
	MaxUploadBytes  int64

	UploadRatePerMinute int
	UploadRateBurst     int

	AnalysisProvider    string
	TextractSNSTopicARN string
	TextractRoleARN     string
	TextractQueueURL    string

	ConsumerInProcess    bool
	ConsumerPurgeOnStart bool
	ConsumerWaitSeconds  int32
	ConsumerIdleDelay    time.Duration
	ConsumerErrorDelay   time.Duration
	DispatchBuffer       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience; real env wins.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		DatabaseURL:     dbURL,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		AWSEndpointURL:  getEnv("AWS_ENDPOINT_URL", ""),
		S3Bucket:        getEnv("S3_BUCKET_NAME", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		PresignTTL:      getDuration("PRESIGN_TTL", time.Hour),
		MaxUploadBytes:  getInt64("MAX_UPLOAD_BYTES", 10<<20),

		UploadRatePerMinute: int(getInt64("UPLOAD_RATE_PER_MINUTE", 30)),
		UploadRateBurst:     int(getInt64("UPLOAD_RATE_BURST", 10)),

		AnalysisProvider:    normalizeProvider(getEnv("ANALYSIS_PROVIDER", "local")),
		TextractSNSTopicARN: getEnv("TEXTRACT_SNS_TOPIC_ARN", ""),
		TextractRoleARN:     getEnv("TEXTRACT_ROLE_ARN", ""),
		TextractQueueURL:    getEnv("TEXTRACT_SQS_QUEUE_URL", ""),

		ConsumerInProcess:    getBool("CONSUMER_IN_PROCESS", true),
		ConsumerPurgeOnStart: getBool("CONSUMER_PURGE_ON_START", true),
		ConsumerWaitSeconds:  int32(getInt64("CONSUMER_WAIT_SECONDS", 20)),
		ConsumerIdleDelay:    getDuration("CONSUMER_IDLE_DELAY", 5*time.Second),
		ConsumerErrorDelay:   getDuration("CONSUMER_ERROR_DELAY", 10*time.Second),
		DispatchBuffer:       int(getInt64("DISPATCH_BUFFER", 64)),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return v
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

// getDuration accepts Go duration strings ("5s") or bare seconds ("5").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("invalid %s=%q, using %s", key, raw, def)
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "textract", "aws":
		return "textract"
	default:
		return "local"
	}
}

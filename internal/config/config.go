package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr  string
	LogDir    string
	LogLevel  string
	LogFormat string

	OTLPEndpoint      string
	OtelEnabled       bool
	OtelSamplingRatio float64

	Staging     StagingConfig
	Counter     CounterConfig
	Store       StoreConfig
	ObjectStore ObjectStoreConfig
	Upload      UploadConfig
	Email       EmailConfig
	Pipeline    PipelineConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type StagingConfig struct {
	PickupDir     string
	ProcessedDir  string
	QuarantineDir string
	SchemaPath    string
}

type CounterConfig struct {
	Backend       string
	File          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

type StoreConfig struct {
	Driver string

	MongoURI              string
	MongoDatabase         string
	MongoLogDatabase      string
	RecordCollection      string
	ActivityCollection    string
	PairHistoryCollection string
	EventLogCollection    string
	StorageLogCollection  string
}

type ObjectStoreConfig struct {
	Backend   string
	LocalDir  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type UploadConfig struct {
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	Timeout       time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	To           []string
}

type PipelineConfig struct {
	Workers       int
	WatchInterval time.Duration
	LinkConfig    string
	LockKey       string
	LockTTL       time.Duration
}

const (
	CounterBackendFile  = "file"
	CounterBackendRedis = "redis"

	StoreDriverSQL   = "sql"
	StoreDriverMongo = "mongo"

	ObjectStoreLocal = "local"
	ObjectStoreS3    = "s3"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	pickup := getenv("PICKUP_FOLDER", "pickup")

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "datasync"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		LogDir:            getenv("LOG_DIR", "logs"),
		LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 1),
		Staging: StagingConfig{
			PickupDir:     pickup,
			ProcessedDir:  getenv("PROCESSED_FOLDER", filepath.Join(pickup, "processed")),
			QuarantineDir: strings.TrimSpace(getenv("QUARANTINE_FOLDER", "")),
			SchemaPath:    strings.TrimSpace(getenv("SCHEMA_PATH", "")),
		},
		Counter: CounterConfig{
			Backend:       normalizeChoice(getenv("COUNTER_BACKEND", CounterBackendFile), CounterBackendFile, CounterBackendRedis),
			File:          getenv("COUNTER_FILE", "datasync.properties"),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			KeyPrefix:     getenv("COUNTER_KEY_PREFIX", "datasync:counter:"),
		},
		Store: StoreConfig{
			Driver:                normalizeChoice(getenv("STORE_DRIVER", StoreDriverSQL), StoreDriverSQL, StoreDriverMongo),
			MongoURI:              getenv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase:         getenv("MONGODB_DATABASE", "datasyncx_db"),
			MongoLogDatabase:      getenv("MONGODB_LOG_DATABASE", "datasyncx_logs"),
			RecordCollection:      getenv("MONGODB_COLLECTION", "documents"),
			ActivityCollection:    getenv("MONGODB_LOG_ACTIVITY_INFO_COLLECTION", "activity_info"),
			PairHistoryCollection: getenv("MONGODB_LOG_HISTORY_COLLECTION", "pair_history"),
			EventLogCollection:    getenv("MONGODB_LOG_PAIR_HISTORY_COLLECTION", "event_logs"),
			StorageLogCollection:  getenv("MONGODB_LOG_S3_COLLECTION", "storage_logs"),
		},
		ObjectStore: ObjectStoreConfig{
			Backend:   normalizeChoice(getenv("OBJECT_STORE", ObjectStoreLocal), ObjectStoreLocal, ObjectStoreS3),
			LocalDir:  getenv("BINARY_FOLDER", "binary"),
			Endpoint:  getenv("S3_ENDPOINT", "s3.amazonaws.com"),
			Region:    getenv("S3_REGION", ""),
			AccessKey: strings.TrimSpace(getenv("AWS_ACCESS_KEY_ID", "")),
			SecretKey: strings.TrimSpace(getenv("AWS_SECRET_ACCESS_KEY", "")),
			Bucket:    getenv("AWS_BUCKET_NAME", "datasync"),
			Prefix:    getenv("AWS_S3_PREFIX", "documents"),
			UseSSL:    getenvBool("S3_USE_SSL", true),
		},
		Upload: UploadConfig{
			RatePerSecond: getenvFloat("UPLOAD_RATE_PER_SEC", 10),
			Burst:         getenvInt("UPLOAD_BURST", 5),
			MaxAttempts:   getenvInt("UPLOAD_MAX_ATTEMPTS", 3),
			Timeout:       getenvDuration("UPLOAD_TIMEOUT", 2*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_SERVER", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", getenv("SMTP_USERNAME", "")),
			To:           parseList(getenv("EMAIL_TO", "")),
		},
		Pipeline: PipelineConfig{
			Workers:       getenvInt("WORKERS", 1),
			WatchInterval: getenvDuration("WATCH_INTERVAL", 5*time.Minute),
			LinkConfig:    getenv("LINK_CONFIG", ""),
			LockKey:       getenv("ACTIVITY_LOCK_KEY", "datasync:activity"),
			LockTTL:       getenvDuration("ACTIVITY_LOCK_TTL", time.Hour),
		},
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "datasync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "datasync.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 1
	}

	return cfg
}

func normalizeChoice(raw string, def string, allowed ...string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == def {
		return def
	}
	for _, a := range allowed {
		if value == a {
			return a
		}
	}
	return def
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendMinio = "minio"
	StorageBackendGCS   = "gcs"

	MQBackendNone     = ""
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	ServerPort int
	// PasswordCost is the bcrypt work factor for stored password digests.
	PasswordCost int
	Database     DatabaseConfig
	Token        TokenConfig
	Cookie       CookieConfig
	Upload       UploadConfig
	Storage      StorageConfig
	MQ           MQConfig
	Log          LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// TokenConfig holds the signing keys and lifetimes of both token classes.
// The access and refresh secrets must differ.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type UploadConfig struct {
	// TempDir is where multipart files are staged before being pushed to storage.
	TempDir string
	// MaxMemory bounds the in-memory part of multipart parsing.
	MaxMemory int64
	// MaxFileBytes bounds a single uploaded image.
	MaxFileBytes int64
}

type StorageConfig struct {
	Backend string
	// PublicBaseURL is prefixed to object keys to build public asset URLs.
	PublicBaseURL string
	Minio         MinioConfig
	GCS           GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Backend         string
	AccountsChannel string
	RabbitMQ        RabbitMQConfig
	PubSub          PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "vidtube"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "vidtube_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	tokenConfig := TokenConfig{
		AccessSecret:  strings.TrimSpace(getEnv("ACCESS_TOKEN_SECRET", "")),
		AccessTTL:     getEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshSecret: strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET", "")),
		RefreshTTL:    getEnvDuration("REFRESH_TOKEN_EXPIRY", 10*24*time.Hour),
	}

	storageConfig := StorageConfig{
		Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendMinio)),
		PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:9000/vidtube"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "vidtube"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	mqConfig := MQConfig{
		Backend:         strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
		AccountsChannel: getEnv("MQ_ACCOUNTS_CHANNEL", "account-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort:   getEnvInt("SERVER_PORT", 8080),
		PasswordCost: getEnvInt("BCRYPT_COST", 10),
		Database:     dbConfig,
		Token:        tokenConfig,
		Cookie: CookieConfig{
			Secure: getEnvBool("COOKIE_SECURE", true),
			Domain: getEnv("COOKIE_DOMAIN", ""),
		},
		Upload: UploadConfig{
			TempDir:      getEnv("UPLOAD_TMP_DIR", os.TempDir()),
			MaxMemory:    int64(getEnvInt("UPLOAD_MAX_MEMORY", 8<<20)),
			MaxFileBytes: int64(getEnvInt("UPLOAD_MAX_FILE_BYTES", 10<<20)),
		},
		Storage: storageConfig,
		MQ:      mqConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate reports configuration that would make the server unusable.
func (c Config) Validate() error {
	var errs []error
	if c.Token.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.Token.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.Token.AccessSecret != "" && c.Token.AccessSecret == c.Token.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	switch c.Storage.Backend {
	case StorageBackendMinio, StorageBackendGCS:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.MQ.Backend {
	case MQBackendNone, MQBackendRabbitMQ, MQBackendPubSub:
	default:
		errs = append(errs, fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") and a trailing "d" for days ("10d").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if days, ok := strings.CutSuffix(valueStr, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return defaultValue
		}
		return time.Duration(n) * 24 * time.Hour
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

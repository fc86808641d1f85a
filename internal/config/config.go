package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
)

const DefaultNotifyConfigFile = "slack.json"

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Notify    NotifyConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type APIConfig struct {
	Addr         string
	MaxBodyBytes int64
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// DatabaseConfig selects the job store. An empty DSN keeps jobs in memory.
type DatabaseConfig struct {
	DSN string
}

// NotifyConfig holds the Slack recipient and incoming webhook. Values are read
// from ConfigFile (JSON with "webhook" and "user" keys) and may be overridden
// through the environment.
type NotifyConfig struct {
	ConfigFile    string
	WebhookURL    string
	User          string
	SigningSecret string
	Timeout       time.Duration
}

type TelemetryConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type RateLimitConfig struct {
	Enabled      bool
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PIXELSHUFFLE_API_ADDR", ":8080")
	v.SetDefault("PIXELSHUFFLE_MAX_BODY_BYTES", 10<<20)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ASYNC_QUEUE", "default")

	v.SetDefault("WORKER_CONCURRENCY", max(2, runtime.NumCPU()))
	v.SetDefault("WORKER_METRICS_ADDR", ":9091")

	v.SetDefault("S3_ENDPOINT", "s3.amazonaws.com")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "lambda-transformed-images")
	v.SetDefault("S3_USE_SSL", true)

	v.SetDefault("POSTGRES_DSN", "")

	v.SetDefault("NOTIFY_CONFIG_FILE", DefaultNotifyConfigFile)
	v.SetDefault("SLACK_WEBHOOK_URL", "")
	v.SetDefault("SLACK_USER", "")
	v.SetDefault("WEBHOOK_SIGNING_SECRET", "")
	v.SetDefault("WEBHOOK_TIMEOUT", 10*time.Second)

	v.SetDefault("OTEL_SERVICE_NAME", "pixelshuffle")
	v.SetDefault("OTEL_TRACES_EXPORTER", "none")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_CAPACITY", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("RATE_LIMIT_USER_ID_HEADER", "X-User-ID")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from the environment and the notification config
// file.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		API: APIConfig{
			Addr:         v.GetString("PIXELSHUFFLE_API_ADDR"),
			MaxBodyBytes: v.GetInt64("PIXELSHUFFLE_MAX_BODY_BYTES"),
		},
		Queue: QueueConfig{
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			Name:          v.GetString("ASYNC_QUEUE"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			MetricsAddr: v.GetString("WORKER_METRICS_ADDR"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Region:    v.GetString("S3_REGION"),
			Bucket:    v.GetString("S3_BUCKET"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("POSTGRES_DSN"),
		},
		Notify: NotifyConfig{
			ConfigFile:    v.GetString("NOTIFY_CONFIG_FILE"),
			SigningSecret: v.GetString("WEBHOOK_SIGNING_SECRET"),
			Timeout:       v.GetDuration("WEBHOOK_TIMEOUT"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			Exporter:     v.GetString("OTEL_TRACES_EXPORTER"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:      v.GetBool("RATE_LIMIT_ENABLED"),
			Capacity:     v.GetInt("RATE_LIMIT_CAPACITY"),
			Window:       v.GetDuration("RATE_LIMIT_WINDOW"),
			UserIDHeader: v.GetString("RATE_LIMIT_USER_ID_HEADER"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := loadNotifyFile(&cfg.Notify, os.Getenv("NOTIFY_CONFIG_FILE") != ""); err != nil {
		return Config{}, err
	}
	if webhookURL := v.GetString("SLACK_WEBHOOK_URL"); webhookURL != "" {
		cfg.Notify.WebhookURL = webhookURL
	}
	if user := v.GetString("SLACK_USER"); user != "" {
		cfg.Notify.User = user
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadNotifyFile reads the Slack settings file. A missing file is only an
// error when its path was configured explicitly.
func loadNotifyFile(n *NotifyConfig, explicit bool) error {
	path := strings.TrimSpace(n.ConfigFile)
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("notify config file %s: %w", path, err)
	}

	fv := viper.New()
	fv.SetConfigFile(path)
	fv.SetConfigType("json")
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("read notify config file %s: %w", path, err)
	}

	n.WebhookURL = fv.GetString("webhook")
	n.User = fv.GetString("user")
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("S3_BUCKET is required")
	}
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return errors.New("S3_ENDPOINT is required")
	}
	if c.API.MaxBodyBytes <= 0 {
		return errors.New("PIXELSHUFFLE_MAX_BODY_BYTES must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("rate limit capacity and window must be positive")
	}
	return nil
}

// Package config loads worker settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

type NATS struct {
	URL               string        `env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	Stream            string        `env:"PROCESS_STREAM" env-default:"NFT_PROCESS"`
	JobSubject        string        `env:"PROCESS_SUBJECT" env-default:"nft.process"`
	DeadLetterSubject string        `env:"PROCESS_DLQ_SUBJECT" env-default:"nft.process.dlq"`
	DoneSubject       string        `env:"PROCESS_DONE_SUBJECT" env-default:"nft.process.done"`
	CacheSubject      string        `env:"CACHE_REFRESH_SUBJECT" env-default:"nft.cache.refresh"`
	Durable           string        `env:"PROCESS_CONSUMER" env-default:"nft-workers"`
	StreamMaxAge      time.Duration `env:"PROCESS_STREAM_MAX_AGE" env-default:"168h"`
	AckWait           time.Duration `env:"PROCESS_ACK_WAIT" env-default:"5m"`
	MaxRetries        int           `env:"PROCESS_MAX_RETRIES" env-default:"5"`
	RetryDelay        time.Duration `env:"PROCESS_RETRY_DELAY" env-default:"10s"`
}

type Storage struct {
	Bucket          string        `env:"AWS_S3_BUCKET" env-default:"media"`
	Region          string        `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Endpoint        string        `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	UsePathStyle    bool          `env:"AWS_S3_USE_PATH_STYLE" env-default:"true"`
	MediaURL        string        `env:"MEDIA_URL" env-default:"https://media.example.com"`
	MediaInternal   string        `env:"MEDIA_INTERNAL_URL" env-default:""`
	ProbeTimeout    time.Duration `env:"MEDIA_PROBE_TIMEOUT" env-default:"30s"`
}

type Config struct {
	NATS    NATS
	Storage Storage

	DatabaseDSN      string `env:"DATABASE_DSN" env-default:"./data/nft.db"`
	RedisURL         string `env:"REDIS_URL" env-default:""`
	IndexerURL       string `env:"INDEXER_URL" env-default:"http://127.0.0.1:3001"`
	ExternalMediaURL string `env:"EXTERNAL_MEDIA_URL" env-default:"https://media.example.com"`
	GatewayURL       string `env:"IPFS_GATEWAY_URL" env-default:"https://ipfs.io/ipfs"`

	ThumbDir        string        `env:"THUMB_DIR" env-default:"./data/thumbs"`
	ThumbWidth      int           `env:"THUMB_WIDTH" env-default:"600"`
	ThumbHeight     int           `env:"THUMB_HEIGHT" env-default:"600"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" env-default:"30s"`
	// MaxFileSize is the largest asset, in bytes, that is downloaded for a
	// thumbnail or mirrored; zero disables the cap.
	MaxFileSize int64 `env:"MAX_FILE_SIZE" env-default:"67108864"`

	Workers       int    `env:"WORKERS" env-default:"4"`
	FFmpegWorkers int    `env:"FFMPEG_WORKERS" env-default:"2"`
	MetricsAddr   string `env:"METRICS_ADDR" env-default:":9090"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := positive("THUMB_WIDTH", c.ThumbWidth); err != nil {
		return err
	}
	if err := positive("THUMB_HEIGHT", c.ThumbHeight); err != nil {
		return err
	}
	if err := positive("WORKERS", c.Workers); err != nil {
		return err
	}
	if err := positive("FFMPEG_WORKERS", c.FFmpegWorkers); err != nil {
		return err
	}
	if err := positive("PROCESS_MAX_RETRIES", c.NATS.MaxRetries); err != nil {
		return err
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("MAX_FILE_SIZE must not be negative (got %d)", c.MaxFileSize)
	}
	for name, raw := range map[string]string{
		"EXTERNAL_MEDIA_URL": c.ExternalMediaURL,
		"IPFS_GATEWAY_URL":   c.GatewayURL,
		"MEDIA_URL":          c.Storage.MediaURL,
		"INDEXER_URL":        c.IndexerURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	switch c.LogFormat {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q, expected text, json or pretty", c.LogFormat)
	}
	return nil
}

func positive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return nil
}

// NewLogger builds the process logger for the configured level and format.
func NewLogger(level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	case "pretty":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.TimeOnly}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrRawBucketRequired is returned when RAW_BUCKET is not set.
	ErrRawBucketRequired = errors.New("config: RAW_BUCKET is required")
	// ErrProcessedBucketRequired is returned when PROCESSED_BUCKET is not set.
	ErrProcessedBucketRequired = errors.New("config: PROCESSED_BUCKET is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Object storage settings
	RawBucket          string `env:"RAW_BUCKET, required" json:"raw_bucket"`
	ProcessedBucket    string `env:"PROCESSED_BUCKET, required" json:"processed_bucket"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Ledger settings. When RedisAddr is empty an in-memory ledger is used.
	RedisAddr     string        `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string        `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	ClaimTTL      time.Duration `env:"CLAIM_TTL, default=15m" json:"claim_ttl"`

	// Scratch settings
	RawDir       string `env:"RAW_DIR, default=/tmp/transcoder/raw-videos" json:"raw_dir"`
	ProcessedDir string `env:"PROCESSED_DIR, default=/tmp/transcoder/processed-videos" json:"processed_dir"`

	// Processing settings
	TargetHeight     int           `env:"TARGET_HEIGHT, default=360" json:"target_height" validate:"min=144,max=2160"`
	FFmpegPath       string        `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	DownloadTimeout  time.Duration `env:"DOWNLOAD_TIMEOUT, default=5m" json:"download_timeout"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT, default=15m" json:"transcode_timeout"`
	UploadTimeout    time.Duration `env:"UPLOAD_TIMEOUT, default=5m" json:"upload_timeout"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// RedisEnabled returns true if a Redis-backed ledger is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set or bounds are violated.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "RAW_BUCKET") {
			return nil, ErrRawBucketRequired
		}
		if strings.Contains(err.Error(), "PROCESSED_BUCKET") {
			return nil, ErrProcessedBucketRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and that the
// target height is within the range downstream encoders accept (144-2160).
// The transcode adapter itself does no bounds checking, so height must be
// rejected here before any job runs with it.
func (c *Config) Validate() error {
	if c.RawBucket == "" {
		return ErrRawBucketRequired
	}
	if c.ProcessedBucket == "" {
		return ErrProcessedBucketRequired
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, RawBucket: %s, ProcessedBucket: %s, S3Region: %s, RedisAddr: %s, TargetHeight: %d, ClaimTTL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.RawBucket,
		c.ProcessedBucket,
		c.S3Region,
		c.RedisAddr,
		c.TargetHeight,
		c.ClaimTTL,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

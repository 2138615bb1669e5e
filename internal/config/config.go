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

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrGenAIAPIKeyRequired is returned when GENAI_API_KEY is not set.
	ErrGenAIAPIKeyRequired = errors.New("config: GENAI_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int    `env:"PORT, default=8080" json:"port"`
	CORSOrigins string `env:"CORS_ORIGINS, default=*" json:"cors_origins"`

	// Generation engine settings
	GenAIAPIKey string `env:"GENAI_API_KEY, required" json:"-"` // Masked in JSON
	GenAIModel  string `env:"GENAI_MODEL, default=veo-2.0-generate-001" json:"genai_model"`

	// Pipeline settings
	PollInterval time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	PollTimeout  time.Duration `env:"POLL_TIMEOUT, default=0" json:"poll_timeout"` // 0 waits indefinitely
	VideoDir     string        `env:"VIDEO_DIR, default=videos" json:"video_dir"`
	HLSDir       string        `env:"HLS_DIR, default=hls" json:"hls_dir"`
	FFmpegBin    string        `env:"FFMPEG_BIN, default=ffmpeg" json:"ffmpeg_bin"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Public           bool   `env:"S3_PUBLIC, default=false" json:"s3_public"`
	SignedURLTTLMin    int    `env:"SIGNED_URL_TTL_MIN, default=60" json:"signed_url_ttl_min"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional MongoDB settings; an in-memory store is used when unset
	MongoURI string `env:"MONGODB_URI" json:"-"` // Masked in JSON, may embed credentials
	MongoDB  string `env:"MONGODB_DB, default=veostudio" json:"mongodb_db"`

	// Optional prompt refinement settings
	OpenAIAPIKey string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	OpenAIModel  string `env:"OPENAI_MODEL, default=gpt-3.5-turbo" json:"openai_model"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MongoEnabled returns true if a MongoDB connection string is provided.
func (c *Config) MongoEnabled() bool {
	return c.MongoURI != ""
}

// PromptEnabled returns true if prompt refinement is configured.
func (c *Config) PromptEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// SignedURLTTL returns the presigned URL lifetime as a duration.
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLMin) * time.Minute
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "GENAI_API_KEY") {
			return nil, ErrGenAIAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return ErrGenAIAPIKeyRequired
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
		"Config{Port: %d, GenAIModel: %s, PollInterval: %s, PollTimeout: %s, VideoDir: %s, HLSDir: %s, S3Bucket: %s, S3Region: %s, S3Public: %t, MongoEnabled: %t, PromptEnabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GenAIModel,
		c.PollInterval,
		c.PollTimeout,
		c.VideoDir,
		c.HLSDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Public,
		c.MongoEnabled(),
		c.PromptEnabled(),
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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	DocsplitAPIKey string

	// Object source
	Buckets       []string
	KeyPrefix     string
	AWSRegion     string
	S3Endpoint    string
	S3PathStyle   bool
	PresignExpiry time.Duration

	// Content graph sink
	ContentGraphURL    string
	ContentGraphAPIKey string
	SinkRetries        int

	// Worker pool
	WorkerCount    int
	MaxQueueSize   int
	DocConcurrency int

	// Request limits
	MaxRequestBytes int64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocsplitAPIKey: os.Getenv("DOCSPLIT_API_KEY"),

		Buckets:       envList("BUCKETS"),
		KeyPrefix:     envOr("KEY_PREFIX", "production/"),
		AWSRegion:     os.Getenv("AWS_REGION"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3PathStyle:   envBool("S3_PATH_STYLE", false),
		PresignExpiry: envDuration("PRESIGN_EXPIRY", 15*time.Minute),

		ContentGraphURL:    envOr("CONTENT_GRAPH_URL", "http://localhost:8080"),
		ContentGraphAPIKey: os.Getenv("CONTENT_GRAPH_API_KEY"),
		SinkRetries:        envInt("SINK_RETRIES", 3),

		WorkerCount:    envInt("WORKER_COUNT", 2),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 16),
		DocConcurrency: envInt("DOC_CONCURRENCY", 8),

		MaxRequestBytes: envInt64("MAX_REQUEST_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults replaces non-positive limits with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.PresignExpiry <= 0 {
		c.PresignExpiry = 15 * time.Minute
	}
	if c.SinkRetries <= 0 {
		c.SinkRetries = 3
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 16
	}
	if c.DocConcurrency <= 0 {
		c.DocConcurrency = 8
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = 52428800
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
}

func (c Config) Validate() error {
	if c.DocsplitAPIKey == "" {
		return fmt.Errorf("DOCSPLIT_API_KEY is required")
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("BUCKETS is required")
	}
	if c.ContentGraphAPIKey == "" {
		return fmt.Errorf("CONTENT_GRAPH_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

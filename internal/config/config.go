package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Model artifact and reference dataset.
	ModelPath         string
	ReferenceDataPath string
	StatsMode         domain.StatsMode
	StatsTTL          time.Duration

	// HTTP surface.
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// Prediction audit trail. Disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaAuditTopic    string
	AuditEnabled       bool
	AuditBufferSize    int
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	statsMode, err := domain.ParseStatsMode(strings.ToLower(sharedcfg.EnvOrDefault("STATS_MODE", "startup")))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_MODE: %w", err)
	}

	statsTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("STATS_TTL", "5m"))
	if err != nil || statsTTL <= 0 {
		return nil, errors.New("invalid STATS_TTL")
	}

	maxBody, err := parsePositiveInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}

	bufferSize, err := parsePositiveInt("AUDIT_BUFFER_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ModelPath:         sharedcfg.EnvOrDefault("MODEL_PATH", "data/hanoi_fire_model.json"),
		ReferenceDataPath: sharedcfg.EnvOrDefault("REFERENCE_DATA_PATH", "data/hanoi_fire.csv"),
		StatsMode:         statsMode,
		StatsTTL:          statsTTL,

		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:       int64(maxBody),

		KafkaBrokers:       brokers,
		KafkaAuditTopic:    sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "fire-risk-predictions"),
		AuditEnabled:       len(brokers) > 0,
		AuditBufferSize:    bufferSize,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		cfg.AuditEnabled = v == "true"
	}

	if cfg.ModelPath == "" {
		return nil, errors.New("MODEL_PATH is required")
	}
	if cfg.ReferenceDataPath == "" {
		return nil, errors.New("REFERENCE_DATA_PATH is required")
	}
	if cfg.AuditEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("AUDIT_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.AuditEnabled && cfg.KafkaAuditTopic == "" {
		return nil, errors.New("KAFKA_AUDIT_TOPIC is required when audit is enabled")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package config loads GLADyS's environment-variable-driven configuration,
// following the same getEnvOrDefault + strconv/time.ParseDuration +
// explicit Validate() pattern the teacher repo uses for its database
// config (pkg/database/config.go), generalized to the full variable list
// in spec §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full set of environment-variable-driven options named in
// spec §6.
type Config struct {
	// RPC targets.
	SalienceMemoryAddress string
	MemoryStorageAddress  string
	ExecutiveAddress      string

	// Legacy/compatibility.
	MomentWindowMS        int
	HighSalienceThreshold float64

	// Routing thresholds.
	HeuristicConfidenceThreshold float64
	EmergencyConfidenceThreshold float64
	EmergencyThreatThreshold     float64

	// Queue timing.
	EventTimeoutMS          int
	TimeoutScanInterval     time.Duration
	MaxEvaluationCandidates int

	// Outcome watcher.
	OutcomeWatcherEnabled  bool
	OutcomeCleanupInterval time.Duration
	OutcomeTimeoutSec      int
	OutcomePatternsJSON    string

	// Learning.
	LearningStrategy          string
	LearningUndoWindowSec     int
	LearningIgnoredThreshold  int
	LearningUndoKeywords      []string
	LearningImplicitMagnitude float64
	LearningExplicitMagnitude float64

	// Embedding.
	EmbeddingModelName string
	EmbeddingDim       int

	// Database (mirrors the teacher's own database/config.go shape).
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Vector index (Qdrant).
	QdrantDSN        string
	QdrantCollection string

	// Concurrency.
	MaxWorkers int

	// Observability.
	LogFormat    string
	OTLPEndpoint string

	// Redis (cross-replica subscriber fan-out).
	RedisAddr string

	// HTTP health surface.
	HealthPort string

	// Data masking: redact secrets/credentials out of raw event text
	// before it is persisted or handed to the LLM path.
	MaskingEnabled bool

	// Episodic-event retention (Memory Service).
	EventRetentionDays     int
	EventRetentionInterval time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid float %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q: %w", key, v, err)
	}
	return b, nil
}

func getEnvDurationMS(key string, defMS int) (time.Duration, error) {
	n, err := getEnvInt(key, defMS)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func getEnvDurationSec(key string, defSec int) (time.Duration, error) {
	n, err := getEnvInt(key, defSec)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// LoadFromEnv loads and validates configuration from the process
// environment, applying the documented defaults from spec §6.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		SalienceMemoryAddress: getEnv("SALIENCE_MEMORY_ADDRESS", "localhost:7001"),
		MemoryStorageAddress:  getEnv("MEMORY_STORAGE_ADDRESS", "localhost:7002"),
		ExecutiveAddress:      getEnv("EXECUTIVE_ADDRESS", "localhost:7003"),

		OutcomePatternsJSON: getEnv("OUTCOME_PATTERNS_JSON", "[]"),
		LearningStrategy:    getEnv("LEARNING_STRATEGY", "bayesian"),
		LearningUndoKeywords: strings.Split(
			getEnv("LEARNING_UNDO_KEYWORDS", "undo,revert,cancel,rollback,nevermind,never mind"), ","),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "default"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "gladys"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "gladys"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		QdrantDSN:        getEnv("QDRANT_DSN", "http://localhost:6334"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "heuristics"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		LogFormat:    getEnv("GLADYS_LOG_FORMAT", "json"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		HealthPort:   getEnv("HEALTH_PORT", "8080"),
	}

	var err error
	if cfg.MomentWindowMS, err = getEnvInt("MOMENT_WINDOW_MS", 100); err != nil {
		return nil, err
	}
	if cfg.HighSalienceThreshold, err = getEnvFloat("HIGH_SALIENCE_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	if cfg.HeuristicConfidenceThreshold, err = getEnvFloat("HEURISTIC_CONFIDENCE_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	if cfg.EmergencyConfidenceThreshold, err = getEnvFloat("EMERGENCY_CONFIDENCE_THRESHOLD", 0.95); err != nil {
		return nil, err
	}
	if cfg.EmergencyThreatThreshold, err = getEnvFloat("EMERGENCY_THREAT_THRESHOLD", 0.9); err != nil {
		return nil, err
	}
	if cfg.EventTimeoutMS, err = getEnvInt("EVENT_TIMEOUT_MS", 30000); err != nil {
		return nil, err
	}
	if cfg.TimeoutScanInterval, err = getEnvDurationMS("TIMEOUT_SCAN_INTERVAL_MS", 2000); err != nil {
		return nil, err
	}
	if cfg.MaxEvaluationCandidates, err = getEnvInt("MAX_EVALUATION_CANDIDATES", 5); err != nil {
		return nil, err
	}
	if cfg.OutcomeWatcherEnabled, err = getEnvBool("OUTCOME_WATCHER_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.OutcomeCleanupInterval, err = getEnvDurationSec("OUTCOME_CLEANUP_INTERVAL_SEC", 30); err != nil {
		return nil, err
	}
	if cfg.OutcomeTimeoutSec, err = getEnvInt("OUTCOME_TIMEOUT_SEC", 120); err != nil {
		return nil, err
	}
	if cfg.LearningUndoWindowSec, err = getEnvInt("LEARNING_UNDO_WINDOW_SEC", 30); err != nil {
		return nil, err
	}
	if cfg.LearningIgnoredThreshold, err = getEnvInt("LEARNING_IGNORED_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.LearningImplicitMagnitude, err = getEnvFloat("LEARNING_IMPLICIT_MAGNITUDE", 1.0); err != nil {
		return nil, err
	}
	if cfg.LearningExplicitMagnitude, err = getEnvFloat("LEARNING_EXPLICIT_MAGNITUDE", 0.8); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim, err = getEnvInt("EMBEDDING_DIM", 384); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = getEnvDurationSec("DB_CONN_MAX_LIFETIME_SEC", 1800); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxIdleTime, err = getEnvDurationSec("DB_CONN_MAX_IDLE_TIME_SEC", 300); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers, err = getEnvInt("MAX_WORKERS", 10); err != nil {
		return nil, err
	}
	if cfg.MaskingEnabled, err = getEnvBool("GLADYS_MASKING_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.EventRetentionDays, err = getEnvInt("EVENT_RETENTION_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.EventRetentionInterval, err = getEnvDurationSec("EVENT_RETENTION_INTERVAL_SEC", 3600); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate mirrors the teacher's database/config.go: descriptive errors,
// never a partial/ambiguous config.
func (c *Config) Validate() error {
	if c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", c.DBMaxIdleConns, c.DBMaxOpenConns)
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.EmergencyConfidenceThreshold <= 0 || c.EmergencyConfidenceThreshold > 1 {
		return fmt.Errorf("EMERGENCY_CONFIDENCE_THRESHOLD must be in (0,1], got %f", c.EmergencyConfidenceThreshold)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1")
	}
	return nil
}

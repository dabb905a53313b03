package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.EmergencyConfidenceThreshold)
	assert.Equal(t, 0.9, cfg.EmergencyThreatThreshold)
	assert.Equal(t, 0.7, cfg.HeuristicConfidenceThreshold)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, "bayesian", cfg.LearningStrategy)
	assert.Contains(t, cfg.LearningUndoKeywords, "undo")
}

func TestValidate_RejectsIdleExceedingOpen(t *testing.T) {
	cfg := &Config{
		DBMaxOpenConns:               5,
		DBMaxIdleConns:               10,
		EmbeddingDim:                 384,
		EmergencyConfidenceThreshold: 0.95,
		MaxWorkers:                   1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MAX_IDLE_CONNS")
}

func TestValidate_RejectsBadThreshold(t *testing.T) {
	cfg := &Config{
		DBMaxOpenConns:               5,
		DBMaxIdleConns:               1,
		EmbeddingDim:                 384,
		EmergencyConfidenceThreshold: 1.5,
		MaxWorkers:                   1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMERGENCY_CONFIDENCE_THRESHOLD")
}

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailFileReturnsLastNLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\nfive\n"), 0o644))

	err := tailFile(path, 2)
	assert.NoError(t, err)
}

func TestTailFileMissingFileErrors(t *testing.T) {
	err := tailFile(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}

func TestGetEnvFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "fallback", getEnv("GLADYS_NONEXISTENT_VAR_XYZ", "fallback"))
}

func TestGetEnvReturnsOverride(t *testing.T) {
	t.Setenv("GLADYS_TEST_VAR", "override")
	assert.Equal(t, "override", getEnv("GLADYS_TEST_VAR", "fallback"))
}

func TestHealthReportsUnreachableAsError(t *testing.T) {
	t.Setenv("GLADYS_MEMORY_HEALTH_ADDR", "http://127.0.0.1:1/healthz")
	t.Setenv("GLADYS_EXECUTIVE_HEALTH_ADDR", "http://127.0.0.1:1/healthz")
	t.Setenv("GLADYS_ORCHESTRATOR_HEALTH_ADDR", "http://127.0.0.1:1/healthz")
	err := Health(nil)
	assert.Error(t, err)
}

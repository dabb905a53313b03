package cli

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectServicesDefaultsToAll(t *testing.T) {
	assert.Equal(t, services, selectServices(nil))
}

func TestSelectServicesFiltersToNamed(t *testing.T) {
	assert.Equal(t, []string{"memory"}, selectServices([]string{"memory"}))
}

func TestSelectServicesUnknownNameFallsBackToAll(t *testing.T) {
	assert.Equal(t, services, selectServices([]string{"bogus"}))
}

func TestAliveDetectsCurrentProcess(t *testing.T) {
	assert.True(t, alive(os.Getpid()))
}

func TestReadPIDRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pidFile(dir, "memory"), []byte(strconv.Itoa(os.Getpid())), 0o644))

	pid, ok := readPID(dir, "memory")
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPIDMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, ok := readPID(dir, "memory")
	assert.False(t, ok)
}

func TestRunDirRespectsEnvOverride(t *testing.T) {
	t.Setenv("GLADYS_RUN_DIR", "/tmp/custom-run-dir")
	assert.Equal(t, "/tmp/custom-run-dir", RunDir())
}

func TestStatusReportsStoppedWhenNoPidfile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GLADYS_RUN_DIR", dir)
	assert.NoError(t, Status([]string{"memory"}))
}

func TestStatusReportsStaleWhenProcessGone(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GLADYS_RUN_DIR", dir)
	require.NoError(t, os.WriteFile(pidFile(dir, "memory"), []byte("999999"), 0o644))
	assert.NoError(t, Status([]string{"memory"}))
}

func TestStopReportsNotRunningWithoutError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GLADYS_RUN_DIR", dir)
	assert.NoError(t, Stop([]string{"memory"}))
}

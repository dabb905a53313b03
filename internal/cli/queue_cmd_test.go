package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRequiresSubcommand(t *testing.T) {
	err := Queue(nil)
	assert.ErrorContains(t, err, "subcommand")
}

func TestQueueUnknownSubcommand(t *testing.T) {
	err := Queue([]string{"bogus"})
	assert.ErrorContains(t, err, "unknown subcommand")
}

func TestOrchestratorAddrDefault(t *testing.T) {
	t.Setenv("ORCHESTRATOR_ADDRESS", "")
	assert.Equal(t, "localhost:7000", orchestratorAddr())
}

func TestOrchestratorAddrOverride(t *testing.T) {
	t.Setenv("ORCHESTRATOR_ADDRESS", "orchestrator.internal:7000")
	assert.Equal(t, "orchestrator.internal:7000", orchestratorAddr())
}

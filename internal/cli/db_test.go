package cli

import (
	"testing"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestHasFlag(t *testing.T) {
	assert.True(t, hasFlag([]string{"--force", "extra"}, "--force"))
	assert.False(t, hasFlag([]string{"extra"}, "--force"))
	assert.False(t, hasFlag(nil, "--force"))
}

func TestCleanRefusesWithoutForce(t *testing.T) {
	err := Clean(nil, &config.Config{})
	assert.ErrorContains(t, err, "--force")
}

package cli

import (
	"testing"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestCacheRequiresSubcommand(t *testing.T) {
	err := Cache(nil, &config.Config{})
	assert.ErrorContains(t, err, "subcommand")
}

package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeLowercasesAndDedupes(t *testing.T) {
	toks := tokenize("Disk usage HIGH disk usage on host-1")
	assert.Contains(t, toks, "disk")
	assert.Contains(t, toks, "usage")
	assert.Contains(t, toks, "high")
	seen := make(map[string]bool)
	for _, tok := range toks {
		assert.False(t, seen[tok], "tokenize should dedupe %q", tok)
		seen[tok] = true
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	toks := tokenize("a an at disk")
	assert.NotContains(t, toks, "a")
	assert.NotContains(t, toks, "an")
	assert.NotContains(t, toks, "at")
	assert.Contains(t, toks, "disk")
}

func TestNormalizeTokenStripsPunctuation(t *testing.T) {
	assert.Equal(t, "host1", normalizeToken("Host-1!"))
	assert.Equal(t, "disk", normalizeToken("DISK"))
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, hasPrefix("slack:restart the pod", "slack:"))
	assert.False(t, hasPrefix("pagerduty:restart", "slack:"))
	assert.False(t, hasPrefix("sl", "slack:"))
}

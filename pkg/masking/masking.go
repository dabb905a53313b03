// Package masking redacts secrets and credentials out of raw incident
// text before it is persisted as an episodic event or handed to
// Executive's LLM decision path. Adapted from the teacher's
// pkg/masking: the same compiled-pattern, fail-open design, stripped
// of the MCP-server-registry and alert-payload plumbing this domain
// has no equivalent of.
package masking

import "regexp"

// Pattern is one compiled redaction rule: text matching Regex is
// replaced with Replacement.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

var builtinPatterns = []Pattern{
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[REDACTED_AWS_KEY]"},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_\.]+`), "Bearer [REDACTED_TOKEN]"},
	{"credential_assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*\S+`), "$1=[REDACTED]"},
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED_PRIVATE_KEY]"},
}

// Service applies the built-in pattern table to text. Stateless once
// constructed; safe for concurrent use.
type Service struct {
	patterns []Pattern
	enabled  bool
}

// New builds a masking service from the built-in pattern table.
// enabled lets a deployment turn masking off entirely (e.g. local dev
// against synthetic data) without a branch at every call site.
func New(enabled bool) *Service {
	return &Service{patterns: builtinPatterns, enabled: enabled}
}

// Mask redacts every built-in pattern match in text. Fail-open by
// construction: a plain regex replace cannot error, so malformed input
// always still reaches storage rather than being dropped.
func (s *Service) Mask(text string) string {
	if s == nil || !s.enabled || text == "" {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

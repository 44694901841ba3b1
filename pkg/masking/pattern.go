package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns covers the PII categories most likely to surface in
// scraped social posts and news excerpts: emails, phone numbers, and
// bearer-style API tokens pasted into a post by mistake.
func builtinPatterns() []*CompiledPattern {
	return []*CompiledPattern{
		{
			Name:        "email",
			Regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
			Replacement: "[EMAIL_REDACTED]",
			Description: "email addresses",
		},
		{
			Name:        "phone",
			Regex:       regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			Replacement: "[PHONE_REDACTED]",
			Description: "US-format phone numbers",
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)\b(?:bearer|api[_-]?key|token)[:\s=]+[A-Za-z0-9._-]{16,}`),
			Replacement: "[TOKEN_REDACTED]",
			Description: "bearer tokens and API keys",
		},
	}
}

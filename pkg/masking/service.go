// Package masking redacts PII from raw evidence excerpts before they are
// persisted, so a leaked database dump or log line never carries a
// reporter's phone number or a pasted API token forward.
package masking

import "strings"

// Service applies PII masking to Evidence.RawExcerpt and Signal text
// before persistence. Created once at startup; stateless aside from its
// compiled patterns, safe for concurrent use.
type Service struct {
	patterns    []*CompiledPattern
	codeMaskers []Masker
}

// NewService builds a Service with the built-in pattern set compiled,
// plus any extra code-based maskers the caller registers.
func NewService(extra ...Masker) *Service {
	return &Service{
		patterns:    builtinPatterns(),
		codeMaskers: extra,
	}
}

// Mask applies every built-in pattern and registered code masker to text,
// returning the redacted result. Safe to call on empty strings.
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	return masked
}

// MaskExcess truncates text to maxLen after masking, so an oversized
// pasted excerpt can't smuggle unredacted PII past maxLen.
func (s *Service) MaskExcess(text string, maxLen int) string {
	masked := s.Mask(text)
	if maxLen <= 0 || len(masked) <= maxLen {
		return masked
	}
	return strings.TrimSpace(masked[:maxLen]) + "…"
}

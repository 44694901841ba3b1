package masking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskRedactsEmailsPhonesAndTokens(t *testing.T) {
	s := NewService()

	out := s.Mask("Contact Jane at jane.doe@example.org or 555-123-4567 about this, token=abcdef0123456789ABCDEF")

	assert.NotContains(t, out, "jane.doe@example.org")
	assert.Contains(t, out, "[EMAIL_REDACTED]")
	assert.NotContains(t, out, "555-123-4567")
	assert.Contains(t, out, "[PHONE_REDACTED]")
	assert.Contains(t, out, "[TOKEN_REDACTED]")
}

func TestMaskLeavesCleanTextUnchanged(t *testing.T) {
	s := NewService()

	text := "Water main break reported near 5th and Main, city crews en route."
	assert.Equal(t, text, s.Mask(text))
}

func TestMaskHandlesEmptyString(t *testing.T) {
	s := NewService()
	assert.Equal(t, "", s.Mask(""))
}

func TestMaskExcessTruncatesAfterMasking(t *testing.T) {
	s := NewService()

	long := strings.Repeat("a", 50) + " jane.doe@example.org " + strings.Repeat("b", 50)
	out := s.MaskExcess(long, 20)

	assert.LessOrEqual(t, len(out), 23) // 20 bytes + 3-byte ellipsis
	assert.NotContains(t, out, "jane.doe@example.org")
}

type upperMasker struct{}

func (upperMasker) Name() string              { return "upper" }
func (upperMasker) AppliesTo(data string) bool { return strings.Contains(data, "SECRET") }
func (upperMasker) Mask(data string) string    { return strings.ReplaceAll(data, "SECRET", "[REDACTED]") }

func TestMaskAppliesRegisteredCodeMaskers(t *testing.T) {
	s := NewService(upperMasker{})

	out := s.Mask("this post contains SECRET info")
	assert.Equal(t, "this post contains [REDACTED] info", out)
}

package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashIgnoresWhitespaceAndCase(t *testing.T) {
	a := ContentHash("Free  Food  Tonight\n\nat the park")
	b := ContentHash("free food tonight at the park")
	assert.Equal(t, a, b)
}

func TestContentHashDiffersOnSubstance(t *testing.T) {
	a := ContentHash("Free food tonight")
	b := ContentHash("Free food tomorrow")
	assert.NotEqual(t, a, b)
}

package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogBackendSendNeverErrors(t *testing.T) {
	b := NewLogBackend(nil)
	err := b.Send(context.Background(), Report{
		City:          "springfield",
		IssuesCreated: 3,
		SourcesReset:  1,
	})
	assert.NoError(t, err)
}

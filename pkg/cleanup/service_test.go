package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
)

type fakeCityLister struct {
	cities []*config.CityProfile
}

func (f fakeCityLister) List() []*config.CityProfile { return f.cities }

func TestRunAllPurgesResolvedIssuesPastRetention(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: "iss-1", City: "springfield", Category: graph.IssueEchoChamber,
	})
	require.NoError(t, err)
	require.NoError(t, mem.ExpireIssue(ctx, "iss-1"))

	// A retention window of 0 makes "resolved just now" already past cutoff.
	svc := NewService(mem, fakeCityLister{cities: []*config.CityProfile{{CityKey: "springfield"}}}, time.Hour, 0)
	svc.runAll(ctx)

	remaining, err := mem.PurgeResolvedIssues(ctx, "springfield", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "already purged by runAll, nothing left to purge")
}

func TestRunAllKeepsIssuesWithinRetention(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: "iss-1", City: "springfield", Category: graph.IssueEchoChamber,
	})
	require.NoError(t, err)
	require.NoError(t, mem.ExpireIssue(ctx, "iss-1"))

	svc := NewService(mem, fakeCityLister{cities: []*config.CityProfile{{CityKey: "springfield"}}}, time.Hour, 365*24*time.Hour)
	svc.runAll(ctx)

	// runAll's own cutoff (now - 365 days) is far before resolved_at (now),
	// so the issue survives. Confirm it's still there with a future cutoff.
	remaining, err := mem.PurgeResolvedIssues(ctx, "springfield", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "issue resolved within retention should not have been purged by runAll")
}

func TestStartAndStopRunsWithoutPanicking(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem, fakeCityLister{cities: []*config.CityProfile{{CityKey: "springfield"}}}, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	svc.Stop()
}

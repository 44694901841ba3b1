package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapabilities struct {
	inFlight  atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeCapabilities) FetchURL(ctx context.Context, url string) (*RawPage, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if url == "bad" {
		return nil, fmt.Errorf("boom")
	}
	return &RawPage{URL: url, Body: "ok"}, nil
}

func (f *fakeCapabilities) SearchWeb(ctx context.Context, query string) ([]Hit, error) { return nil, nil }
func (f *fakeCapabilities) FetchSocial(ctx context.Context, platform, handle string, n int) ([]Post, error) {
	return nil, nil
}
func (f *fakeCapabilities) FetchRSS(ctx context.Context, url string) ([]Item, error) { return nil, nil }

func TestFetchURLsRespectsConcurrencyLimit(t *testing.T) {
	caps := &fakeCapabilities{}
	pool := NewPool(PoolLimits{Web: 3, Social: 1, Search: 1})

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.org/%d", i)
	}

	results := pool.FetchURLs(context.Background(), caps, urls)
	require.Len(t, results, 20)
	assert.LessOrEqual(t, caps.maxInFlight.Load(), int64(3))
}

func TestFetchURLsCollectsNonFatalErrors(t *testing.T) {
	caps := &fakeCapabilities{}
	pool := NewPool(DefaultPoolLimits())

	results := pool.FetchURLs(context.Background(), caps, []string{"good", "bad"})
	require.Len(t, results, 2)

	var sawErr, sawOK bool
	for _, r := range results {
		if r.Err != nil {
			sawErr = true
		} else {
			sawOK = true
		}
	}
	assert.True(t, sawErr)
	assert.True(t, sawOK)
}

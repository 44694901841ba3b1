package fetch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PoolLimits bounds how many fetches of each capability a Scout run
// issues concurrently (§4.3: "typically 10 web, 10 social, 5 web-search").
type PoolLimits struct {
	Web    int64
	Social int64
	Search int64
}

// DefaultPoolLimits matches the concurrency figures spec.md calls out.
func DefaultPoolLimits() PoolLimits {
	return PoolLimits{Web: 10, Social: 10, Search: 5}
}

// Pool bounds fetch concurrency with per-capability semaphores, mirroring
// the worker pool's bounded-concurrency shape (pkg/queue/pool.go) but for
// a single run's fan-out rather than a long-lived worker pool.
type Pool struct {
	webSem    *semaphore.Weighted
	socialSem *semaphore.Weighted
	searchSem *semaphore.Weighted
}

// NewPool constructs a Pool with the given limits.
func NewPool(limits PoolLimits) *Pool {
	return &Pool{
		webSem:    semaphore.NewWeighted(limits.Web),
		socialSem: semaphore.NewWeighted(limits.Social),
		searchSem: semaphore.NewWeighted(limits.Search),
	}
}

// Result pairs a fetch input with its outcome; failures are non-fatal
// per §4.3, so Result carries Err rather than aborting the batch.
type Result[T any] struct {
	Input string
	Value T
	Err   error
}

// FetchURLs fetches every url with bounded parallelism and returns one
// Result per input, in no particular order.
func (p *Pool) FetchURLs(ctx context.Context, caps Capabilities, urls []string) []Result[*RawPage] {
	return runBounded(ctx, p.webSem, urls, func(ctx context.Context, url string) (*RawPage, error) {
		return caps.FetchURL(ctx, url)
	})
}

// FetchRSSFeeds fetches every feed URL with bounded parallelism.
func (p *Pool) FetchRSSFeeds(ctx context.Context, caps Capabilities, urls []string) []Result[[]Item] {
	return runBounded(ctx, p.webSem, urls, func(ctx context.Context, url string) ([]Item, error) {
		return caps.FetchRSS(ctx, url)
	})
}

// SearchQueries runs every query with bounded parallelism.
func (p *Pool) SearchQueries(ctx context.Context, caps Capabilities, queries []string) []Result[[]Hit] {
	return runBounded(ctx, p.searchSem, queries, func(ctx context.Context, q string) ([]Hit, error) {
		return caps.SearchWeb(ctx, q)
	})
}

// SocialTarget identifies one account to poll.
type SocialTarget struct {
	Platform string
	Handle   string
	N        int
}

// FetchSocialAccounts fetches every (platform, handle) pair with bounded
// parallelism.
func (p *Pool) FetchSocialAccounts(ctx context.Context, caps Capabilities, targets []SocialTarget) []Result[[]Post] {
	inputs := make([]string, len(targets))
	byInput := make(map[string]SocialTarget, len(targets))
	for i, t := range targets {
		key := t.Platform + ":" + t.Handle
		inputs[i] = key
		byInput[key] = t
	}
	return runBounded(ctx, p.socialSem, inputs, func(ctx context.Context, key string) ([]Post, error) {
		t := byInput[key]
		return caps.FetchSocial(ctx, t.Platform, t.Handle, t.N)
	})
}

func runBounded[T any](ctx context.Context, sem *semaphore.Weighted, inputs []string, fn func(context.Context, string) (T, error)) []Result[T] {
	results := make([]Result[T], len(inputs))
	var wg sync.WaitGroup

	for i, input := range inputs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result[T]{Input: input, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			defer sem.Release(1)
			value, err := fn(ctx, input)
			if err != nil {
				slog.Warn("fetch failed", "input", input, "error", err)
			}
			results[i] = Result[T]{Input: input, Value: value, Err: err}
		}(i, input)
	}

	wg.Wait()
	return results
}

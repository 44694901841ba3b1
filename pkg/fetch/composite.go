package fetch

import (
	"context"
	"fmt"
)

// SearchProvider is the operator-supplied web-search client (§1 Non-
// goals: "we specify the capabilities the core consumes, not their
// clients"). Implementations typically wrap a commercial search API.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// SocialProvider is the operator-supplied social-media client, one per
// platform (Instagram, Facebook, Reddit, TikTok, Twitter/X, …).
type SocialProvider interface {
	FetchPosts(ctx context.Context, handle string, n int) ([]Post, error)
}

// Composite implements Capabilities by routing fetch_url to either the
// static or headless fetcher depending on which the caller constructed
// it with, fetch_rss to RSSFetcher, and search/social out to
// operator-supplied providers registered per platform.
type Composite struct {
	Static   *StaticFetcher
	Headless *HeadlessFetcher
	RSS      *RSSFetcher
	Search   SearchProvider
	Social   map[string]SocialProvider
}

// FetchURL implements Capabilities. Headless is preferred when present;
// callers that need the static fetcher specifically for a given source
// should call StaticFetcher.FetchURL directly instead of going through
// Composite (the scheduler already knows each Source's Kind).
func (c *Composite) FetchURL(ctx context.Context, url string) (*RawPage, error) {
	if c.Headless != nil {
		return c.Headless.FetchURL(ctx, url)
	}
	if c.Static != nil {
		return c.Static.FetchURL(ctx, url)
	}
	return nil, fmt.Errorf("no url fetcher configured")
}

// SearchWeb implements Capabilities.
func (c *Composite) SearchWeb(ctx context.Context, query string) ([]Hit, error) {
	if c.Search == nil {
		return nil, fmt.Errorf("no search provider configured")
	}
	return c.Search.Search(ctx, query)
}

// FetchSocial implements Capabilities.
func (c *Composite) FetchSocial(ctx context.Context, platform, handle string, n int) ([]Post, error) {
	provider, ok := c.Social[platform]
	if !ok {
		return nil, fmt.Errorf("no social provider configured for platform %q", platform)
	}
	return provider.FetchPosts(ctx, handle, n)
}

// FetchRSS implements Capabilities.
func (c *Composite) FetchRSS(ctx context.Context, url string) ([]Item, error) {
	if c.RSS == nil {
		return nil, fmt.Errorf("no rss fetcher configured")
	}
	return c.RSS.FetchRSS(ctx, url)
}

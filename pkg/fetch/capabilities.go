package fetch

import "context"

// Capabilities is the full capability set the Scout consumes (§4.3). Per
// spec scope, social-media and web-search clients are provided by the
// operator (an actual Instagram/Reddit/TikTok/etc. SDK, or a search
// provider's API) — this repo defines the interface its pipeline calls
// against, not those concrete third-party clients. FetchURL is satisfied
// by StaticFetcher or HeadlessFetcher; FetchRSS by RSSFetcher.
type Capabilities interface {
	FetchURL(ctx context.Context, url string) (*RawPage, error)
	SearchWeb(ctx context.Context, query string) ([]Hit, error)
	FetchSocial(ctx context.Context, platform, handle string, n int) ([]Post, error)
	FetchRSS(ctx context.Context, url string) ([]Item, error)
}

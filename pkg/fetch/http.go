package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StaticFetcher fetches a URL with a plain HTTP client — the default
// capability for CuratedSource.Kind == "static" (§4.3, SPEC_FULL.md
// §4.3 headless capability resolution).
type StaticFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewStaticFetcher builds a StaticFetcher with a sane default timeout.
func NewStaticFetcher(timeout time.Duration) *StaticFetcher {
	return &StaticFetcher{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// FetchURL implements the fetch_url capability.
func (f *StaticFetcher) FetchURL(ctx context.Context, url string) (*RawPage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "civic-scout/1.0 (+https://example.org/scout)")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyChars*4))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}

	text := truncate(extractText(string(body)))
	now := time.Now()
	return &RawPage{
		URL:         url,
		Body:        text,
		ContentHash: ContentHash(text),
		FetchedAt:   now,
	}, nil
}

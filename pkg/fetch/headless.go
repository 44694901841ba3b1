package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// HeadlessFetcher renders a page in a headless Chromium instance before
// extracting text — used for CuratedSource.Kind == "headless" sources
// whose content only materializes after client-side rendering
// (SPEC_FULL.md §4.3 headless capability resolution).
type HeadlessFetcher struct {
	browser *rod.Browser
	timeout time.Duration
}

// NewHeadlessFetcher launches a managed headless Chromium and returns a
// fetcher bound to it. Call Close when the Scout run finishes.
func NewHeadlessFetcher(timeout time.Duration) (*HeadlessFetcher, error) {
	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	return &HeadlessFetcher{browser: browser, timeout: timeout}, nil
}

// Close releases the underlying browser process.
func (f *HeadlessFetcher) Close() error {
	return f.browser.Close()
}

// FetchURL implements the fetch_url capability for headless sources.
func (f *HeadlessFetcher) FetchURL(ctx context.Context, url string) (*RawPage, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", url, err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(f.timeout)
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", url, err)
	}

	text := truncate(extractText(html))
	now := time.Now()
	return &RawPage{
		URL:         url,
		Body:        text,
		ContentHash: ContentHash(text),
		FetchedAt:   now,
	}, nil
}

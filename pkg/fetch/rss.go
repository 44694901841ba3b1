package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// rssFeed and atomFeed model just enough of RSS 2.0 / Atom to pull title,
// link, description/content, and publish date. No third-party feed
// parser appears anywhere in the retrieval pack (see DESIGN.md); this is
// the one deliberate stdlib fallback in the fetch layer.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

func parseFeedDate(s string) *time.Time {
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// RSSFetcher implements the fetch_rss(url) capability.
type RSSFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewRSSFetcher builds an RSSFetcher with a sane default timeout.
func NewRSSFetcher(timeout time.Duration) *RSSFetcher {
	return &RSSFetcher{Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

// FetchRSS implements the fetch_rss capability, trying RSS 2.0 first and
// falling back to Atom.
func (f *RSSFetcher) FetchRSS(ctx context.Context, url string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rss request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyChars*10))
	if err != nil {
		return nil, fmt.Errorf("read rss body %s: %w", url, err)
	}

	var rss rssFeed
	if err := xml.Unmarshal(raw, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return itemsFromRSS(rss), nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(raw, &atom); err == nil && len(atom.Entries) > 0 {
		return itemsFromAtom(atom), nil
	}

	return nil, fmt.Errorf("unrecognized feed format at %s", url)
}

func itemsFromRSS(feed rssFeed) []Item {
	out := make([]Item, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		body := truncate(it.Description)
		out = append(out, Item{
			URL:         it.Link,
			Title:       it.Title,
			Body:        body,
			ContentHash: ContentHash(body),
			PublishedAt: parseFeedDate(it.PubDate),
		})
	}
	return out
}

func itemsFromAtom(feed atomFeed) []Item {
	out := make([]Item, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		body := e.Content
		if body == "" {
			body = e.Summary
		}
		body = truncate(body)
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		out = append(out, Item{
			URL:         e.Link.Href,
			Title:       e.Title,
			Body:        body,
			ContentHash: ContentHash(body),
			PublishedAt: parseFeedDate(published),
		})
	}
	return out
}

package scout

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
)

// groupByFetchKind partitions due sources by how §4.3's capability set
// fetches them, so each group can go through the matching Pool method.
func groupByFetchKind(due []*graph.Source) (web, rss, query []*graph.Source, social map[string][]*graph.Source) {
	social = make(map[string][]*graph.Source)
	for _, s := range due {
		switch s.SourceType {
		case graph.SourceCuratedWeb, graph.SourceCuratedHeadless:
			web = append(web, s)
		case graph.SourceRSS:
			rss = append(rss, s)
		case graph.SourceWebQuery:
			query = append(query, s)
		case graph.SourceInstagram, graph.SourceFacebook, graph.SourceReddit, graph.SourceTikTok, graph.SourceTwitter:
			platform := string(s.SourceType)
			social[platform] = append(social[platform], s)
		}
		// human_submission sources are written directly to the graph by
		// an external intake path, never scraped — excluded here.
	}
	return
}

// itemToPage converts one RSS/Atom entry into the RawPage shape the
// extractor consumes; Item has no FetchedAt of its own (feeds don't
// report fetch time), so the caller's wall-clock stands in.
func itemToPage(it fetch.Item, at time.Time) *fetch.RawPage {
	return &fetch.RawPage{
		URL:         it.URL,
		Body:        it.Title + "\n" + it.Body,
		ContentHash: it.ContentHash,
		FetchedAt:   at,
		PublishedAt: it.PublishedAt,
	}
}

// postToPage converts one social post into the RawPage shape the
// extractor consumes.
func postToPage(p fetch.Post, at time.Time) *fetch.RawPage {
	return &fetch.RawPage{
		URL:         p.URL,
		Body:        p.Body,
		ContentHash: p.ContentHash,
		FetchedAt:   at,
		PublishedAt: p.PublishedAt,
	}
}

// hitToPage converts one search hit into the RawPage shape the
// extractor consumes; a hit carries only a snippet, so the extractor
// sees less text than a full fetch would yield — acceptable for the
// web_query source type, which exists to surface candidate URLs more
// than to supply extraction-ready bodies (a hit worth pursuing further
// becomes its own curated/RSS source via the discoverer, §4.7).
func hitToPage(h fetch.Hit, at time.Time) *fetch.RawPage {
	body := h.Title + "\n" + h.Snippet
	return &fetch.RawPage{
		URL:         h.URL,
		Body:        body,
		ContentHash: xxhash.Sum64String(body),
		FetchedAt:   at,
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/discover"
	"github.com/civic-scout/scout/pkg/extract"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph/store"
	"github.com/civic-scout/scout/pkg/investigate"
	"github.com/civic-scout/scout/pkg/llmprovider"
	"github.com/civic-scout/scout/pkg/masking"
	"github.com/civic-scout/scout/pkg/notify"
	"github.com/civic-scout/scout/pkg/respond"
	"github.com/civic-scout/scout/pkg/scout"
	"github.com/civic-scout/scout/pkg/similarity"
	"github.com/civic-scout/scout/pkg/story"
	"github.com/civic-scout/scout/pkg/supervisor"
)

// deps bundles the constructed collaborators every subcommand needs.
// A single *store.Postgres backs both the Orchestrator and Supervisor,
// matching §4.12's requirement that the two run against the same graph
// under separate locks rather than separate connections racing writes.
type deps struct {
	registry *config.Registry
	pg       *store.Postgres
	llm      *llmprovider.Client
}

func buildDeps(ctx context.Context) (*deps, error) {
	registry, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("load city profiles: %w", err)
	}

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	pg, err := store.NewPostgres(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	llm, err := llmprovider.NewClient(ctx, llmprovider.Config{
		APIKey:  getEnv("GEMINI_API_KEY", ""),
		Model:   getEnv("SCOUT_LLM_MODEL", ""),
		Timeout: 60 * time.Second,
	})
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("construct llm client: %w", err)
	}

	return &deps{registry: registry, pg: pg, llm: llm}, nil
}

func (d *deps) close() {
	_ = d.pg.Close()
	_ = d.registry.Close()
}

// buildOrchestrator wires every phase of §4.6-§4.11 against the shared
// Postgres store and LLM client. Search/social capabilities are left
// unconfigured (§1 Non-goals: operator-supplied), so SearchWeb/
// FetchSocial calls will error rather than silently no-op — callers see
// that gap in the run report rather than in a log line only.
func buildOrchestrator(d *deps) *scout.Orchestrator {
	embedder := llmprovider.NewEmbedder(d.llm, getEnv("SCOUT_EMBED_MODEL", ""))

	caps := &fetch.Composite{
		Static:   fetch.NewStaticFetcher(30 * time.Second),
		Headless: mustHeadlessFetcher(),
		RSS:      fetch.NewRSSFetcher(30 * time.Second),
	}

	disc := &discover.Discoverer{Store: d.pg, LLM: d.llm}
	inv := &investigate.Investigator{Store: d.pg, Caps: caps, LLM: d.llm}
	resp := &respond.Finder{Store: d.pg, Caps: caps, LLM: d.llm, Embed: embedder}
	weave := &story.Weaver{Store: d.pg, LLM: d.llm}

	return &scout.Orchestrator{
		Store:       d.pg,
		Caps:        caps,
		Pool:        fetch.NewPool(fetch.DefaultPoolLimits()),
		Extractor:   extract.NewExtractor(d.llm),
		Embedder:    embedder,
		Similarity:  similarity.NewBuilder(d.pg),
		Investigate: inv,
		Respond:     resp,
		Weave:       weave,
		Discover:    disc,
		Masker:      masking.NewService(),
	}
}

func buildSupervisor(d *deps) *supervisor.Supervisor {
	var backend notify.Backend = notify.NewLogBackend(nil)
	if token := getEnv("SCOUT_SLACK_TOKEN", ""); token != "" {
		backend = notify.NewSlackBackend(token, getEnv("SCOUT_SLACK_CHANNEL", ""))
	}
	return &supervisor.Supervisor{Store: d.pg, LLM: d.llm, Notify: backend}
}

// mustHeadlessFetcher builds the headless fetcher capability; failures
// here (missing browser binary, etc.) degrade to static-only fetch
// rather than aborting startup, since most curated sources are static.
func mustHeadlessFetcher() *fetch.HeadlessFetcher {
	hf, err := fetch.NewHeadlessFetcher(45 * time.Second)
	if err != nil {
		return nil
	}
	return hf
}

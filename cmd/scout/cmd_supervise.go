package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civic-scout/scout/pkg/metrics"
	"github.com/civic-scout/scout/pkg/supervisor"
)

var superviseCity string

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Run one supervisor pass (§4.12) for a city, or every configured city",
	RunE:  runSupervise,
}

func init() {
	superviseCmd.Flags().StringVar(&superviseCity, "city", "", "city_key to supervise; omit to run every configured city")
}

func runSupervise(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	sup := buildSupervisor(d)
	m := metrics.Get()

	profiles, err := selectProfiles(d.registry, superviseCity)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		report, err := sup.Run(ctx, *p)
		if err != nil {
			if errors.Is(err, supervisor.ErrLockHeld) {
				slog.Info("supervisor skipped, lock held by another run", "city", p.CityKey)
				m.SupervisorRunTotal.WithLabelValues(p.CityKey, "lock_held").Inc()
				continue
			}
			slog.Error("supervisor run failed", "city", p.CityKey, "error", err)
			m.SupervisorRunTotal.WithLabelValues(p.CityKey, "error").Inc()
			continue
		}
		m.SupervisorRunTotal.WithLabelValues(report.City, "ok").Inc()
		m.IssuesCreated.WithLabelValues(report.City).Add(float64(report.IssuesCreated))
		m.SourcesPenalized.WithLabelValues(report.City).Add(float64(report.SourcesReset))
		m.EchoFlaggedStories.WithLabelValues(report.City).Add(float64(report.EchoFlaggedStories))
		slog.Info("supervisor run complete",
			"city", report.City,
			"triage_pool_size", report.TriagePoolSize,
			"llm_checks", report.LLMChecksPerformed,
			"issues_created", report.IssuesCreated,
			"issues_expired", report.IssuesExpired,
			"sources_reset", report.SourcesReset,
			"echo_flagged_stories", report.EchoFlaggedStories,
			"penalties_deferred", report.PenaltiesDeferred,
		)
	}
	return nil
}

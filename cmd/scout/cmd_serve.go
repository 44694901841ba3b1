package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civic-scout/scout/pkg/admin"
	"github.com/civic-scout/scout/pkg/cleanup"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/metrics"
	"github.com/civic-scout/scout/pkg/scout"
	"github.com/civic-scout/scout/pkg/supervisor"
)

var (
	adminAddr         string
	scoutInterval     time.Duration
	superviseInterval time.Duration
	cleanupInterval   time.Duration
	issueRetention    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Scout and Supervisor on their own cadences for every configured city, plus the admin HTTP surface",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&adminAddr, "admin-addr", ":8080", "address for the admin HTTP surface")
	serveCmd.Flags().DurationVar(&scoutInterval, "scout-interval", 15*time.Minute, "interval between Scout runs per city")
	serveCmd.Flags().DurationVar(&superviseInterval, "supervise-interval", 30*time.Minute, "interval between Supervisor runs per city, independent of scout-interval (§4.12)")
	serveCmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", 6*time.Hour, "interval between retention sweeps")
	serveCmd.Flags().DurationVar(&issueRetention, "issue-retention", 90*24*time.Hour, "how long a resolved or expired ValidationIssue is kept before being purged")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	orch := buildOrchestrator(d)
	sup := buildSupervisor(d)
	srv := admin.NewServer(d.pg, d.registry)

	sweeper := cleanup.NewService(d.pg, d.registry, cleanupInterval, issueRetention)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	for _, p := range d.registry.List() {
		go loopScout(ctx, orch, *p)
		go loopSupervise(ctx, sup, *p)
	}

	return srv.ListenAndServe(ctx, adminAddr)
}

func loopScout(ctx context.Context, orch *scout.Orchestrator, city config.CityProfile) {
	m := metrics.Get()
	ticker := time.NewTicker(scoutInterval)
	defer ticker.Stop()
	for {
		report, err := orch.Run(ctx, city)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			slog.Error("scout run failed", "city", city.CityKey, "error", err)
		} else {
			m.SignalsPersisted.WithLabelValues(city.CityKey).Add(float64(report.SignalsPersisted))
			m.StoriesTouched.WithLabelValues(city.CityKey).Add(float64(report.StoriesTouched))
			m.ScoutRunSpentCents.WithLabelValues(city.CityKey).Observe(float64(report.SpentCents))
			if report.Partial {
				outcome = "partial"
			}
		}
		m.ScoutRunTotal.WithLabelValues(city.CityKey, outcome).Inc()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func loopSupervise(ctx context.Context, sup *supervisor.Supervisor, city config.CityProfile) {
	m := metrics.Get()
	ticker := time.NewTicker(superviseInterval)
	defer ticker.Stop()
	for {
		report, err := sup.Run(ctx, city)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if !errors.Is(err, supervisor.ErrLockHeld) {
				slog.Error("supervisor run failed", "city", city.CityKey, "error", err)
			} else {
				outcome = "lock_held"
			}
		} else {
			m.IssuesCreated.WithLabelValues(city.CityKey).Add(float64(report.IssuesCreated))
			m.SourcesPenalized.WithLabelValues(city.CityKey).Add(float64(report.SourcesReset))
			m.EchoFlaggedStories.WithLabelValues(city.CityKey).Add(float64(report.EchoFlaggedStories))
		}
		m.SupervisorRunTotal.WithLabelValues(city.CityKey, outcome).Inc()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

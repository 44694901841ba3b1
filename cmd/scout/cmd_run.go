package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/metrics"
)

var runCity string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one Scout pass (§4.6) for a city, or every configured city",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCity, "city", "", "city_key to run; omit to run every configured city")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	orch := buildOrchestrator(d)
	m := metrics.Get()

	profiles, err := selectProfiles(d.registry, runCity)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		report, err := orch.Run(ctx, *p)
		if err != nil {
			slog.Error("scout run failed", "city", p.CityKey, "error", err)
			m.ScoutRunTotal.WithLabelValues(p.CityKey, "error").Inc()
			continue
		}
		outcome := "ok"
		if report.Partial {
			outcome = "partial"
		}
		m.ScoutRunTotal.WithLabelValues(report.City, outcome).Inc()
		m.SignalsPersisted.WithLabelValues(report.City).Add(float64(report.SignalsPersisted))
		m.StoriesTouched.WithLabelValues(report.City).Add(float64(report.StoriesTouched))
		m.ScoutRunSpentCents.WithLabelValues(report.City).Observe(float64(report.SpentCents))
		slog.Info("scout run complete",
			"city", report.City,
			"signals_persisted", report.SignalsPersisted,
			"signals_refreshed", report.SignalsRefreshed,
			"stories_touched", report.StoriesTouched,
			"spent_cents", report.SpentCents,
			"partial", report.Partial,
		)
	}
	return nil
}

func selectProfiles(registry *config.Registry, cityKey string) ([]*config.CityProfile, error) {
	if cityKey == "" {
		return registry.List(), nil
	}
	p, err := registry.Get(cityKey)
	if err != nil {
		return nil, err
	}
	return []*config.CityProfile{p}, nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"momox-agent/lib/scrapers/momox"
	"momox-agent/lib/telemetry"
	"momox-agent/lib/timezone"
	"momox-agent/services/report"
	"momox-agent/services/scan"

	"github.com/spf13/cobra"
)

var dryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Resolve every configured ISBN, email the report and advance the baseline.",
	Run: func(_ *cobra.Command, _ []string) {
		runScan()
	},
}

func init() {
	scanCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the report instead of emailing it, leaves the history baseline untouched")
	rootCmd.AddCommand(scanCmd)
}

func runScan() {
	ctx := context.Background()
	config := readConfig()

	// every configuration problem must surface before the first
	// request goes out, a half-scanned batch helps nobody
	if len(config.Isbns) == 0 {
		fatal("invalid config", fmt.Errorf("no isbns configured"))
	}
	if !dryRun {
		if err := config.Smtp.Validate(); err != nil {
			fatal("invalid smtp config", err)
		}
	}

	t, err := telemetry.SetupFromEnv(ctx, "momox-agent")
	if err != nil {
		fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	client, err := momox.NewClient(config.Momox)
	if err != nil {
		fatal("failed to create momox client", err)
	}
	if !client.RenderedTierAvailable() {
		slog.Warn("rendering proxy not configured, the rendered tier is disabled")
	}

	database := openDatabase(config)
	defer database.Close()

	heuristics := momox.DefaultHeuristics()
	if config.Heuristics != nil {
		heuristics = *config.Heuristics
	}

	service := scan.NewService(database, client, scan.Options{
		Heuristics: heuristics,
		Delay:      time.Duration(config.DelaySeconds * float64(time.Second)),
	})

	slog.Info("starting scan", "isbns", len(config.Isbns))
	outcomes, history, err := service.Run(ctx, config.Isbns)
	if err != nil {
		fatal("scan failed", err)
	}

	now := timezone.Now()
	r, err := report.Build(outcomes, history, now)
	if err != nil {
		fatal("failed to build report", err)
	}
	fmt.Print(r.Text)

	if dryRun {
		slog.Info("dry run, skipping email and baseline update")
		return
	}

	// outcomes and method memory are already settled at this point,
	// a delivery failure must not roll them back. it does keep the
	// old baseline so tomorrow's report flags the same changes again.
	err = report.NewMailer(config.Smtp).Send(ctx, r)
	if err != nil {
		slog.Error("failed to send report", "err", err)
		os.Exit(1)
	}
	slog.Info("report sent", "to", config.Smtp.To)

	err = service.SaveBaseline(ctx, scan.HistoryFromOutcomes(outcomes, now))
	if err != nil {
		fatal("failed to save history baseline", err)
	}
}

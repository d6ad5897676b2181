package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/KiboNaku/utreview-backend-sub000/internal/store"
	"github.com/KiboNaku/utreview-backend-sub000/lib/configutil"
	"github.com/KiboNaku/utreview-backend-sub000/lib/fetch"
	"github.com/KiboNaku/utreview-backend-sub000/lib/telemetry"
	"github.com/KiboNaku/utreview-backend-sub000/services/orchestrator"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ingestd",
	Short: "ingestd runs the daily course/schedule/survey ingestion pipeline.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ingest.json5", "path to the ingestion config file")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup wires the shared dependencies every subcommand needs.
func setup(ctx context.Context) (*orchestrator.Orchestrator, func(), error) {
	tel, err := telemetry.SetupFromEnv(ctx, "ingestd")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = tel.Shutdown(ctx)
	}

	config, err := configutil.ReadConfig[orchestrator.Config](configPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	st, err := store.Open(config.Store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return orchestrator.New(config, fetch.NewClient(), st), cleanup, nil
}

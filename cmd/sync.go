package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/southlink/geosync/internal/reconcile"
	"github.com/southlink/geosync/pkg/billing"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile all service locations and export the result",
	Long:  "Walks every active customer's services, normalizes installation addresses, geocodes stale or missing markers, writes changes back to the backend, and exports one CSV row per service.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			outPath = cfg.Export.Path
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		runID := uuid.NewString()
		log := zap.L().With(
			zap.String("command", "sync"),
			zap.String("run_id", runID),
		)

		var backend billing.Client = billing.NewClient(cfg.Billing.BaseURL, cfg.Billing.Token,
			billing.WithPageSize(cfg.Billing.PageSize),
			billing.WithTimeout(cfg.Billing.Timeout()),
		)
		if dryRun {
			backend = readOnlyBackend{backend}
			log.Info("dry run: write-backs disabled")
		}

		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "create export file %s", outPath)
		}
		defer f.Close() //nolint:errcheck

		out, err := reconcile.NewCSVWriter(f)
		if err != nil {
			return err
		}

		log.Info("starting reconciliation run",
			zap.String("export_path", outPath),
			zap.Bool("google_configured", cfg.Google.Key != ""),
		)

		driver := reconcile.NewDriver(backend, newOrchestrator(log), out, log)
		stats, err := driver.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "reconciliation run")
		}

		if err := out.Flush(); err != nil {
			return err
		}

		log.Info("run complete",
			zap.Int("customers", stats.Customers),
			zap.Int("services", stats.Services),
			zap.Int("geocoded", stats.Geocoded),
			zap.Int("unresolved", stats.Unresolved),
			zap.Int("attribute_writes", stats.AttributeWrites),
			zap.Int("geo_writes", stats.GeoWrites),
			zap.Int("write_failures", stats.WriteFailures),
		)

		fmt.Printf("Sync complete: %d services, %d geocoded, %d unresolved, %d write failures\n",
			stats.Services, stats.Geocoded, stats.Unresolved, stats.WriteFailures)
		return nil
	},
}

// readOnlyBackend passes reads through and turns write-backs into no-ops.
type readOnlyBackend struct {
	billing.Client
}

func (readOnlyBackend) UpdateServiceAttributes(context.Context, int, billing.AttributesPatch) error {
	return nil
}

func (readOnlyBackend) UpdateServiceGeo(context.Context, int, billing.GeoPatch) error {
	return nil
}

func init() {
	syncCmd.Flags().String("out", "", "export file path (default from config)")
	syncCmd.Flags().Bool("dry-run", false, "skip all backend write-backs")
	rootCmd.AddCommand(syncCmd)
}

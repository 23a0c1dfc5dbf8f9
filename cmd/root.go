package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/southlink/geosync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geosync",
	Short: "Service-location reconciliation for the billing backend",
	Long:  "Synchronizes per-service installation addresses and geocoordinates between the billing backend and the external geocoding providers, exporting the reconciled data as CSV.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A local .env is optional; viper reads the environment afterwards.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

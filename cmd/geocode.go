package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode ADDRESS",
	Short: "Resolve a single address through the provider chain",
	Long:  "Runs one address through the same provider order and fallback policy as a full sync. Useful for checking provider connectivity and key validity.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "geocode"))

		coord, ok := newOrchestrator(log).Resolve(cmd.Context(), args[0])
		if !ok {
			fmt.Println("no result")
			return nil
		}

		fmt.Printf("%s\n", coord.Marker())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}

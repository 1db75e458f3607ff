package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "plans-service",
	Short: "Plans sync service",
	Long:  "Cache-aside proxy serving subscription plans from the ERP with fallback and webhook invalidation.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "labourcare",
		Short:        "Labour care guide and patient timeline service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clockCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"time"

	"github.com/IANDYI/labour-care-service/internal/config"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			drop, _ := cmd.Flags().GetBool("drop")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)

			db, err := config.ConnectDatabase(cfg.DatabaseURL, 5, 2*time.Second, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return config.InitDatabase(cmd.Context(), db, drop || cfg.DropTablesOnStartup, log)
		},
	}
	cmd.Flags().Bool("drop", false, "Drop existing tables first (destroys all data)")
	return cmd
}

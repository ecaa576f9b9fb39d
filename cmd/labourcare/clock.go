package main

import (
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/config"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/core/services"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func clockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Stage clock administration",
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear a locked stage clock time (audit logged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			stageFlag, _ := cmd.Flags().GetString("stage")
			actorFlag, _ := cmd.Flags().GetString("actor")
			reason, _ := cmd.Flags().GetString("reason")

			patientID, err := uuid.Parse(patient)
			if err != nil {
				return fmt.Errorf("--patient must be a UUID: %w", err)
			}
			actorID, err := uuid.Parse(actorFlag)
			if err != nil {
				return fmt.Errorf("--actor must be the administrator's user UUID: %w", err)
			}
			stage, err := domain.ParseStage(stageFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)

			db, err := config.ConnectDatabase(cfg.DatabaseURL, 3, time.Second, log)
			if err != nil {
				return err
			}
			defer db.Close()

			sqlRepo := repository.NewSQLRepository(db)
			// Unlocking never records a milestone, so no status engine is needed
			clockService := services.NewStageClockService(sqlRepo, sqlRepo, nil, log, log)

			clock, err := clockService.UnlockStage(cmd.Context(), patientID, stage,
				ports.Actor{UserID: actorID, Role: domain.RoleAdmin}, reason)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s stage for patient %s (first=%s second=%s)\n",
				stage, patientID, formatAnchor(clock.FirstStageStart), formatAnchor(clock.SecondStageStart))
			return nil
		},
	}
	unlockCmd.Flags().String("patient", "", "Patient UUID")
	unlockCmd.Flags().String("stage", "", "Stage to unlock: first or second")
	unlockCmd.Flags().String("actor", "", "Administrator user UUID recorded in the audit log")
	unlockCmd.Flags().String("reason", "", "Reason for the override")
	_ = unlockCmd.MarkFlagRequired("patient")
	_ = unlockCmd.MarkFlagRequired("stage")
	_ = unlockCmd.MarkFlagRequired("actor")
	_ = unlockCmd.MarkFlagRequired("reason")
	cmd.AddCommand(unlockCmd)

	return cmd
}

func formatAnchor(t *domain.ClockTime) string {
	if t == nil {
		return "unset"
	}
	return t.String()
}

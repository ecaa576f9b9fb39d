package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/handler"
	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/config"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/core/services"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the labour care HTTP API and milestone consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	publicKey, err := cfg.LoadPublicKey()
	if err != nil {
		return err
	}

	// Connect to database with retry logic
	db, err := config.ConnectDatabase(cfg.DatabaseURL, 5, 2*time.Second, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := config.InitDatabase(context.Background(), db, cfg.DropTablesOnStartup, log); err != nil {
		return err
	}

	// Events are best effort; the service runs without a broker
	var publisher ports.EventPublisher
	rabbitMQPublisher, err := repository.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.AlertsQueueName, cfg.StatusQueueName, log)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ publisher unavailable, events will not be published")
	} else {
		defer rabbitMQPublisher.Close()
		publisher = rabbitMQPublisher
	}

	// Initialize repositories
	sqlRepo := repository.NewSQLRepository(db)

	// Initialize services
	patientService := services.NewPatientService(sqlRepo, log)
	statusService := services.NewStatusService(sqlRepo, publisher, log)
	clockService := services.NewStageClockService(sqlRepo, sqlRepo, statusService, log, log)
	observationService := services.NewObservationService(sqlRepo, sqlRepo, sqlRepo, publisher, log)

	// Milestones from the care form services drive status transitions
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	milestoneConsumer, err := repository.NewRabbitMQConsumer(cfg.RabbitMQURL, cfg.MilestoneQueueName,
		repository.NewMilestoneHandler(statusService, log), log)
	if err != nil {
		log.WithError(err).Warn("RabbitMQ milestone consumer unavailable, milestones accepted over HTTP only")
	} else {
		defer milestoneConsumer.Close()
		if err := milestoneConsumer.StartConsuming(consumerCtx); err != nil {
			log.WithError(err).Error("Milestone consumer failed to start")
		}
	}

	// Initialize handlers
	patientHandler := handler.NewPatientHandler(patientService, log)
	clockHandler := handler.NewStageClockHandler(clockService, log)
	observationHandler := handler.NewObservationHandler(observationService, log)
	milestoneHandler := handler.NewMilestoneHandler(statusService, log)
	healthHandler := handler.NewHealthHandler(db)

	// Initialize JWT middleware
	authMiddleware := middleware.NewAuthMiddleware(publicKey, log)
	defer authMiddleware.Stop()

	clinicians := []string{domain.RoleAdmin, domain.RoleMidwife}

	// Setup HTTP router
	mux := http.NewServeMux()

	// Health endpoints (OpenShift compatible, no auth required)
	mux.HandleFunc("GET /metrics", handler.Metrics)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health/live", healthHandler.Live)

	// Patients - ADMIN and MIDWIFE register, MIDWIFE sees own only
	mux.HandleFunc("POST /patients", authMiddleware.RequireAnyRole(clinicians, patientHandler.RegisterPatient))
	mux.HandleFunc("GET /patients/{patient_id}", authMiddleware.RequireAuth(patientHandler.GetPatient))

	// Stage clock - unlock is the ADMIN override
	mux.HandleFunc("GET /patients/{patient_id}/stage-clock", authMiddleware.RequireAuth(clockHandler.GetStageClock))
	mux.HandleFunc("PUT /patients/{patient_id}/stage-clock/first-stage", authMiddleware.RequireAnyRole(clinicians, clockHandler.SetFirstStageStart))
	mux.HandleFunc("PUT /patients/{patient_id}/stage-clock/second-stage", authMiddleware.RequireAnyRole(clinicians, clockHandler.SetSecondStageStart))
	mux.HandleFunc("DELETE /patients/{patient_id}/stage-clock/{stage}", authMiddleware.RequireRole(domain.RoleAdmin, clockHandler.UnlockStage))

	// Labour care guide
	mux.HandleFunc("GET /patients/{patient_id}/partogram", authMiddleware.RequireAuth(observationHandler.GetPartogram))
	mux.HandleFunc("PUT /patients/{patient_id}/observations", authMiddleware.RequireAnyRole(clinicians, observationHandler.SaveObservations))
	mux.HandleFunc("POST /observations/evaluate", authMiddleware.RequireAuth(observationHandler.Evaluate))

	// Milestones reported by care forms
	mux.HandleFunc("POST /patients/{patient_id}/milestones", authMiddleware.RequireAnyRole(clinicians, milestoneHandler.RecordMilestone))

	// Wrap mux with metrics middleware to track all HTTP requests
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.MetricsMiddleware(log, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, log, consumerCancel)
}

// serveUntilSignal runs server until SIGINT or SIGTERM and shuts it down
// gracefully; stop is called first so consumers quit taking new work
func serveUntilSignal(server *http.Server, log *logger.Logger, stop context.CancelFunc) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting labour care service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stop()
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}

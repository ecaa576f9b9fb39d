package main

import (
	"context"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/handler"
	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/adapters/websocket"
	"github.com/IANDYI/labour-care-service/internal/config"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/spf13/cobra"
)

func alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Relay clinical alerts and status changes to clinicians over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlerts()
		},
	}
}

func runAlerts() error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	publicKey, err := cfg.LoadPublicKey()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	broadcast := handler.NewAlertBroadcaster(hub, log)
	for _, queue := range []string{cfg.AlertsQueueName, cfg.StatusQueueName} {
		consumer, err := repository.NewRabbitMQConsumer(cfg.RabbitMQURL, queue, broadcast, log)
		if err != nil {
			return err
		}
		defer consumer.Close()

		if err := consumer.StartConsuming(ctx); err != nil {
			return err
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(publicKey, log)
	defer authMiddleware.Stop()

	wsHandler := handler.NewWebSocketHandler(hub, authMiddleware, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", handler.Metrics)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /ws", wsHandler.HandleWebSocket)

	// No write timeout: WebSocket connections are long lived
	server := &http.Server{
		Addr:        ":" + cfg.WebSocketPort,
		Handler:     middleware.MetricsMiddleware(log, mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return serveUntilSignal(server, log, cancel)
}

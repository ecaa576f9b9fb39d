package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

// Broadcaster fans a message out to connected clinicians
type Broadcaster interface {
	BroadcastToClinicians(message []byte) int
}

// eventEnvelope is decoded first to route an event by type
type eventEnvelope struct {
	Type      string `json:"type"`
	PatientID string `json:"patient_id"`
}

// NewAlertBroadcaster returns a MessageHandler that relays clinical alert and
// status change events from the broker to WebSocket clients. Unknown or
// malformed events are rejected so they do not loop on the queue.
func NewAlertBroadcaster(hub Broadcaster, log *logger.Logger) repository.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		start := time.Now()

		var envelope eventEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			AlertsConsumedTotal.WithLabelValues("unknown", "invalid").Inc()
			RabbitMQConsumeDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
			return fmt.Errorf("%w: invalid event: %v", repository.ErrRejectMessage, err)
		}

		switch envelope.Type {
		case domain.EventClinicalAlert:
			var event domain.AlertEvent
			if err := json.Unmarshal(body, &event); err != nil || len(event.Alerts) == 0 {
				AlertsConsumedTotal.WithLabelValues(envelope.Type, "invalid").Inc()
				return fmt.Errorf("%w: clinical alert event without alerts", repository.ErrRejectMessage)
			}
		case domain.EventStatusChanged:
			var event domain.StatusChangedEvent
			if err := json.Unmarshal(body, &event); err != nil || event.To == "" {
				AlertsConsumedTotal.WithLabelValues(envelope.Type, "invalid").Inc()
				return fmt.Errorf("%w: status event without target status", repository.ErrRejectMessage)
			}
		default:
			AlertsConsumedTotal.WithLabelValues("unknown", "invalid").Inc()
			RabbitMQConsumeDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
			return fmt.Errorf("%w: unknown event type %q", repository.ErrRejectMessage, envelope.Type)
		}

		AlertsConsumedTotal.WithLabelValues(envelope.Type, "success").Inc()

		// The event is relayed as published
		recipients := hub.BroadcastToClinicians(body)
		if recipients > 0 {
			AlertsBroadcastTotal.WithLabelValues(envelope.Type).Add(float64(recipients))
		}

		RabbitMQConsumeDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		log.WithComponent("alert_broadcaster").WithFields(map[string]interface{}{
			"event":      envelope.Type,
			"patient_id": envelope.PatientID,
			"recipients": recipients,
		}).Info("Event broadcast")
		return nil
	}
}

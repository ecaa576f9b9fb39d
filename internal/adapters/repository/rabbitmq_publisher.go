package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

// RabbitMQPublisher implements EventPublisher on two durable queues, one for
// clinical alerts and one for status changes
// Includes retry logic and circuit breaker for resilience
type RabbitMQPublisher struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	alertsQueue   string
	statusQueue   string
	cb            *gobreaker.CircuitBreaker
	maxRetries    int
	retryDelay    time.Duration
	connMutex     sync.RWMutex
	reconnectCh   chan bool
	stopReconnect chan bool
	log           *logger.Logger
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher with circuit breaker
func NewRabbitMQPublisher(rabbitMQURL, alertsQueue, statusQueue string, log *logger.Logger) (*RabbitMQPublisher, error) {
	if alertsQueue == "" {
		alertsQueue = "labour.alerts"
	}
	if statusQueue == "" {
		statusQueue = "labour.status"
	}

	publisher := &RabbitMQPublisher{
		alertsQueue:   alertsQueue,
		statusQueue:   statusQueue,
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		reconnectCh:   make(chan bool, 1),
		stopReconnect: make(chan bool),
		log:           log,
	}

	publisher.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rabbitmq",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	if err := publisher.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go publisher.handleReconnection(rabbitMQURL)

	return publisher, nil
}

// connect establishes connection to RabbitMQ and declares both queues
func (p *RabbitMQPublisher) connect(rabbitMQURL string) error {
	conn, ch, err := dialAndDeclare(rabbitMQURL, p.maxRetries, p.retryDelay, p.log, p.alertsQueue, p.statusQueue)
	if err != nil {
		return err
	}

	p.connMutex.Lock()
	p.conn = conn
	p.channel = ch
	p.connMutex.Unlock()

	p.log.WithComponent("rabbitmq_publisher").Info("Connected to RabbitMQ successfully")
	return nil
}

// dialAndDeclare dials with retries, opens a channel and declares durable queues
func dialAndDeclare(rabbitMQURL string, maxRetries int, retryDelay time.Duration, log *logger.Logger, queues ...string) (*amqp091.Connection, *amqp091.Channel, error) {
	var (
		conn *amqp091.Connection
		err  error
	)
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp091.Dial(rabbitMQURL)
		if err == nil {
			break
		}
		log.WithError(err).Warnf("Failed to connect to RabbitMQ (attempt %d/%d)", i+1, maxRetries)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	for _, queue := range queues {
		// Declare queue (idempotent)
		_, err = ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	return conn, ch, nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (p *RabbitMQPublisher) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-p.reconnectCh:
			p.log.WithComponent("rabbitmq_publisher").Info("Attempting to reconnect to RabbitMQ")
			p.connMutex.Lock()
			if p.channel != nil {
				p.channel.Close()
			}
			if p.conn != nil {
				p.conn.Close()
			}
			p.connMutex.Unlock()

			if err := p.connect(rabbitMQURL); err != nil {
				p.log.WithError(err).Error("RabbitMQ reconnection failed")
			}
		case <-p.stopReconnect:
			return
		}
	}
}

// PublishAlerts publishes the clinical alerts raised for a patient
func (p *RabbitMQPublisher) PublishAlerts(ctx context.Context, patientID uuid.UUID, alerts []domain.Alert) error {
	event := domain.AlertEvent{
		Type:      domain.EventClinicalAlert,
		PatientID: patientID,
		Alerts:    alerts,
		Severity:  domain.AlertSeverity(alerts),
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"event":      "alert_publish_attempt",
		"patient_id": patientID.String(),
		"alerts":     len(alerts),
		"severity":   event.Severity,
	}).Info("Publishing clinical alerts")

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publishWithRetry(ctx, p.alertsQueue, body)
	})
	return err
}

// PublishStatusChange publishes an applied status transition
func (p *RabbitMQPublisher) PublishStatusChange(ctx context.Context, change *domain.StatusChange) error {
	body, err := json.Marshal(domain.StatusChangedEvent{
		Type:        domain.EventStatusChanged,
		PatientID:   change.PatientID,
		Milestone:   change.Milestone,
		From:        change.From,
		To:          change.To,
		DisplayName: change.To.DisplayName(),
		Reason:      change.Reason,
		Timestamp:   change.At,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publishWithRetry(ctx, p.statusQueue, body)
	})
	return err
}

// publishWithRetry publishes a persistent JSON message with retry logic
func (p *RabbitMQPublisher) publishWithRetry(ctx context.Context, queue string, body []byte) error {
	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		p.connMutex.RLock()
		ch := p.channel
		conn := p.conn
		p.connMutex.RUnlock()

		if ch == nil || conn == nil || conn.IsClosed() {
			p.triggerReconnect()
			lastErr = fmt.Errorf("RabbitMQ connection is closed")
			time.Sleep(p.retryDelay)
			continue
		}

		err := ch.PublishWithContext(
			ctx,
			"",    // exchange
			queue, // routing key
			false, // mandatory
			false, // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			return nil
		}

		lastErr = err
		p.log.WithError(err).WithField("queue", queue).Warnf("Failed to publish (attempt %d/%d)", i+1, p.maxRetries)

		if i < p.maxRetries-1 {
			p.triggerReconnect()
			time.Sleep(p.retryDelay)
		}
	}

	return fmt.Errorf("failed to publish to %s after %d retries: %w", queue, p.maxRetries, lastErr)
}

func (p *RabbitMQPublisher) triggerReconnect() {
	select {
	case p.reconnectCh <- true:
	default:
	}
}

// Close closes the RabbitMQ connection
func (p *RabbitMQPublisher) Close() error {
	close(p.stopReconnect)
	p.connMutex.Lock()
	defer p.connMutex.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Ensure RabbitMQPublisher implements the interface
var _ ports.EventPublisher = (*RabbitMQPublisher)(nil)

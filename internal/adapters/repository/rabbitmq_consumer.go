package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rabbitmq/amqp091-go"
)

// ErrRejectMessage marks a message that can never be processed. It is
// nacked without requeue; any other handler error requeues the message.
var ErrRejectMessage = errors.New("message rejected")

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

var messagesConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "labour_messages_consumed_total",
		Help: "Total number of RabbitMQ messages consumed by outcome",
	},
	[]string{"queue", "outcome"},
)

// RabbitMQConsumer consumes one durable queue, one message at a time with
// manual acknowledgement
type RabbitMQConsumer struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	queueName      string
	handle         MessageHandler
	connMutex      sync.RWMutex
	reconnectCh    chan bool
	stopReconnect  chan bool
	maxRetries     int
	retryDelay     time.Duration
	consumingCtx   context.Context
	consumingMutex sync.Mutex
	isConsuming    bool
	log            *logger.Logger
}

// NewRabbitMQConsumer creates a new RabbitMQ consumer for queueName
func NewRabbitMQConsumer(rabbitMQURL, queueName string, handle MessageHandler, log *logger.Logger) (*RabbitMQConsumer, error) {
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	consumer := &RabbitMQConsumer{
		queueName:     queueName,
		handle:        handle,
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		reconnectCh:   make(chan bool, 1),
		stopReconnect: make(chan bool),
		log:           log,
	}

	if err := consumer.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go consumer.handleReconnection(rabbitMQURL)

	return consumer, nil
}

func (c *RabbitMQConsumer) connect(rabbitMQURL string) error {
	conn, ch, err := dialAndDeclare(rabbitMQURL, c.maxRetries, c.retryDelay, c.log, c.queueName)
	if err != nil {
		return err
	}

	c.connMutex.Lock()
	c.conn = conn
	c.channel = ch
	c.connMutex.Unlock()

	c.log.WithField("queue", c.queueName).Info("Consumer connected to RabbitMQ successfully")
	return nil
}

// handleReconnection handles automatic reconnection and restarts consuming
func (c *RabbitMQConsumer) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-c.reconnectCh:
			c.log.WithField("queue", c.queueName).Info("Attempting to reconnect to RabbitMQ")
			c.connMutex.Lock()
			if c.conn != nil && !c.conn.IsClosed() {
				c.conn.Close()
			}
			if c.channel != nil && !c.channel.IsClosed() {
				c.channel.Close()
			}
			c.connMutex.Unlock()

			if err := c.connect(rabbitMQURL); err != nil {
				c.log.WithError(err).Error("RabbitMQ reconnection failed")
				time.Sleep(5 * time.Second)
				select {
				case c.reconnectCh <- true:
				default:
				}
				continue
			}

			c.consumingMutex.Lock()
			if c.consumingCtx != nil && c.consumingCtx.Err() == nil && !c.isConsuming {
				go c.StartConsuming(c.consumingCtx)
			}
			c.consumingMutex.Unlock()
		case <-c.stopReconnect:
			return
		}
	}
}

// StartConsuming registers the consumer and processes messages in a
// background goroutine until ctx is cancelled. A second call while consuming
// is a no-op.
func (c *RabbitMQConsumer) StartConsuming(ctx context.Context) error {
	c.consumingMutex.Lock()
	if c.isConsuming {
		c.consumingMutex.Unlock()
		c.log.WithField("queue", c.queueName).Info("Consumer is already running, skipping duplicate start")
		return nil
	}
	c.isConsuming = true
	c.consumingCtx = ctx
	c.consumingMutex.Unlock()

	stopped := func() {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
	}

	c.connMutex.RLock()
	channel := c.channel
	conn := c.conn
	c.connMutex.RUnlock()

	if channel == nil || channel.IsClosed() || conn == nil || conn.IsClosed() {
		stopped()
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	// One unacknowledged message at a time
	if err := channel.Qos(1, 0, false); err != nil {
		stopped()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := fmt.Sprintf("%s-%d", c.queueName, time.Now().UnixNano())
	msgs, err := channel.Consume(
		c.queueName, // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		stopped()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.WithFields(map[string]interface{}{
		"queue":        c.queueName,
		"consumer_tag": consumerTag,
	}).Info("Consumer started, waiting for messages")

	go func() {
		defer stopped()
		for {
			select {
			case <-ctx.Done():
				c.log.WithField("queue", c.queueName).Info("Consumer context cancelled")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.log.WithField("queue", c.queueName).Warn("Consumer channel closed, attempting reconnection")
					select {
					case c.reconnectCh <- true:
					default:
					}
					return
				}
				HandleDelivery(ctx, c.queueName, msg, c.handle, c.log)
			}
		}
	}()

	return nil
}

// HandleDelivery runs handle on a delivery and settles it: ack on success,
// nack without requeue on ErrRejectMessage, nack with requeue otherwise
func HandleDelivery(ctx context.Context, queue string, msg amqp091.Delivery, handle MessageHandler, log *logger.Logger) {
	err := handle(ctx, msg.Body)
	switch {
	case err == nil:
		messagesConsumedTotal.WithLabelValues(queue, "ack").Inc()
		if ackErr := msg.Ack(false); ackErr != nil {
			log.WithError(ackErr).WithField("queue", queue).Warn("Failed to acknowledge message")
		}
	case errors.Is(err, ErrRejectMessage):
		messagesConsumedTotal.WithLabelValues(queue, "rejected").Inc()
		log.WithError(err).WithField("queue", queue).Warn("Rejecting message")
		msg.Nack(false, false)
	default:
		messagesConsumedTotal.WithLabelValues(queue, "requeued").Inc()
		log.WithError(err).WithField("queue", queue).Error("Message processing failed, requeueing")
		msg.Nack(false, true)
	}
}

// Close stops reconnection and closes the RabbitMQ connection. The consuming
// context is cancelled by the caller.
func (c *RabbitMQConsumer) Close() error {
	close(c.stopReconnect)

	c.consumingMutex.Lock()
	c.isConsuming = false
	c.consumingMutex.Unlock()

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.log.WithError(err).Warn("Error closing RabbitMQ channel")
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Warn("Error closing RabbitMQ connection")
		}
	}

	c.log.WithField("queue", c.queueName).Info("Consumer closed")
	return nil
}

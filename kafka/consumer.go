package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-svc/apperr"
	"storefront-svc/config"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func InitConsumer(cfg config.Config, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(cfg.KafkaBrokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StatusUpdater applies a fulfillment status to an order.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

// FulfillmentConsumer applies status updates published by the fulfillment
// side to stored orders.
type FulfillmentConsumer struct {
	consumer   sarama.Consumer
	topic      string
	updater    StatusUpdater
	logger     *zap.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewFulfillmentConsumer(consumer sarama.Consumer, topic string, updater StatusUpdater, logger *zap.Logger) *FulfillmentConsumer {
	return &FulfillmentConsumer{
		consumer:   consumer,
		topic:      topic,
		updater:    updater,
		logger:     logger,
		maxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
}

// Start blocks until ctx is cancelled or the partition consumer is closed.
func (fc *FulfillmentConsumer) Start(ctx context.Context) error {
	partitionConsumer, err := fc.consumer.ConsumePartition(fc.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	fc.logger.Info("Kafka consumer started", zap.String("topic", fc.topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			if err := fc.handleMessageWithRetry(ctx, message); err != nil {
				fc.logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			fc.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (fc *FulfillmentConsumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= fc.maxRetries; attempt++ {
		err := fc.handleMessage(ctx, message)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) {
			middleware.RecordEventConsumed(models.EventFulfillmentStatus, "rejected")
			return err
		}
		lastErr = err
		if attempt < fc.maxRetries {
			backoff := fc.backoff(attempt)
			fc.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	middleware.RecordEventConsumed(models.EventFulfillmentStatus, "failed")
	return fmt.Errorf("failed after %d attempts: %w", fc.maxRetries, lastErr)
}

func (fc *FulfillmentConsumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, saramaHeaderCarrierConsumer(message.Headers))
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ProcessFulfillmentEvent")
	defer span.End()

	var event models.FulfillmentEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %v: %w", err, apperr.ErrValidation)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("order.id", event.OrderID),
	)

	if event.EventType != models.EventFulfillmentStatus {
		fc.logger.Debug("Ignoring event", zap.String("event_type", event.EventType))
		middleware.RecordEventConsumed(event.EventType, "ignored")
		return nil
	}

	if _, err := fc.updater.UpdateStatus(ctx, event.OrderID, event.Status); err != nil {
		span.RecordError(err)
		return err
	}

	fc.logger.Info("Order status updated from fulfillment event",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_id", event.OrderID),
		zap.String("status", string(event.Status)),
	)
	middleware.RecordEventConsumed(event.EventType, "success")
	return nil
}

// saramaHeaderCarrierConsumer adapts consumer record headers to a TextMapCarrier.
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

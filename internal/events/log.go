package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the structured log. It is the broker used in
// development when no RabbitMQ or Kafka is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.Info("event",
		zap.String("event_type", e.Type),
		zap.String("event_id", e.ID.String()),
		zap.String("key", e.Key),
		zap.String("restaurant_id", e.RestaurantID.String()),
		zap.ByteString("payload", e.Payload),
	)
	return nil
}
